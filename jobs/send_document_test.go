package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-crm/atelier-crm/internal/billing"
	jobmetrics "github.com/atelier-crm/atelier-crm/internal/jobs"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type quoteOnlyRepo struct {
	quotes   map[uuid.UUID]billing.Quote
	invoices map[uuid.UUID]billing.Invoice
}

func newQuoteOnlyRepo() *quoteOnlyRepo {
	return &quoteOnlyRepo{
		quotes:   make(map[uuid.UUID]billing.Quote),
		invoices: make(map[uuid.UUID]billing.Invoice),
	}
}

func (r *quoteOnlyRepo) CreateQuote(_ context.Context, q billing.Quote) error {
	r.quotes[q.ID] = q
	return nil
}

func (r *quoteOnlyRepo) UpdateQuote(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, _ []billing.LineItem) error {
	q, ok := r.quotes[id]
	if !ok || q.OwnerID != ownerID {
		return shared.ErrNotFound
	}
	if v, ok := updates["status"]; ok {
		q.Status = billing.DocumentStatus(fmt.Sprint(v))
	}
	r.quotes[id] = q
	return nil
}

func (r *quoteOnlyRepo) GetQuote(_ context.Context, ownerID, id uuid.UUID) (*billing.Quote, error) {
	q, ok := r.quotes[id]
	if !ok || q.OwnerID != ownerID {
		return nil, shared.ErrNotFound
	}
	return &q, nil
}

func (r *quoteOnlyRepo) ListQuotes(context.Context, uuid.UUID, int, int) ([]billing.Quote, int, error) {
	return nil, 0, nil
}

func (r *quoteOnlyRepo) CreateInvoice(_ context.Context, inv billing.Invoice) error {
	r.invoices[inv.ID] = inv
	return nil
}

func (r *quoteOnlyRepo) UpdateInvoice(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, _ []billing.LineItem) error {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return shared.ErrNotFound
	}
	if v, ok := updates["status"]; ok {
		inv.Status = billing.DocumentStatus(fmt.Sprint(v))
	}
	r.invoices[id] = inv
	return nil
}

func (r *quoteOnlyRepo) GetInvoice(_ context.Context, ownerID, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return nil, shared.ErrNotFound
	}
	return &inv, nil
}

func (r *quoteOnlyRepo) ListInvoices(context.Context, uuid.UUID, int, int) ([]billing.Invoice, int, error) {
	return nil, 0, nil
}

type nilSettings struct{}

func (nilSettings) Get(context.Context, uuid.UUID) (*billing.Settings, error) { return nil, nil }

type seqAllocator struct{ n int }

func (a *seqAllocator) Allocate(context.Context, uuid.UUID, string, string, time.Time) (string, error) {
	a.n++
	return fmt.Sprintf("DEV-2026-%04d", a.n), nil
}

type noopMissions struct{}

func (noopMissions) RecomputeBilling(context.Context, uuid.UUID, uuid.UUID) (float64, error) {
	return 0, nil
}

func newSendJobUnderTest(t *testing.T, mailer Mailer) (*SendDocumentJob, *quoteOnlyRepo) {
	t.Helper()
	repo := newQuoteOnlyRepo()
	svc := billing.NewService(repo, nilSettings{}, &seqAllocator{}, noopMissions{})
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	return NewSendDocumentJob(svc, mailer, nil, metrics), repo
}

func mustTask(t *testing.T, payload SendDocumentPayload) *asynq.Task {
	t.Helper()
	task, err := NewSendDocumentTask(payload)
	require.NoError(t, err)
	return task
}

func TestSendDocumentDeliversAndMarksSent(t *testing.T) {
	mailer := &fakeMailer{}
	job, repo := newSendJobUnderTest(t, mailer)
	owner := uuid.New()

	quote := billing.Quote{
		ID:       uuid.New(),
		OwnerID:  owner,
		Number:   "DEV-2026-0042",
		Status:   billing.StatusDraft,
		Total:    1310,
		Currency: "EUR",
	}
	repo.quotes[quote.ID] = quote

	err := job.Handle(context.Background(), mustTask(t, SendDocumentPayload{
		OwnerID:    owner,
		Type:       billing.DocTypeQuote,
		DocumentID: quote.ID,
		To:         "compta@aurore.example",
	}))
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "compta@aurore.example", mailer.sent[0].to)
	assert.Equal(t, "Devis DEV-2026-0042", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "1310.00")
	assert.Equal(t, billing.StatusSent, repo.quotes[quote.ID].Status)
}

func TestSendDocumentBadPayloadSkipsRetry(t *testing.T) {
	mailer := &fakeMailer{}
	job, _ := newSendJobUnderTest(t, mailer)

	task := asynq.NewTask(TaskTypeSendDocument, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, mailer.sent)
}

func TestSendDocumentMissingRecipientSkipsRetry(t *testing.T) {
	mailer := &fakeMailer{}
	job, _ := newSendJobUnderTest(t, mailer)

	err := job.Handle(context.Background(), mustTask(t, SendDocumentPayload{
		OwnerID:    uuid.New(),
		Type:       billing.DocTypeQuote,
		DocumentID: uuid.New(),
	}))
	require.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, mailer.sent)
}

func TestSendDocumentMailFailureKeepsDraft(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	job, repo := newSendJobUnderTest(t, mailer)
	owner := uuid.New()

	quote := billing.Quote{
		ID:      uuid.New(),
		OwnerID: owner,
		Number:  "DEV-2026-0001",
		Status:  billing.StatusDraft,
	}
	repo.quotes[quote.ID] = quote

	err := job.Handle(context.Background(), mustTask(t, SendDocumentPayload{
		OwnerID:    owner,
		Type:       billing.DocTypeQuote,
		DocumentID: quote.ID,
		To:         "compta@aurore.example",
	}))
	require.Error(t, err)
	assert.Equal(t, billing.StatusDraft, repo.quotes[quote.ID].Status, "a failed delivery never flips the status")
}
