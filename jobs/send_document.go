package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atelier-crm/atelier-crm/internal/billing"
	jobmetrics "github.com/atelier-crm/atelier-crm/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Mailer delivers a rendered document to a recipient. The SMTP integration
// plugs in here; tests use a recording fake.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendDocumentJob delivers a confirmed quote or invoice and flips its status
// to sent. Delivery happens only here, never from the synchronous
// preparation action.
type SendDocumentJob struct {
	Billing *billing.Service
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSendDocumentJob wires dependencies for the delivery handler.
func NewSendDocumentJob(billingSvc *billing.Service, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendDocumentJob {
	return &SendDocumentJob{Billing: billingSvc, Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSendDocument tasks.
func (j *SendDocumentJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Billing == nil {
		return errors.New("send document: handler not configured")
	}
	var payload SendDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeSendDocument)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("type", payload.Type),
		slog.String("document_id", payload.DocumentID.String()),
		slog.String("to", payload.To))

	var number string
	var total float64
	var currency string
	switch payload.Type {
	case billing.DocTypeQuote:
		quote, err := j.Billing.GetQuote(ctx, payload.OwnerID, payload.DocumentID)
		if err != nil {
			resultErr = err
			return resultErr
		}
		number, total, currency = quote.Number, quote.Total, quote.Currency
	case billing.DocTypeInvoice:
		invoice, err := j.Billing.GetInvoice(ctx, payload.OwnerID, payload.DocumentID)
		if err != nil {
			resultErr = err
			return resultErr
		}
		number, total, currency = invoice.Number, invoice.Total, invoice.Currency
	default:
		logger.Warn("unknown document type, dropping task")
		return asynq.SkipRetry
	}

	subject := fmt.Sprintf("%s %s", subjectPrefix(payload.Type), number)
	body := fmt.Sprintf("Veuillez trouver ci-joint le document %s d'un montant de %.2f %s.",
		number, total, billing.CurrencySymbol(currency))
	if j.Mailer != nil {
		if err := j.Mailer.Send(ctx, payload.To, subject, body); err != nil {
			resultErr = fmt.Errorf("deliver %s %s: %w", payload.Type, number, err)
			return resultErr
		}
	}

	if err := j.markSent(ctx, payload); err != nil {
		resultErr = err
		return resultErr
	}
	logger.Info("document sent", slog.String("numero", number))
	return resultErr
}

func (j *SendDocumentJob) markSent(ctx context.Context, payload SendDocumentPayload) error {
	status := billing.StatusSent
	switch payload.Type {
	case billing.DocTypeQuote:
		_, err := j.Billing.UpdateQuote(ctx, payload.OwnerID, payload.DocumentID, billing.UpdateQuoteRequest{Status: &status})
		return err
	case billing.DocTypeInvoice:
		_, err := j.Billing.UpdateInvoice(ctx, payload.OwnerID, payload.DocumentID, billing.UpdateInvoiceRequest{Status: &status})
		return err
	default:
		return nil
	}
}

func subjectPrefix(docType string) string {
	if docType == billing.DocTypeInvoice {
		return "Facture"
	}
	return "Devis"
}

func (j *SendDocumentJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeSendDocument))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendDocument))
}

func (j *SendDocumentJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// LogMailer is the development mailer: it only logs the outgoing message.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the message instead of delivering it.
func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail out", slog.String("to", to), slog.String("subject", subject), slog.Time("at", time.Now().UTC()))
	return nil
}
