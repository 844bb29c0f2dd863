package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/audit"
	"github.com/atelier-crm/atelier-crm/internal/billing"
	"github.com/atelier-crm/atelier-crm/internal/billing/numbering"
	"github.com/atelier-crm/atelier-crm/internal/crm"
	"github.com/atelier-crm/atelier-crm/internal/deals"
	"github.com/atelier-crm/atelier-crm/internal/finance"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// memoryStore backs every repository interface the engine touches, so a test
// can assert cross-package effects (an invoice refreshing its mission, an
// audit row following a mutation) against one source of truth.
type memoryStore struct {
	mu       sync.Mutex
	clients  map[uuid.UUID]crm.Client
	contacts map[uuid.UUID]crm.Contact
	links    map[string]crm.ClientContact
	deals    map[uuid.UUID]deals.Deal
	missions map[uuid.UUID]deals.Mission
	docs     []deals.Document
	quotes   map[uuid.UUID]billing.Quote
	invoices map[uuid.UUID]billing.Invoice
	entries  []audit.Entry
	settings *billing.Settings
	searches int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clients:  make(map[uuid.UUID]crm.Client),
		contacts: make(map[uuid.UUID]crm.Contact),
		links:    make(map[string]crm.ClientContact),
		deals:    make(map[uuid.UUID]deals.Deal),
		missions: make(map[uuid.UUID]deals.Mission),
		quotes:   make(map[uuid.UUID]billing.Quote),
		invoices: make(map[uuid.UUID]billing.Invoice),
	}
}

func (s *memoryStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

func (s *memoryStore) auditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

func matchName(name, needle string) bool {
	return strings.Contains(crm.NormalizeName(name), crm.NormalizeName(needle))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// --- crm.Repository ---

type memCRMRepo struct{ s *memoryStore }

func (r *memCRMRepo) CreateClient(_ context.Context, client crm.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.clients[client.ID] = client
	return nil
}

func (r *memCRMRepo) UpdateClient(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	client, ok := r.s.clients[id]
	if !ok || client.OwnerID != ownerID {
		return fmt.Errorf("client: %w", shared.ErrNotFound)
	}
	for key, v := range updates {
		switch key {
		case "name":
			client.Name = fmt.Sprint(v)
		case "email":
			client.Email = fmt.Sprint(v)
		case "phone":
			client.Phone = fmt.Sprint(v)
		case "address":
			client.Address = fmt.Sprint(v)
		case "custom_fields":
			if m, ok := v.(map[string]any); ok {
				client.CustomFields = m
			}
		}
	}
	client.UpdatedAt = time.Now().UTC()
	r.s.clients[id] = client
	return nil
}

func (r *memCRMRepo) GetClient(_ context.Context, ownerID, id uuid.UUID) (*crm.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	client, ok := r.s.clients[id]
	if !ok || client.OwnerID != ownerID {
		return nil, fmt.Errorf("client: %w", shared.ErrNotFound)
	}
	return &client, nil
}

func (r *memCRMRepo) ListClients(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]crm.Client, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []crm.Client
	for _, c := range r.s.clients {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	out = window(out, limit, offset)
	return out, total, nil
}

func (r *memCRMRepo) SearchClientByName(_ context.Context, ownerID uuid.UUID, needle string) (*crm.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.searches++
	var matches []crm.Client
	for _, c := range r.s.clients {
		if c.OwnerID == ownerID && matchName(c.Name, needle) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("client: %w", shared.ErrNotFound)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return &matches[0], nil
}

func (r *memCRMRepo) CreateContact(_ context.Context, contact crm.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.contacts[contact.ID] = contact
	return nil
}

func (r *memCRMRepo) GetContact(_ context.Context, ownerID, id uuid.UUID) (*crm.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	contact, ok := r.s.contacts[id]
	if !ok || contact.OwnerID != ownerID {
		return nil, fmt.Errorf("contact: %w", shared.ErrNotFound)
	}
	return &contact, nil
}

func (r *memCRMRepo) ListContacts(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]crm.Contact, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []crm.Contact
	for _, c := range r.s.contacts {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	total := len(out)
	out = window(out, limit, offset)
	return out, total, nil
}

func (r *memCRMRepo) SearchContactByName(_ context.Context, ownerID uuid.UUID, needle string) (*crm.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.searches++
	var matches []crm.Contact
	for _, c := range r.s.contacts {
		if c.OwnerID == ownerID && matchName(c.FullName(), needle) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("contact: %w", shared.ErrNotFound)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].FullName() < matches[j].FullName() })
	return &matches[0], nil
}

func (r *memCRMRepo) UpsertLink(_ context.Context, _ uuid.UUID, link crm.ClientContact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.links[link.ClientID.String()+"|"+link.ContactID.String()] = link
	return nil
}

func (r *memCRMRepo) ContactsForClient(_ context.Context, ownerID, clientID uuid.UUID) ([]crm.ContactWithRoles, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []crm.ContactWithRoles
	for _, link := range r.s.links {
		if link.ClientID != clientID {
			continue
		}
		contact, ok := r.s.contacts[link.ContactID]
		if !ok || contact.OwnerID != ownerID {
			continue
		}
		out = append(out, crm.ContactWithRoles{Contact: contact, Roles: link})
	}
	return out, nil
}

// --- deals.Repository ---

type memDealsRepo struct{ s *memoryStore }

func (r *memDealsRepo) CreateDeal(_ context.Context, deal deals.Deal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deals[deal.ID] = deal
	return nil
}

func (r *memDealsRepo) UpdateDeal(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deal, ok := r.s.deals[id]
	if !ok || deal.OwnerID != ownerID {
		return fmt.Errorf("deal: %w", shared.ErrNotFound)
	}
	for key, v := range updates {
		switch key {
		case "title":
			deal.Title = fmt.Sprint(v)
		case "status":
			deal.Status = deals.DealStatus(fmt.Sprint(v))
		case "amount":
			deal.Amount = toFloat(v)
		case "notes":
			deal.Notes = fmt.Sprint(v)
		}
	}
	deal.UpdatedAt = time.Now().UTC()
	r.s.deals[id] = deal
	return nil
}

func (r *memDealsRepo) GetDeal(_ context.Context, ownerID, id uuid.UUID) (*deals.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deal, ok := r.s.deals[id]
	if !ok || deal.OwnerID != ownerID {
		return nil, fmt.Errorf("deal: %w", shared.ErrNotFound)
	}
	return &deal, nil
}

func (r *memDealsRepo) ListDeals(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]deals.Deal, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []deals.Deal
	for _, d := range r.s.deals {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	out = window(out, limit, offset)
	return out, total, nil
}

func (r *memDealsRepo) SearchDealByName(_ context.Context, ownerID uuid.UUID, needle string) (*deals.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.searches++
	var matches []deals.Deal
	for _, d := range r.s.deals {
		if d.OwnerID == ownerID && matchName(d.Title, needle) {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("deal: %w", shared.ErrNotFound)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Title < matches[j].Title })
	return &matches[0], nil
}

func (r *memDealsRepo) CreateMission(_ context.Context, mission deals.Mission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.missions[mission.ID] = mission
	return nil
}

func (r *memDealsRepo) UpdateMission(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	mission, ok := r.s.missions[id]
	if !ok || mission.OwnerID != ownerID {
		return fmt.Errorf("mission: %w", shared.ErrNotFound)
	}
	for key, v := range updates {
		switch key {
		case "title":
			mission.Title = fmt.Sprint(v)
		case "status":
			mission.Status = deals.MissionStatus(fmt.Sprint(v))
		case "total_amount":
			mission.TotalAmount = toFloat(v)
		}
	}
	mission.UpdatedAt = time.Now().UTC()
	r.s.missions[id] = mission
	return nil
}

func (r *memDealsRepo) GetMission(_ context.Context, ownerID, id uuid.UUID) (*deals.Mission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	mission, ok := r.s.missions[id]
	if !ok || mission.OwnerID != ownerID {
		return nil, fmt.Errorf("mission: %w", shared.ErrNotFound)
	}
	return &mission, nil
}

func (r *memDealsRepo) ListMissions(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]deals.Mission, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []deals.Mission
	for _, m := range r.s.missions {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	out = window(out, limit, offset)
	return out, total, nil
}

func (r *memDealsRepo) SearchMissionByName(_ context.Context, ownerID uuid.UUID, needle string) (*deals.Mission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.searches++
	var matches []deals.Mission
	for _, m := range r.s.missions {
		if m.OwnerID == ownerID && matchName(m.Title, needle) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("mission: %w", shared.ErrNotFound)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Title < matches[j].Title })
	return &matches[0], nil
}

func (r *memDealsRepo) RefreshMissionBilling(_ context.Context, ownerID, missionID uuid.UUID) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	mission, ok := r.s.missions[missionID]
	if !ok || mission.OwnerID != ownerID {
		return 0, fmt.Errorf("mission: %w", shared.ErrNotFound)
	}
	var invoiced float64
	for _, inv := range r.s.invoices {
		if inv.MissionID == missionID && inv.Status != billing.StatusCancelled {
			invoiced += inv.Total
		}
	}
	mission.ResteAFacturer = mission.TotalAmount - invoiced
	r.s.missions[missionID] = mission
	return mission.ResteAFacturer, nil
}

func (r *memDealsRepo) CreateDocument(_ context.Context, doc deals.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs = append(r.s.docs, doc)
	return nil
}

func (r *memDealsRepo) ListDocuments(_ context.Context, ownerID uuid.UUID, kind deals.DocumentKind, limit, offset int) ([]deals.Document, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []deals.Document
	for _, d := range r.s.docs {
		if d.OwnerID == ownerID && d.Kind == kind {
			out = append(out, d)
		}
	}
	total := len(out)
	out = window(out, limit, offset)
	return out, total, nil
}

// --- billing.Repository ---

type memBillingRepo struct{ s *memoryStore }

func (r *memBillingRepo) CreateQuote(_ context.Context, q billing.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.quotes[q.ID] = q
	return nil
}

func (r *memBillingRepo) UpdateQuote(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, lines []billing.LineItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotes[id]
	if !ok || q.OwnerID != ownerID {
		return fmt.Errorf("quote: %w", shared.ErrNotFound)
	}
	applyBillingUpdates(updates, &q.Status, &q.Subtotal, &q.TaxAmount, &q.Total)
	if lines != nil {
		q.Lines = lines
	}
	q.UpdatedAt = time.Now().UTC()
	r.s.quotes[id] = q
	return nil
}

func (r *memBillingRepo) GetQuote(_ context.Context, ownerID, id uuid.UUID) (*billing.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotes[id]
	if !ok || q.OwnerID != ownerID {
		return nil, fmt.Errorf("quote: %w", shared.ErrNotFound)
	}
	return &q, nil
}

func (r *memBillingRepo) ListQuotes(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]billing.Quote, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []billing.Quote
	for _, q := range r.s.quotes {
		if q.OwnerID == ownerID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	total := len(out)
	out = window(out, limit, offset)
	return out, total, nil
}

func (r *memBillingRepo) CreateInvoice(_ context.Context, inv billing.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoices[inv.ID] = inv
	return nil
}

func (r *memBillingRepo) UpdateInvoice(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, lines []billing.LineItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return fmt.Errorf("invoice: %w", shared.ErrNotFound)
	}
	applyBillingUpdates(updates, &inv.Status, &inv.Subtotal, &inv.TaxAmount, &inv.Total)
	if lines != nil {
		inv.Lines = lines
	}
	inv.UpdatedAt = time.Now().UTC()
	r.s.invoices[id] = inv
	return nil
}

func (r *memBillingRepo) GetInvoice(_ context.Context, ownerID, id uuid.UUID) (*billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return nil, fmt.Errorf("invoice: %w", shared.ErrNotFound)
	}
	return &inv, nil
}

func (r *memBillingRepo) ListInvoices(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]billing.Invoice, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.s.invoices {
		if inv.OwnerID == ownerID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	total := len(out)
	out = window(out, limit, offset)
	return out, total, nil
}

func applyBillingUpdates(updates map[string]interface{}, status *billing.DocumentStatus, subtotal, tax, total *float64) {
	for key, v := range updates {
		switch key {
		case "status":
			*status = billing.DocumentStatus(fmt.Sprint(v))
		case "subtotal":
			*subtotal = toFloat(v)
		case "tax_amount":
			*tax = toFloat(v)
		case "total":
			*total = toFloat(v)
		}
	}
}

// --- finance.Repository ---

type memFinanceRepo struct{ s *memoryStore }

func (r *memFinanceRepo) InvoiceRows(_ context.Context, ownerID uuid.UUID, clientFilter string) ([]finance.InvoiceRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []finance.InvoiceRow
	for _, inv := range r.s.invoices {
		if inv.OwnerID != ownerID {
			continue
		}
		client := r.s.clients[inv.ClientID]
		if clientFilter != "" && !matchName(client.Name, clientFilter) {
			continue
		}
		out = append(out, finance.InvoiceRow{
			ID:         inv.ID,
			Number:     inv.Number,
			ClientID:   inv.ClientID,
			ClientName: client.Name,
			Status:     inv.Status,
			Total:      inv.Total,
		})
	}
	return out, nil
}

// --- audit.Repository ---

type memAuditRepo struct{ s *memoryStore }

func (r *memAuditRepo) Insert(_ context.Context, entry audit.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.entries = append(r.s.entries, entry)
	return nil
}

func (r *memAuditRepo) Window(_ context.Context, ownerID uuid.UUID, filters audit.TimelineFilters) ([]audit.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.s.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- settings and counters ---

type memSettings struct{ s *memoryStore }

func (m memSettings) Get(context.Context, uuid.UUID) (*billing.Settings, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.settings, nil
}

type memCounters struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (c *memCounters) Next(_ context.Context, ownerID uuid.UUID, docType, scopeKey string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counters == nil {
		c.counters = make(map[string]int64)
	}
	key := ownerID.String() + "|" + docType + "|" + scopeKey
	c.counters[key]++
	return c.counters[key], nil
}

func mustUUID(t *testing.T, v any) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		t.Fatalf("parse uuid %v: %v", v, err)
	}
	return id
}

func window[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

// engine wires a full dispatcher over the memory store.
type engine struct {
	store   *memoryStore
	service *Service
	owner   uuid.UUID
}

func newEngine() *engine {
	store := newMemoryStore()
	crmSvc := crm.NewService(&memCRMRepo{s: store})
	dealsSvc := deals.NewService(&memDealsRepo{s: store})
	settings := memSettings{s: store}
	allocator := numbering.NewAllocator(&memCounters{})
	billingSvc := billing.NewService(&memBillingRepo{s: store}, settings, allocator, dealsSvc)
	financeSvc := finance.NewService(&memFinanceRepo{s: store}, settings)
	auditSvc := audit.NewService(&memAuditRepo{s: store})

	resolver := NewResolver(NewDirectory(crmSvc, dealsSvc))
	svc := NewService(resolver, crmSvc, dealsSvc, billingSvc, financeSvc, auditSvc,
		slog.New(slog.DiscardHandler))

	return &engine{store: store, service: svc, owner: uuid.New()}
}

func (e *engine) exec(t *testing.T, tool string, args map[string]any) Envelope {
	t.Helper()
	env, err := e.service.Execute(context.Background(), e.owner, tool, args)
	if err != nil {
		t.Fatalf("execute %s: %v", tool, err)
	}
	return env
}

func (e *engine) seedClient(name, email string) crm.Client {
	client := crm.Client{
		ID:        uuid.New(),
		OwnerID:   e.owner,
		Kind:      crm.ClientOrganization,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	e.store.mu.Lock()
	e.store.clients[client.ID] = client
	e.store.mu.Unlock()
	return client
}

func (e *engine) seedDeal(clientID uuid.UUID, title string, status deals.DealStatus, amount float64) deals.Deal {
	deal := deals.Deal{
		ID:        uuid.New(),
		OwnerID:   e.owner,
		ClientID:  clientID,
		Title:     title,
		Status:    status,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	e.store.mu.Lock()
	e.store.deals[deal.ID] = deal
	e.store.mu.Unlock()
	return deal
}

func (e *engine) seedMission(dealID, clientID uuid.UUID, title string, total float64) deals.Mission {
	mission := deals.Mission{
		ID:             uuid.New(),
		OwnerID:        e.owner,
		DealID:         dealID,
		ClientID:       clientID,
		Title:          title,
		Status:         deals.MissionActive,
		TotalAmount:    total,
		ResteAFacturer: total,
		CreatedAt:      time.Now().UTC(),
	}
	e.store.mu.Lock()
	e.store.missions[mission.ID] = mission
	e.store.mu.Unlock()
	return mission
}
