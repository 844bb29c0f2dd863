package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidStatus reports a status value outside the document lifecycle.
var ErrInvalidStatus = errors.New("invalid document status")

// NumberAllocator allocates the next formatted document number for a scope.
type NumberAllocator interface {
	Allocate(ctx context.Context, ownerID uuid.UUID, docType, pattern string, when time.Time) (string, error)
}

// MissionRecomputer refreshes a mission's remaining-to-invoice amount.
type MissionRecomputer interface {
	RecomputeBilling(ctx context.Context, ownerID, missionID uuid.UUID) (float64, error)
}

// Service coordinates quote and invoice operations. Totals are always
// recomputed from line items; numbers come from the allocator; invoice
// mutations refresh the parent mission's billing remainder.
type Service struct {
	repo      Repository
	settings  SettingsSource
	allocator NumberAllocator
	missions  MissionRecomputer
	clock     func() time.Time
}

// NewService creates a billing service.
func NewService(repo Repository, settings SettingsSource, allocator NumberAllocator, missions MissionRecomputer) *Service {
	return &Service{
		repo:      repo,
		settings:  settings,
		allocator: allocator,
		missions:  missions,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// LineInput is a caller-supplied line. TauxTVA nil means the owner's
// configured default rate.
type LineInput struct {
	Description  string
	Quantite     float64
	PrixUnitaire float64
	TauxTVA      *float64
}

// CreateQuoteRequest carries the fields accepted on quote creation. DealID
// and ClientID must already be resolved by the caller.
type CreateQuoteRequest struct {
	OwnerID  uuid.UUID
	ClientID uuid.UUID
	DealID   uuid.UUID
	Currency string
	IssuedOn time.Time
	Items    []LineInput
}

// CreateQuote allocates a number, computes totals and persists the quote.
// The number is allocated before the insert: a failed insert leaves a gap
// in the sequence, never a duplicate.
func (s *Service) CreateQuote(ctx context.Context, req CreateQuoteRequest) (*Quote, error) {
	if len(req.Items) == 0 {
		return nil, errors.New("quote requires at least one line item")
	}
	settings, err := s.settings.Get(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	issuedOn := req.IssuedOn
	if issuedOn.IsZero() {
		issuedOn = s.clock()
	}

	number, err := s.allocator.Allocate(ctx, req.OwnerID, DocTypeQuote, settings.PatternFor(DocTypeQuote), issuedOn)
	if err != nil {
		return nil, err
	}

	lines, subtotal, taxAmount, total := s.buildLines(req.Items, settings)
	quote := Quote{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		ClientID:  req.ClientID,
		DealID:    req.DealID,
		Number:    number,
		Status:    StatusDraft,
		Currency:  currencyOr(req.Currency, settings),
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     total,
		IssuedOn:  issuedOn,
		Lines:     lines,
		CreatedAt: s.clock(),
	}
	quote.UpdatedAt = quote.CreatedAt

	if err := s.repo.CreateQuote(ctx, quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// UpdateQuoteRequest carries a partial quote update. Items nil leaves lines
// and totals untouched.
type UpdateQuoteRequest struct {
	Status *DocumentStatus
	Items  []LineInput
}

// UpdateQuote applies the update, recomputing totals when lines change.
func (s *Service) UpdateQuote(ctx context.Context, ownerID, id uuid.UUID, req UpdateQuoteRequest) (*Quote, error) {
	updates := make(map[string]interface{})
	var lines []LineItem

	if req.Status != nil {
		if !validQuoteStatus(*req.Status) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *req.Status)
		}
		updates["status"] = *req.Status
	}
	if req.Items != nil {
		settings, err := s.settings.Get(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		var subtotal, taxAmount, total float64
		lines, subtotal, taxAmount, total = s.buildLines(req.Items, settings)
		updates["subtotal"] = subtotal
		updates["tax_amount"] = taxAmount
		updates["total"] = total
	}

	if len(updates) > 0 || lines != nil {
		if err := s.repo.UpdateQuote(ctx, ownerID, id, updates, lines); err != nil {
			return nil, err
		}
	}
	return s.repo.GetQuote(ctx, ownerID, id)
}

// GetQuote fetches one quote with its lines.
func (s *Service) GetQuote(ctx context.Context, ownerID, id uuid.UUID) (*Quote, error) {
	return s.repo.GetQuote(ctx, ownerID, id)
}

// ListQuotes returns quotes, most recent first.
func (s *Service) ListQuotes(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Quote, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListQuotes(ctx, ownerID, limit, offset)
}

// CreateInvoiceRequest carries the fields accepted on invoice creation.
// MissionID and ClientID must already be resolved by the caller.
type CreateInvoiceRequest struct {
	OwnerID   uuid.UUID
	ClientID  uuid.UUID
	MissionID uuid.UUID
	Currency  string
	IssuedOn  time.Time
	DueOn     time.Time
	Items     []LineInput
}

// CreateInvoice allocates a number, computes totals, persists the invoice
// and refreshes the mission's remaining-to-invoice amount.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	if len(req.Items) == 0 {
		return nil, errors.New("invoice requires at least one line item")
	}
	settings, err := s.settings.Get(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	issuedOn := req.IssuedOn
	if issuedOn.IsZero() {
		issuedOn = s.clock()
	}
	dueOn := req.DueOn
	if dueOn.IsZero() {
		dueOn = issuedOn.AddDate(0, 0, 30)
	}

	number, err := s.allocator.Allocate(ctx, req.OwnerID, DocTypeInvoice, settings.PatternFor(DocTypeInvoice), issuedOn)
	if err != nil {
		return nil, err
	}

	lines, subtotal, taxAmount, total := s.buildLines(req.Items, settings)
	invoice := Invoice{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		ClientID:  req.ClientID,
		MissionID: req.MissionID,
		Number:    number,
		Status:    StatusDraft,
		Currency:  currencyOr(req.Currency, settings),
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     total,
		IssuedOn:  issuedOn,
		DueOn:     dueOn,
		Lines:     lines,
		CreatedAt: s.clock(),
	}
	invoice.UpdatedAt = invoice.CreatedAt

	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	if _, err := s.missions.RecomputeBilling(ctx, req.OwnerID, req.MissionID); err != nil {
		return nil, fmt.Errorf("recompute mission billing: %w", err)
	}
	return &invoice, nil
}

// UpdateInvoiceRequest carries a partial invoice update.
type UpdateInvoiceRequest struct {
	Status *DocumentStatus
	Items  []LineInput
}

// UpdateInvoice applies the update and refreshes the mission remainder.
func (s *Service) UpdateInvoice(ctx context.Context, ownerID, id uuid.UUID, req UpdateInvoiceRequest) (*Invoice, error) {
	updates := make(map[string]interface{})
	var lines []LineItem

	if req.Status != nil {
		if !validInvoiceStatus(*req.Status) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *req.Status)
		}
		updates["status"] = *req.Status
	}
	if req.Items != nil {
		settings, err := s.settings.Get(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		var subtotal, taxAmount, total float64
		lines, subtotal, taxAmount, total = s.buildLines(req.Items, settings)
		updates["subtotal"] = subtotal
		updates["tax_amount"] = taxAmount
		updates["total"] = total
	}

	if len(updates) > 0 || lines != nil {
		if err := s.repo.UpdateInvoice(ctx, ownerID, id, updates, lines); err != nil {
			return nil, err
		}
	}
	invoice, err := s.repo.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.missions.RecomputeBilling(ctx, ownerID, invoice.MissionID); err != nil {
		return nil, fmt.Errorf("recompute mission billing: %w", err)
	}
	return invoice, nil
}

// GetInvoice fetches one invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, ownerID, id)
}

// ListInvoices returns invoices, most recent first.
func (s *Service) ListInvoices(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Invoice, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListInvoices(ctx, ownerID, limit, offset)
}

// Settings exposes the owner's settings to other components.
func (s *Service) Settings(ctx context.Context, ownerID uuid.UUID) (*Settings, error) {
	return s.settings.Get(ctx, ownerID)
}

func (s *Service) buildLines(items []LineInput, settings *Settings) (lines []LineItem, subtotal, taxAmount, total float64) {
	defaultRate := settings.TaxRateOrDefault()
	for i, item := range items {
		rate := defaultRate
		if item.TauxTVA != nil {
			rate = *item.TauxTVA
		}
		base, tax, lineTotal := CalculateLineTotals(item.Quantite, item.PrixUnitaire, rate)
		subtotal += base
		taxAmount += tax
		total += lineTotal
		lines = append(lines, LineItem{
			Description:  item.Description,
			Quantite:     item.Quantite,
			PrixUnitaire: item.PrixUnitaire,
			TauxTVA:      rate,
			Position:     i + 1,
			Total:        lineTotal,
		})
	}
	return lines, round2(subtotal), round2(taxAmount), round2(total)
}

func currencyOr(requested string, settings *Settings) string {
	if requested != "" {
		return requested
	}
	return settings.CurrencyOrDefault()
}

func validQuoteStatus(s DocumentStatus) bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRefused, StatusCancelled:
		return true
	default:
		return false
	}
}

func validInvoiceStatus(s DocumentStatus) bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusCancelled:
		return true
	default:
		return false
	}
}
