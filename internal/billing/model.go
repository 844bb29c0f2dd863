// Package billing manages quotes and invoices: line items, server-side
// totals, statuses and document numbers.
package billing

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus enumerates quote and invoice lifecycle states.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusSent      DocumentStatus = "sent"
	StatusAccepted  DocumentStatus = "accepted"
	StatusRefused   DocumentStatus = "refused"
	StatusPaid      DocumentStatus = "paid"
	StatusCancelled DocumentStatus = "cancelled"
)

// Document type keys used for counter scoping and send preparation.
const (
	DocTypeQuote   = "quote"
	DocTypeInvoice = "invoice"
)

// LineItem is one ordered line of a quote or invoice. Totals are always
// recomputed server-side from quantity, unit price and tax rate; caller
// supplied totals are ignored.
type LineItem struct {
	Description  string  `json:"description"`
	Quantite     float64 `json:"quantite"`
	PrixUnitaire float64 `json:"prix_unitaire"`
	TauxTVA      float64 `json:"taux_tva"`
	Position     int     `json:"position"`
	Total        float64 `json:"total"`
}

// Quote is a priced offer under a deal.
type Quote struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   uuid.UUID      `json:"-"`
	ClientID  uuid.UUID      `json:"client_id"`
	DealID    uuid.UUID      `json:"deal_id"`
	Number    string         `json:"numero"`
	Status    DocumentStatus `json:"status"`
	Currency  string         `json:"currency"`
	Subtotal  float64        `json:"subtotal"`
	TaxAmount float64        `json:"tax_amount"`
	Total     float64        `json:"total"`
	IssuedOn  time.Time      `json:"issued_on"`
	Lines     []LineItem     `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Invoice is a billing document under a mission.
type Invoice struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   uuid.UUID      `json:"-"`
	ClientID  uuid.UUID      `json:"client_id"`
	MissionID uuid.UUID      `json:"mission_id"`
	Number    string         `json:"numero"`
	Status    DocumentStatus `json:"status"`
	Currency  string         `json:"currency"`
	Subtotal  float64        `json:"subtotal"`
	TaxAmount float64        `json:"tax_amount"`
	Total     float64        `json:"total"`
	IssuedOn  time.Time      `json:"issued_on"`
	DueOn     time.Time      `json:"due_on"`
	Lines     []LineItem     `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
