// Package deals manages sales opportunities, the missions created from won
// deals, and the lightweight documents attached to either.
package deals

import (
	"time"

	"github.com/google/uuid"
)

// DealStatus enumerates deal lifecycle states.
type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

// Deal is a sales opportunity. It is the required parent of quotes,
// proposals and briefs.
type Deal struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   uuid.UUID  `json:"-"`
	ClientID  uuid.UUID  `json:"client_id"`
	Title     string     `json:"title"`
	Status    DealStatus `json:"status"`
	Amount    float64    `json:"amount"`
	Currency  string     `json:"currency,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MissionStatus enumerates mission lifecycle states.
type MissionStatus string

const (
	MissionActive MissionStatus = "active"
	MissionDone   MissionStatus = "done"
)

// Mission is work in progress created from a won deal. It is the required
// parent of invoices, delivery notes and review requests.
// ResteAFacturer is derived: total minus the sum of non-cancelled invoice
// totals, recomputed whenever an invoice under the mission changes.
type Mission struct {
	ID             uuid.UUID     `json:"id"`
	OwnerID        uuid.UUID     `json:"-"`
	DealID         uuid.UUID     `json:"deal_id"`
	ClientID       uuid.UUID     `json:"client_id"`
	Title          string        `json:"title"`
	Status         MissionStatus `json:"status"`
	TotalAmount    float64       `json:"total_amount"`
	ResteAFacturer float64       `json:"reste_a_facturer"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// DocumentKind distinguishes the lightweight attached documents.
type DocumentKind string

const (
	DocProposal      DocumentKind = "proposal"
	DocBrief         DocumentKind = "brief"
	DocDeliveryNote  DocumentKind = "delivery_note"
	DocReviewRequest DocumentKind = "review_request"
)

// Document is a proposal or brief under a deal, or a delivery note or review
// request under a mission. Exactly one of DealID/MissionID is set, depending
// on the kind.
type Document struct {
	ID        uuid.UUID    `json:"id"`
	OwnerID   uuid.UUID    `json:"-"`
	Kind      DocumentKind `json:"kind"`
	DealID    uuid.UUID    `json:"deal_id,omitempty"`
	MissionID uuid.UUID    `json:"mission_id,omitempty"`
	Title     string       `json:"title"`
	Content   string       `json:"content,omitempty"`
	Recipient string       `json:"recipient,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ParentOf reports which parent link a document kind requires.
func ParentOf(kind DocumentKind) string {
	switch kind {
	case DocProposal, DocBrief:
		return "deal"
	case DocDeliveryNote, DocReviewRequest:
		return "mission"
	default:
		return ""
	}
}
