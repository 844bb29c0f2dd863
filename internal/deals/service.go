package deals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDealNotWon is returned when a mission is created from a deal that has
// not been marked won.
var ErrDealNotWon = errors.New("mission requires a won deal")

// Service coordinates deal and mission operations.
type Service struct {
	repo  Repository
	clock func() time.Time
}

// NewService creates a deals service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateDealRequest carries the fields accepted on deal creation.
type CreateDealRequest struct {
	OwnerID  uuid.UUID
	ClientID uuid.UUID
	Title    string
	Amount   float64
	Currency string
	Notes    string
}

// CreateDeal validates and persists a new open deal.
func (s *Service) CreateDeal(ctx context.Context, req CreateDealRequest) (*Deal, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("deal title is required")
	}
	if req.ClientID == uuid.Nil {
		return nil, errors.New("deal requires a client")
	}
	deal := Deal{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		ClientID:  req.ClientID,
		Title:     strings.TrimSpace(req.Title),
		Status:    DealOpen,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Notes:     req.Notes,
		CreatedAt: s.clock(),
	}
	deal.UpdatedAt = deal.CreatedAt
	if err := s.repo.CreateDeal(ctx, deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

// UpdateDeal applies a partial update and returns the fresh record.
func (s *Service) UpdateDeal(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) (*Deal, error) {
	if v, ok := updates["status"]; ok {
		status := DealStatus(fmt.Sprint(v))
		if status != DealOpen && status != DealWon && status != DealLost {
			return nil, fmt.Errorf("unknown deal status %q", status)
		}
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateDeal(ctx, ownerID, id, updates); err != nil {
			return nil, err
		}
	}
	return s.repo.GetDeal(ctx, ownerID, id)
}

// GetDeal fetches one deal.
func (s *Service) GetDeal(ctx context.Context, ownerID, id uuid.UUID) (*Deal, error) {
	return s.repo.GetDeal(ctx, ownerID, id)
}

// ListDeals returns deals, most recent first.
func (s *Service) ListDeals(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Deal, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListDeals(ctx, ownerID, limit, offset)
}

// FindDealByName runs the owner-scoped substring search.
func (s *Service) FindDealByName(ctx context.Context, ownerID uuid.UUID, name string) (*Deal, error) {
	return s.repo.SearchDealByName(ctx, ownerID, name)
}

// CreateMissionRequest carries the fields accepted on mission creation.
type CreateMissionRequest struct {
	OwnerID     uuid.UUID
	DealID      uuid.UUID
	Title       string
	TotalAmount float64
}

// CreateMission creates a mission from a won deal. The full amount starts
// as remaining to invoice.
func (s *Service) CreateMission(ctx context.Context, req CreateMissionRequest) (*Mission, error) {
	if req.DealID == uuid.Nil {
		return nil, errors.New("mission requires a deal")
	}
	deal, err := s.repo.GetDeal(ctx, req.OwnerID, req.DealID)
	if err != nil {
		return nil, fmt.Errorf("verify deal: %w", err)
	}
	if deal.Status != DealWon {
		return nil, ErrDealNotWon
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = deal.Title
	}
	total := req.TotalAmount
	if total == 0 {
		total = deal.Amount
	}

	mission := Mission{
		ID:             uuid.New(),
		OwnerID:        req.OwnerID,
		DealID:         deal.ID,
		ClientID:       deal.ClientID,
		Title:          title,
		Status:         MissionActive,
		TotalAmount:    total,
		ResteAFacturer: total,
		CreatedAt:      s.clock(),
	}
	mission.UpdatedAt = mission.CreatedAt
	if err := s.repo.CreateMission(ctx, mission); err != nil {
		return nil, err
	}
	return &mission, nil
}

// UpdateMission applies a partial update, refreshes the billing remainder
// when the total changed, and returns the fresh record.
func (s *Service) UpdateMission(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) (*Mission, error) {
	if len(updates) > 0 {
		if err := s.repo.UpdateMission(ctx, ownerID, id, updates); err != nil {
			return nil, err
		}
	}
	if _, ok := updates["total_amount"]; ok {
		if _, err := s.repo.RefreshMissionBilling(ctx, ownerID, id); err != nil {
			return nil, err
		}
	}
	return s.repo.GetMission(ctx, ownerID, id)
}

// GetMission fetches one mission.
func (s *Service) GetMission(ctx context.Context, ownerID, id uuid.UUID) (*Mission, error) {
	return s.repo.GetMission(ctx, ownerID, id)
}

// ListMissions returns missions, most recent first.
func (s *Service) ListMissions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Mission, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListMissions(ctx, ownerID, limit, offset)
}

// FindMissionByName runs the owner-scoped substring search.
func (s *Service) FindMissionByName(ctx context.Context, ownerID uuid.UUID, name string) (*Mission, error) {
	return s.repo.SearchMissionByName(ctx, ownerID, name)
}

// RecomputeBilling refreshes reste_a_facturer after an invoice change and
// returns the new remainder.
func (s *Service) RecomputeBilling(ctx context.Context, ownerID, missionID uuid.UUID) (float64, error) {
	return s.repo.RefreshMissionBilling(ctx, ownerID, missionID)
}

// CreateDocumentRequest carries the fields accepted on document creation.
// The parent id must already be resolved and verified by the caller.
type CreateDocumentRequest struct {
	OwnerID   uuid.UUID
	Kind      DocumentKind
	DealID    uuid.UUID
	MissionID uuid.UUID
	Title     string
	Content   string
	Recipient string
}

// CreateDocument persists a proposal, brief, delivery note or review request.
func (s *Service) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	switch ParentOf(req.Kind) {
	case "deal":
		if req.DealID == uuid.Nil {
			return nil, errors.New("document requires a deal")
		}
		if _, err := s.repo.GetDeal(ctx, req.OwnerID, req.DealID); err != nil {
			return nil, fmt.Errorf("verify deal: %w", err)
		}
	case "mission":
		if req.MissionID == uuid.Nil {
			return nil, errors.New("document requires a mission")
		}
		if _, err := s.repo.GetMission(ctx, req.OwnerID, req.MissionID); err != nil {
			return nil, fmt.Errorf("verify mission: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown document kind %q", req.Kind)
	}

	doc := Document{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Kind:      req.Kind,
		DealID:    req.DealID,
		MissionID: req.MissionID,
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Recipient: req.Recipient,
		CreatedAt: s.clock(),
	}
	if doc.Title == "" {
		return nil, errors.New("document title is required")
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns documents of one kind, most recent first.
func (s *Service) ListDocuments(ctx context.Context, ownerID uuid.UUID, kind DocumentKind, limit, offset int) ([]Document, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListDocuments(ctx, ownerID, kind, limit, offset)
}
