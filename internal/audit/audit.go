// Package audit durably records every mutating action taken through the
// assistant engine and serves the timeline read side.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entry represents a record stored in audit_logs.
type Entry struct {
	OwnerID     uuid.UUID `json:"-"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	EntityTitle string    `json:"entity_title"`
	Source      string    `json:"source"`
	At          time.Time `json:"at"`
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Repository provides storage access for audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	Window(ctx context.Context, ownerID uuid.UUID, filters TimelineFilters) ([]Entry, error)
}

// TimelineFilters narrows the timeline listing.
type TimelineFilters struct {
	From       time.Time
	To         time.Time
	EntityType string
	Action     string
	Page       int
	PageSize   int
}

// PagingInfo describes the window returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

// Service coordinates audit writes and timeline reads.
type Service struct {
	repo Repository
}

// NewService creates an audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record persists the log entry after validating the required fields.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if entry.Action == "" || entry.EntityType == "" || entry.EntityID == "" {
		return errors.New("audit: entry requires action/entity_type/entity_id")
	}
	if entry.Source == "" {
		return errors.New("audit: entry requires a source")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	return s.repo.Insert(ctx, entry)
}

// Timeline returns audit entries for the owner with paging. It fetches one
// extra row to detect whether a next page exists.
func (s *Service) Timeline(ctx context.Context, ownerID uuid.UUID, filters TimelineFilters) (Result, error) {
	if s == nil || s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	window := filters
	window.Page = page
	window.PageSize = pageSize + 1

	rows, err := s.repo.Window(ctx, ownerID, window)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}
