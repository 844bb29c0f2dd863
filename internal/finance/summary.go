// Package finance computes invoice aggregates: unpaid amounts, recognized
// revenue and per-client groupings. It never invents a currency or amount;
// everything derives from persisted invoices and the owner's settings.
package finance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-crm/atelier-crm/internal/billing"
)

// QueryType selects the aggregation shape.
type QueryType string

const (
	QueryUnpaid   QueryType = "unpaid"
	QueryRevenue  QueryType = "revenue"
	QueryByClient QueryType = "by_client"
	QueryAll      QueryType = "all"
)

// InvoiceRow is the minimal invoice projection the aggregator reads.
type InvoiceRow struct {
	ID         uuid.UUID
	Number     string
	ClientID   uuid.UUID
	ClientName string
	Status     billing.DocumentStatus
	Total      float64
}

// Repository reads invoice rows for an owner, optionally filtered by a
// client-name substring (already normalized by the caller's resolver flow).
type Repository interface {
	InvoiceRows(ctx context.Context, ownerID uuid.UUID, clientFilter string) ([]InvoiceRow, error)
}

// InvoiceBreakdown is one invoice inside a summary.
type InvoiceBreakdown struct {
	ID         uuid.UUID `json:"id"`
	Number     string    `json:"numero"`
	ClientName string    `json:"client"`
	Status     string    `json:"status"`
	Total      float64   `json:"total"`
}

// ClientGroup aggregates one client's invoices.
type ClientGroup struct {
	ClientName string  `json:"client"`
	Total      float64 `json:"total"`
	Unpaid     float64 `json:"unpaid"`
	Count      int     `json:"count"`
}

// Summary is the aggregation result. Currency and its display symbol are
// resolved once per call from company settings.
type Summary struct {
	Query    QueryType          `json:"query"`
	Currency string             `json:"currency"`
	Symbol   string             `json:"symbol"`
	Total    float64            `json:"total"`
	Count    int                `json:"count"`
	Unpaid   float64            `json:"unpaid,omitempty"`
	Revenue  float64            `json:"revenue,omitempty"`
	Invoices []InvoiceBreakdown `json:"invoices,omitempty"`
	Clients  []ClientGroup      `json:"clients,omitempty"`
}

// Service runs summary queries.
type Service struct {
	repo     Repository
	settings billing.SettingsSource
}

// NewService creates a finance service.
func NewService(repo Repository, settings billing.SettingsSource) *Service {
	return &Service{repo: repo, settings: settings}
}

// Summarize aggregates the owner's invoices. clientFilter narrows rows to
// clients whose name contains the given substring; empty means all.
func (s *Service) Summarize(ctx context.Context, ownerID uuid.UUID, query QueryType, clientFilter string) (*Summary, error) {
	var settings *billing.Settings
	var rows []InvoiceRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if settings, err = s.settings.Get(gctx, ownerID); err != nil {
			return fmt.Errorf("finance: load settings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if rows, err = s.repo.InvoiceRows(gctx, ownerID, clientFilter); err != nil {
			return fmt.Errorf("finance: load invoices: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	currency := settings.CurrencyOrDefault()

	summary := &Summary{
		Query:    query,
		Currency: currency,
		Symbol:   billing.CurrencySymbol(currency),
	}

	switch query {
	case QueryUnpaid:
		for _, row := range rows {
			if row.Status == billing.StatusPaid || row.Status == billing.StatusCancelled {
				continue
			}
			summary.Total += row.Total
			summary.Count++
			summary.Invoices = append(summary.Invoices, breakdown(row))
		}
	case QueryRevenue:
		for _, row := range rows {
			if row.Status != billing.StatusPaid {
				continue
			}
			summary.Total += row.Total
			summary.Count++
		}
	case QueryByClient, QueryAll:
		groups := make(map[string]*ClientGroup)
		for _, row := range rows {
			if row.Status == billing.StatusCancelled {
				continue
			}
			g, ok := groups[row.ClientName]
			if !ok {
				g = &ClientGroup{ClientName: row.ClientName}
				groups[row.ClientName] = g
			}
			g.Total += row.Total
			g.Count++
			summary.Total += row.Total
			summary.Count++
			if row.Status == billing.StatusPaid {
				summary.Revenue += row.Total
			} else {
				g.Unpaid += row.Total
				summary.Unpaid += row.Total
			}
		}
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			summary.Clients = append(summary.Clients, *groups[name])
		}
	default:
		return nil, fmt.Errorf("finance: unknown query type %q", query)
	}

	return summary, nil
}

func breakdown(row InvoiceRow) InvoiceBreakdown {
	return InvoiceBreakdown{
		ID:         row.ID,
		Number:     row.Number,
		ClientName: row.ClientName,
		Status:     string(row.Status),
		Total:      row.Total,
	}
}
