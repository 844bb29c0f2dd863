package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed audit repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (owner_id, action, entity_type, entity_id, entity_title, source, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.OwnerID, entry.Action, entry.EntityType, entry.EntityID, entry.EntityTitle, entry.Source, entry.At)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

func (r *repository) Window(ctx context.Context, ownerID uuid.UUID, filters TimelineFilters) ([]Entry, error) {
	conditions := "owner_id = $1"
	args := []interface{}{ownerID}
	argPos := 2

	if !filters.From.IsZero() {
		conditions += fmt.Sprintf(" AND occurred_at >= $%d", argPos)
		args = append(args, filters.From)
		argPos++
	}
	if !filters.To.IsZero() {
		conditions += fmt.Sprintf(" AND occurred_at <= $%d", argPos)
		args = append(args, filters.To)
		argPos++
	}
	if filters.EntityType != "" {
		conditions += fmt.Sprintf(" AND entity_type = $%d", argPos)
		args = append(args, filters.EntityType)
		argPos++
	}
	if filters.Action != "" {
		conditions += fmt.Sprintf(" AND action = $%d", argPos)
		args = append(args, filters.Action)
		argPos++
	}

	offset := (filters.Page - 1) * (filters.PageSize - 1)
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
		SELECT action, entity_type, entity_id, entity_title, source, occurred_at
		FROM audit_logs
		WHERE %s
		ORDER BY occurred_at DESC
		LIMIT $%d OFFSET $%d
	`, conditions, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: window: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at pgtype.Timestamptz
		if err := rows.Scan(&e.Action, &e.EntityType, &e.EntityID, &e.EntityTitle, &e.Source, &at); err != nil {
			return nil, err
		}
		e.OwnerID = ownerID
		if at.Valid {
			e.At = at.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
