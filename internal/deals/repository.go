package deals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-crm/atelier-crm/internal/crm"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// Repository provides storage access for deals, missions and their documents.
type Repository interface {
	CreateDeal(ctx context.Context, deal Deal) error
	UpdateDeal(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error
	GetDeal(ctx context.Context, ownerID, id uuid.UUID) (*Deal, error)
	ListDeals(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Deal, int, error)
	SearchDealByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Deal, error)

	CreateMission(ctx context.Context, mission Mission) error
	UpdateMission(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error
	GetMission(ctx context.Context, ownerID, id uuid.UUID) (*Mission, error)
	ListMissions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Mission, int, error)
	SearchMissionByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Mission, error)
	// RefreshMissionBilling recomputes reste_a_facturer from the mission's
	// non-cancelled invoices in a single statement.
	RefreshMissionBilling(ctx context.Context, ownerID, missionID uuid.UUID) (float64, error)

	CreateDocument(ctx context.Context, doc Document) error
	ListDocuments(ctx context.Context, ownerID uuid.UUID, kind DocumentKind, limit, offset int) ([]Document, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed deals repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateDeal(ctx context.Context, deal Deal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deals (id, owner_id, client_id, title, title_key, status, amount, currency, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, deal.ID, deal.OwnerID, deal.ClientID, deal.Title, crm.NormalizeName(deal.Title),
		deal.Status, deal.Amount, deal.Currency, deal.Notes, deal.CreatedAt)
	if err != nil {
		return fmt.Errorf("deals: create deal: %w", err)
	}
	return nil
}

func (r *repository) UpdateDeal(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	query := "UPDATE deals SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, column := range []string{"title", "status", "amount", "currency", "notes"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
			if column == "title" {
				query += fmt.Sprintf(", title_key = $%d", argPos)
				args = append(args, crm.NormalizeName(fmt.Sprint(v)))
				argPos++
			}
		}
	}

	query += fmt.Sprintf(" WHERE owner_id = $%d AND id = $%d", argPos, argPos+1)
	args = append(args, ownerID, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deals: update deal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const dealColumns = `id, owner_id, client_id, title, status, amount, currency, notes, created_at, updated_at`

func (r *repository) GetDeal(ctx context.Context, ownerID, id uuid.UUID) (*Deal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE owner_id = $1 AND id = $2`, ownerID, id)
	return scanDeal(row)
}

func (r *repository) SearchDealByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Deal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+dealColumns+`
		FROM deals
		WHERE owner_id = $1 AND title_key LIKE '%' || $2 || '%'
		ORDER BY title ASC
		LIMIT 1
	`, ownerID, crm.NormalizeName(needle))
	return scanDeal(row)
}

func (r *repository) ListDeals(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Deal, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deals WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("deals: count deals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+dealColumns+`
		FROM deals
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("deals: list deals: %w", err)
	}
	defer rows.Close()

	var deals []Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, 0, err
		}
		deals = append(deals, *d)
	}
	return deals, total, rows.Err()
}

func (r *repository) CreateMission(ctx context.Context, mission Mission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO missions (id, owner_id, deal_id, client_id, title, title_key, status, total_amount, reste_a_facturer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, mission.ID, mission.OwnerID, mission.DealID, mission.ClientID, mission.Title,
		crm.NormalizeName(mission.Title), mission.Status, mission.TotalAmount,
		mission.ResteAFacturer, mission.CreatedAt)
	if err != nil {
		return fmt.Errorf("deals: create mission: %w", err)
	}
	return nil
}

func (r *repository) UpdateMission(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	query := "UPDATE missions SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, column := range []string{"title", "status", "total_amount"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
			if column == "title" {
				query += fmt.Sprintf(", title_key = $%d", argPos)
				args = append(args, crm.NormalizeName(fmt.Sprint(v)))
				argPos++
			}
		}
	}

	query += fmt.Sprintf(" WHERE owner_id = $%d AND id = $%d", argPos, argPos+1)
	args = append(args, ownerID, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deals: update mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const missionColumns = `id, owner_id, deal_id, client_id, title, status, total_amount, reste_a_facturer, created_at, updated_at`

func (r *repository) GetMission(ctx context.Context, ownerID, id uuid.UUID) (*Mission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE owner_id = $1 AND id = $2`, ownerID, id)
	return scanMission(row)
}

func (r *repository) SearchMissionByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Mission, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+missionColumns+`
		FROM missions
		WHERE owner_id = $1 AND title_key LIKE '%' || $2 || '%'
		ORDER BY title ASC
		LIMIT 1
	`, ownerID, crm.NormalizeName(needle))
	return scanMission(row)
}

func (r *repository) ListMissions(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Mission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM missions WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("deals: count missions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+missionColumns+`
		FROM missions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("deals: list missions: %w", err)
	}
	defer rows.Close()

	var missions []Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, 0, err
		}
		missions = append(missions, *m)
	}
	return missions, total, rows.Err()
}

func (r *repository) RefreshMissionBilling(ctx context.Context, ownerID, missionID uuid.UUID) (float64, error) {
	var remaining float64
	err := r.pool.QueryRow(ctx, `
		UPDATE missions m
		SET reste_a_facturer = m.total_amount - COALESCE((
			SELECT SUM(i.total)
			FROM invoices i
			WHERE i.mission_id = m.id AND i.status <> 'cancelled'
		), 0),
		    updated_at = NOW()
		WHERE m.owner_id = $1 AND m.id = $2
		RETURNING reste_a_facturer
	`, ownerID, missionID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("deals: refresh mission billing: %w", err)
	}
	return remaining, nil
}

func (r *repository) CreateDocument(ctx context.Context, doc Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deal_documents (id, owner_id, kind, deal_id, mission_id, title, content, recipient, created_at)
		VALUES ($1, $2, $3, NULLIF($4, '00000000-0000-0000-0000-000000000000')::uuid,
		        NULLIF($5, '00000000-0000-0000-0000-000000000000')::uuid, $6, $7, $8, $9)
	`, doc.ID, doc.OwnerID, doc.Kind, doc.DealID.String(), doc.MissionID.String(),
		doc.Title, doc.Content, doc.Recipient, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("deals: create document: %w", err)
	}
	return nil
}

func (r *repository) ListDocuments(ctx context.Context, ownerID uuid.UUID, kind DocumentKind, limit, offset int) ([]Document, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM deal_documents WHERE owner_id = $1 AND kind = $2`, ownerID, kind).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("deals: count documents: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, kind, COALESCE(deal_id, '00000000-0000-0000-0000-000000000000'),
		       COALESCE(mission_id, '00000000-0000-0000-0000-000000000000'),
		       title, content, recipient, created_at
		FROM deal_documents
		WHERE owner_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, ownerID, kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("deals: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var content, recipient pgtype.Text
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Kind, &d.DealID, &d.MissionID,
			&d.Title, &content, &recipient, &createdAt); err != nil {
			return nil, 0, err
		}
		if content.Valid {
			d.Content = content.String
		}
		if recipient.Valid {
			d.Recipient = recipient.String
		}
		if createdAt.Valid {
			d.CreatedAt = createdAt.Time
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

func scanDeal(row pgx.Row) (*Deal, error) {
	var d Deal
	var currency, notes pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&d.ID, &d.OwnerID, &d.ClientID, &d.Title, &d.Status, &d.Amount, &currency, &notes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if currency.Valid {
		d.Currency = currency.String
	}
	if notes.Valid {
		d.Notes = notes.String
	}
	if createdAt.Valid {
		d.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		d.UpdatedAt = updatedAt.Time
	}
	return &d, nil
}

func scanMission(row pgx.Row) (*Mission, error) {
	var m Mission
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&m.ID, &m.OwnerID, &m.DealID, &m.ClientID, &m.Title, &m.Status,
		&m.TotalAmount, &m.ResteAFacturer, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if createdAt.Valid {
		m.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		m.UpdatedAt = updatedAt.Time
	}
	return &m, nil
}
