package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-crm/atelier-crm/internal/platform/db"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// Repository provides storage access for quotes and invoices. Creation
// writes the header and its lines atomically; a failure leaves no rows.
type Repository interface {
	CreateQuote(ctx context.Context, quote Quote) error
	UpdateQuote(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, lines []LineItem) error
	GetQuote(ctx context.Context, ownerID, id uuid.UUID) (*Quote, error)
	ListQuotes(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Quote, int, error)

	CreateInvoice(ctx context.Context, invoice Invoice) error
	UpdateInvoice(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, lines []LineItem) error
	GetInvoice(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Invoice, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed billing repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateQuote(ctx context.Context, q Quote) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotes (id, owner_id, client_id, deal_id, number, status, currency, subtotal, tax_amount, total, issued_on, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		`, q.ID, q.OwnerID, q.ClientID, q.DealID, q.Number, q.Status, q.Currency,
			q.Subtotal, q.TaxAmount, q.Total, q.IssuedOn, q.CreatedAt)
		if err != nil {
			return fmt.Errorf("billing: create quote: %w", err)
		}
		return insertLines(ctx, tx, "quote_lines", "quote_id", q.ID, q.Lines)
	})
}

func (r *repository) UpdateQuote(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, lines []LineItem) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := updateHeader(ctx, tx, "quotes", ownerID, id, updates); err != nil {
			return err
		}
		if lines == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1`, id); err != nil {
			return fmt.Errorf("billing: delete quote lines: %w", err)
		}
		return insertLines(ctx, tx, "quote_lines", "quote_id", id, lines)
	})
}

const quoteColumns = `id, owner_id, client_id, deal_id, number, status, currency, subtotal, tax_amount, total, issued_on, created_at, updated_at`

func (r *repository) GetQuote(ctx context.Context, ownerID, id uuid.UUID) (*Quote, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE owner_id = $1 AND id = $2`, ownerID, id)
	q, err := scanQuote(row)
	if err != nil {
		return nil, err
	}
	q.Lines, err = r.fetchLines(ctx, "quote_lines", "quote_id", id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) ListQuotes(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Quote, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("billing: count quotes: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+quoteColumns+` FROM quotes
		WHERE owner_id = $1
		ORDER BY issued_on DESC, number DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("billing: list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, total, rows.Err()
}

func (r *repository) CreateInvoice(ctx context.Context, inv Invoice) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (id, owner_id, client_id, mission_id, number, status, currency, subtotal, tax_amount, total, issued_on, due_on, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		`, inv.ID, inv.OwnerID, inv.ClientID, inv.MissionID, inv.Number, inv.Status, inv.Currency,
			inv.Subtotal, inv.TaxAmount, inv.Total, inv.IssuedOn, inv.DueOn, inv.CreatedAt)
		if err != nil {
			return fmt.Errorf("billing: create invoice: %w", err)
		}
		return insertLines(ctx, tx, "invoice_lines", "invoice_id", inv.ID, inv.Lines)
	})
}

func (r *repository) UpdateInvoice(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}, lines []LineItem) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := updateHeader(ctx, tx, "invoices", ownerID, id, updates); err != nil {
			return err
		}
		if lines == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, id); err != nil {
			return fmt.Errorf("billing: delete invoice lines: %w", err)
		}
		return insertLines(ctx, tx, "invoice_lines", "invoice_id", id, lines)
	})
}

const invoiceColumns = `id, owner_id, client_id, mission_id, number, status, currency, subtotal, tax_amount, total, issued_on, due_on, created_at, updated_at`

func (r *repository) GetInvoice(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = $1 AND id = $2`, ownerID, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}
	inv.Lines, err = r.fetchLines(ctx, "invoice_lines", "invoice_id", id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) ListInvoices(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Invoice, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("billing: count invoices: %w", err)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE owner_id = $1
		ORDER BY issued_on DESC, number DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("billing: list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

func insertLines(ctx context.Context, tx pgx.Tx, table, fk string, docID uuid.UUID, lines []LineItem) error {
	for i, line := range lines {
		position := line.Position
		if position == 0 {
			position = i + 1
		}
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (%s, description, quantite, prix_unitaire, taux_tva, position, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, table, fk), docID, line.Description, line.Quantite, line.PrixUnitaire, line.TauxTVA, position, line.Total)
		if err != nil {
			return fmt.Errorf("billing: insert line: %w", err)
		}
	}
	return nil
}

func updateHeader(ctx context.Context, tx pgx.Tx, table string, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	query := fmt.Sprintf("UPDATE %s SET updated_at = NOW()", table)
	var args []interface{}
	argPos := 1

	for _, column := range []string{"status", "currency", "subtotal", "tax_amount", "total", "issued_on", "due_on"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE owner_id = $%d AND id = $%d", argPos, argPos+1)
	args = append(args, ownerID, id)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("billing: update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) fetchLines(ctx context.Context, table, fk string, docID uuid.UUID) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT description, quantite, prix_unitaire, taux_tva, position, total
		FROM %s WHERE %s = $1 ORDER BY position ASC
	`, table, fk), docID)
	if err != nil {
		return nil, fmt.Errorf("billing: fetch lines: %w", err)
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.Description, &l.Quantite, &l.PrixUnitaire, &l.TauxTVA, &l.Position, &l.Total); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var issuedOn pgtype.Date
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&q.ID, &q.OwnerID, &q.ClientID, &q.DealID, &q.Number, &q.Status, &q.Currency,
		&q.Subtotal, &q.TaxAmount, &q.Total, &issuedOn, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if issuedOn.Valid {
		q.IssuedOn = issuedOn.Time
	}
	if createdAt.Valid {
		q.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		q.UpdatedAt = updatedAt.Time
	}
	return &q, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var issuedOn, dueOn pgtype.Date
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&inv.ID, &inv.OwnerID, &inv.ClientID, &inv.MissionID, &inv.Number, &inv.Status, &inv.Currency,
		&inv.Subtotal, &inv.TaxAmount, &inv.Total, &issuedOn, &dueOn, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if issuedOn.Valid {
		inv.IssuedOn = issuedOn.Time
	}
	if dueOn.Valid {
		inv.DueOn = dueOn.Time
	}
	if createdAt.Valid {
		inv.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		inv.UpdatedAt = updatedAt.Time
	}
	return &inv, nil
}
