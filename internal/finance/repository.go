package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-crm/atelier-crm/internal/crm"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed finance repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) InvoiceRows(ctx context.Context, ownerID uuid.UUID, clientFilter string) ([]InvoiceRow, error) {
	query := `
		SELECT i.id, i.number, i.client_id, c.name, i.status, i.total
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.owner_id = $1
	`
	args := []interface{}{ownerID}
	if clientFilter != "" {
		query += ` AND c.name_key LIKE '%' || $2 || '%'`
		args = append(args, crm.NormalizeName(clientFilter))
	}
	query += ` ORDER BY i.issued_on DESC, i.number DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finance: invoice rows: %w", err)
	}
	defer rows.Close()

	var result []InvoiceRow
	for rows.Next() {
		var row InvoiceRow
		if err := rows.Scan(&row.ID, &row.Number, &row.ClientID, &row.ClientName, &row.Status, &row.Total); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
