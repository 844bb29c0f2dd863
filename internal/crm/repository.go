package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// Repository provides storage access for clients and contacts.
type Repository interface {
	CreateClient(ctx context.Context, client Client) error
	UpdateClient(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error
	GetClient(ctx context.Context, ownerID, id uuid.UUID) (*Client, error)
	ListClients(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Client, int, error)
	// SearchClientByName performs one case-insensitive substring search on the
	// normalized name, ordered by name ascending, returning the first match.
	SearchClientByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Client, error)

	CreateContact(ctx context.Context, contact Contact) error
	GetContact(ctx context.Context, ownerID, id uuid.UUID) (*Contact, error)
	ListContacts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Contact, int, error)
	SearchContactByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Contact, error)

	UpsertLink(ctx context.Context, ownerID uuid.UUID, link ClientContact) error
	ContactsForClient(ctx context.Context, ownerID, clientID uuid.UUID) ([]ContactWithRoles, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed crm repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateClient(ctx context.Context, client Client) error {
	fields, err := json.Marshal(client.CustomFields)
	if err != nil {
		return fmt.Errorf("crm: marshal custom fields: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO clients (id, owner_id, kind, name, name_key, email, phone, address, custom_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, client.ID, client.OwnerID, client.Kind, client.Name, NormalizeName(client.Name),
		client.Email, client.Phone, client.Address, fields, client.CreatedAt)
	if err != nil {
		return fmt.Errorf("crm: create client: %w", err)
	}
	return nil
}

func (r *repository) UpdateClient(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	query := "UPDATE clients SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, column := range []string{"kind", "name", "email", "phone", "address"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
			if column == "name" {
				query += fmt.Sprintf(", name_key = $%d", argPos)
				args = append(args, NormalizeName(fmt.Sprint(v)))
				argPos++
			}
		}
	}
	if v, ok := updates["custom_fields"]; ok {
		fields, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("crm: marshal custom fields: %w", err)
		}
		query += fmt.Sprintf(", custom_fields = custom_fields || $%d", argPos)
		args = append(args, fields)
		argPos++
	}

	query += fmt.Sprintf(" WHERE owner_id = $%d AND id = $%d", argPos, argPos+1)
	args = append(args, ownerID, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("crm: update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const clientColumns = `id, owner_id, kind, name, email, phone, address, custom_fields, created_at, updated_at`

func (r *repository) GetClient(ctx context.Context, ownerID, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE owner_id = $1 AND id = $2`, ownerID, id)
	return scanClient(row)
}

func (r *repository) SearchClientByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE owner_id = $1 AND name_key LIKE '%' || $2 || '%'
		ORDER BY name ASC
		LIMIT 1
	`, ownerID, NormalizeName(needle))
	return scanClient(row)
}

func (r *repository) ListClients(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Client, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("crm: count clients: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE owner_id = $1
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("crm: list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		clients = append(clients, *c)
	}
	return clients, total, rows.Err()
}

func (r *repository) CreateContact(ctx context.Context, contact Contact) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contacts (id, owner_id, first_name, last_name, name_key, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, contact.ID, contact.OwnerID, contact.FirstName, contact.LastName,
		NormalizeName(contact.FullName()), contact.Email, contact.Phone, contact.CreatedAt)
	if err != nil {
		return fmt.Errorf("crm: create contact: %w", err)
	}
	return nil
}

const contactColumns = `id, owner_id, first_name, last_name, email, phone, created_at`

func (r *repository) GetContact(ctx context.Context, ownerID, id uuid.UUID) (*Contact, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = $1 AND id = $2`, ownerID, id)
	return scanContact(row)
}

func (r *repository) SearchContactByName(ctx context.Context, ownerID uuid.UUID, needle string) (*Contact, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner_id = $1 AND name_key LIKE '%' || $2 || '%'
		ORDER BY last_name ASC, first_name ASC
		LIMIT 1
	`, ownerID, NormalizeName(needle))
	return scanContact(row)
}

func (r *repository) ListContacts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Contact, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("crm: count contacts: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE owner_id = $1
		ORDER BY last_name ASC, first_name ASC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("crm: list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, total, rows.Err()
}

func (r *repository) UpsertLink(ctx context.Context, ownerID uuid.UUID, link ClientContact) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO client_contacts (client_id, contact_id, handles_billing, handles_ops, handles_management, is_primary, preferred_channel)
		SELECT c.id, k.id, $3, $4, $5, $6, $7
		FROM clients c, contacts k
		WHERE c.id = $1 AND c.owner_id = $8 AND k.id = $2 AND k.owner_id = $8
		ON CONFLICT (client_id, contact_id) DO UPDATE SET
			handles_billing = EXCLUDED.handles_billing,
			handles_ops = EXCLUDED.handles_ops,
			handles_management = EXCLUDED.handles_management,
			is_primary = EXCLUDED.is_primary,
			preferred_channel = EXCLUDED.preferred_channel
	`, link.ClientID, link.ContactID, link.HandlesBilling, link.HandlesOps,
		link.HandlesManagement, link.IsPrimary, link.PreferredChannel, ownerID)
	if err != nil {
		return fmt.Errorf("crm: upsert link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ContactsForClient(ctx context.Context, ownerID, clientID uuid.UUID) ([]ContactWithRoles, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT k.id, k.owner_id, k.first_name, k.last_name, k.email, k.phone, k.created_at,
		       l.handles_billing, l.handles_ops, l.handles_management, l.is_primary, l.preferred_channel
		FROM client_contacts l
		JOIN contacts k ON k.id = l.contact_id
		JOIN clients c ON c.id = l.client_id
		WHERE c.owner_id = $1 AND l.client_id = $2
		ORDER BY l.is_primary DESC, k.last_name ASC
	`, ownerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("crm: contacts for client: %w", err)
	}
	defer rows.Close()

	var result []ContactWithRoles
	for rows.Next() {
		var cw ContactWithRoles
		var email, phone, channel pgtype.Text
		var createdAt pgtype.Timestamptz
		err := rows.Scan(&cw.ID, &cw.OwnerID, &cw.FirstName, &cw.LastName, &email, &phone, &createdAt,
			&cw.Roles.HandlesBilling, &cw.Roles.HandlesOps, &cw.Roles.HandlesManagement,
			&cw.Roles.IsPrimary, &channel)
		if err != nil {
			return nil, err
		}
		if email.Valid {
			cw.Email = email.String
		}
		if phone.Valid {
			cw.Phone = phone.String
		}
		if channel.Valid {
			cw.Roles.PreferredChannel = channel.String
		}
		if createdAt.Valid {
			cw.CreatedAt = createdAt.Time
		}
		cw.Roles.ClientID = clientID
		cw.Roles.ContactID = cw.ID
		result = append(result, cw)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*Client, error) {
	var c Client
	var email, phone, address pgtype.Text
	var fields []byte
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&c.ID, &c.OwnerID, &c.Kind, &c.Name, &email, &phone, &address, &fields, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if email.Valid {
		c.Email = email.String
	}
	if phone.Valid {
		c.Phone = phone.String
	}
	if address.Valid {
		c.Address = address.String
	}
	if len(fields) > 0 {
		_ = json.Unmarshal(fields, &c.CustomFields)
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	return &c, nil
}

func scanContact(row rowScanner) (*Contact, error) {
	var c Contact
	var email, phone pgtype.Text
	var createdAt pgtype.Timestamptz
	err := row.Scan(&c.ID, &c.OwnerID, &c.FirstName, &c.LastName, &email, &phone, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if email.Valid {
		c.Email = email.String
	}
	if phone.Valid {
		c.Phone = phone.String
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	return &c, nil
}
