package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service coordinates client and contact operations.
type Service struct {
	repo  Repository
	clock func() time.Time
}

// NewService creates a crm service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateClientRequest carries the fields accepted on client creation.
type CreateClientRequest struct {
	OwnerID      uuid.UUID
	Kind         ClientKind
	Name         string
	Email        string
	Phone        string
	Address      string
	CustomFields map[string]any
}

// CreateClient validates and persists a new client.
func (s *Service) CreateClient(ctx context.Context, req CreateClientRequest) (*Client, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("client name is required")
	}
	kind := req.Kind
	if kind == "" {
		kind = ClientIndividual
	}
	if kind != ClientIndividual && kind != ClientOrganization {
		return nil, fmt.Errorf("unknown client kind %q", kind)
	}

	client := Client{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		Kind:         kind,
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		CustomFields: req.CustomFields,
		CreatedAt:    s.clock(),
	}
	client.UpdatedAt = client.CreatedAt
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, err
	}
	return &client, nil
}

// UpdateClient applies a partial update and returns the fresh record.
func (s *Service) UpdateClient(ctx context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) (*Client, error) {
	if len(updates) == 0 {
		return s.repo.GetClient(ctx, ownerID, id)
	}
	if err := s.repo.UpdateClient(ctx, ownerID, id, updates); err != nil {
		return nil, err
	}
	return s.repo.GetClient(ctx, ownerID, id)
}

// GetClient fetches one client.
func (s *Service) GetClient(ctx context.Context, ownerID, id uuid.UUID) (*Client, error) {
	return s.repo.GetClient(ctx, ownerID, id)
}

// ListClients returns clients ordered by name.
func (s *Service) ListClients(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Client, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListClients(ctx, ownerID, limit, offset)
}

// FindClientByName runs the owner-scoped substring search.
func (s *Service) FindClientByName(ctx context.Context, ownerID uuid.UUID, name string) (*Client, error) {
	return s.repo.SearchClientByName(ctx, ownerID, name)
}

// CreateContactRequest carries the fields accepted on contact creation.
type CreateContactRequest struct {
	OwnerID   uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// CreateContact validates and persists a new contact.
func (s *Service) CreateContact(ctx context.Context, req CreateContactRequest) (*Contact, error) {
	if strings.TrimSpace(req.FirstName) == "" && strings.TrimSpace(req.LastName) == "" {
		return nil, errors.New("contact requires a first or last name")
	}
	contact := Contact{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: s.clock(),
	}
	if err := s.repo.CreateContact(ctx, contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListContacts returns contacts ordered by name.
func (s *Service) ListContacts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Contact, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListContacts(ctx, ownerID, limit, offset)
}

// FindContactByName runs the owner-scoped substring search.
func (s *Service) FindContactByName(ctx context.Context, ownerID uuid.UUID, name string) (*Contact, error) {
	return s.repo.SearchContactByName(ctx, ownerID, name)
}

// LinkContact attaches a contact to a client with role metadata, updating the
// link when it already exists.
func (s *Service) LinkContact(ctx context.Context, ownerID uuid.UUID, link ClientContact) error {
	if link.ClientID == uuid.Nil || link.ContactID == uuid.Nil {
		return errors.New("link requires client and contact ids")
	}
	return s.repo.UpsertLink(ctx, ownerID, link)
}

// BillingRecipient picks the best email for outbound documents of a client:
// a primary billing contact first, then any billing contact, then the
// client's own address. Zero or several primaries are tolerated.
func (s *Service) BillingRecipient(ctx context.Context, ownerID, clientID uuid.UUID) (string, error) {
	client, err := s.repo.GetClient(ctx, ownerID, clientID)
	if err != nil {
		return "", err
	}
	contacts, err := s.repo.ContactsForClient(ctx, ownerID, clientID)
	if err != nil {
		return "", err
	}

	var fallback string
	for _, c := range contacts {
		if c.Email == "" || !c.Roles.HandlesBilling {
			continue
		}
		if c.Roles.IsPrimary {
			return c.Email, nil
		}
		if fallback == "" {
			fallback = c.Email
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return client.Email, nil
}
