// Package crm holds clients, contacts and their role-carrying associations.
package crm

import (
	"time"

	"github.com/google/uuid"
)

// ClientKind distinguishes individuals from organizations.
type ClientKind string

const (
	ClientIndividual   ClientKind = "individual"
	ClientOrganization ClientKind = "organization"
)

// Client is a billable relationship owned by a single account.
// Clients are never hard-deleted.
type Client struct {
	ID           uuid.UUID      `json:"id"`
	OwnerID      uuid.UUID      `json:"-"`
	Kind         ClientKind     `json:"kind"`
	Name         string         `json:"name"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Address      string         `json:"address,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Contact is an independent identity linkable to several clients.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"-"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName joins the contact name parts.
func (c Contact) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ClientContact links a contact to a client with role metadata. Multiple or
// zero primary contacts per client are tolerated; selection logic must not
// assume exactly one.
type ClientContact struct {
	ClientID          uuid.UUID `json:"client_id"`
	ContactID         uuid.UUID `json:"contact_id"`
	HandlesBilling    bool      `json:"handles_billing"`
	HandlesOps        bool      `json:"handles_ops"`
	HandlesManagement bool      `json:"handles_management"`
	IsPrimary         bool      `json:"is_primary"`
	PreferredChannel  string    `json:"preferred_channel,omitempty"`
}

// ContactWithRoles is a contact joined with its link metadata for one client.
type ContactWithRoles struct {
	Contact
	Roles ClientContact `json:"roles"`
}
