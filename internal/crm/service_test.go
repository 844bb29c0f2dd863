package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-crm/atelier-crm/internal/shared"
)

type memoryCRMRepo struct {
	clients  map[uuid.UUID]Client
	contacts map[uuid.UUID]Contact
	links    map[string]ClientContact
}

func newMemoryCRMRepo() *memoryCRMRepo {
	return &memoryCRMRepo{
		clients:  make(map[uuid.UUID]Client),
		contacts: make(map[uuid.UUID]Contact),
		links:    make(map[string]ClientContact),
	}
}

func (r *memoryCRMRepo) CreateClient(_ context.Context, client Client) error {
	r.clients[client.ID] = client
	return nil
}

func (r *memoryCRMRepo) UpdateClient(_ context.Context, ownerID, id uuid.UUID, updates map[string]interface{}) error {
	client, ok := r.clients[id]
	if !ok || client.OwnerID != ownerID {
		return fmt.Errorf("client: %w", shared.ErrNotFound)
	}
	if v, ok := updates["name"]; ok {
		client.Name = fmt.Sprint(v)
	}
	if v, ok := updates["email"]; ok {
		client.Email = fmt.Sprint(v)
	}
	r.clients[id] = client
	return nil
}

func (r *memoryCRMRepo) GetClient(_ context.Context, ownerID, id uuid.UUID) (*Client, error) {
	client, ok := r.clients[id]
	if !ok || client.OwnerID != ownerID {
		return nil, fmt.Errorf("client: %w", shared.ErrNotFound)
	}
	return &client, nil
}

func (r *memoryCRMRepo) ListClients(_ context.Context, ownerID uuid.UUID, _, _ int) ([]Client, int, error) {
	var out []Client
	for _, c := range r.clients {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *memoryCRMRepo) SearchClientByName(_ context.Context, ownerID uuid.UUID, needle string) (*Client, error) {
	var matches []Client
	for _, c := range r.clients {
		if c.OwnerID == ownerID && containsNormalized(c.Name, needle) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("client: %w", shared.ErrNotFound)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return &matches[0], nil
}

func (r *memoryCRMRepo) CreateContact(_ context.Context, contact Contact) error {
	r.contacts[contact.ID] = contact
	return nil
}

func (r *memoryCRMRepo) GetContact(_ context.Context, ownerID, id uuid.UUID) (*Contact, error) {
	contact, ok := r.contacts[id]
	if !ok || contact.OwnerID != ownerID {
		return nil, fmt.Errorf("contact: %w", shared.ErrNotFound)
	}
	return &contact, nil
}

func (r *memoryCRMRepo) ListContacts(_ context.Context, ownerID uuid.UUID, _, _ int) ([]Contact, int, error) {
	var out []Contact
	for _, c := range r.contacts {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (r *memoryCRMRepo) SearchContactByName(_ context.Context, ownerID uuid.UUID, needle string) (*Contact, error) {
	for _, c := range r.contacts {
		if c.OwnerID == ownerID && containsNormalized(c.FullName(), needle) {
			contact := c
			return &contact, nil
		}
	}
	return nil, fmt.Errorf("contact: %w", shared.ErrNotFound)
}

func (r *memoryCRMRepo) UpsertLink(_ context.Context, _ uuid.UUID, link ClientContact) error {
	r.links[link.ClientID.String()+"|"+link.ContactID.String()] = link
	return nil
}

func (r *memoryCRMRepo) ContactsForClient(_ context.Context, ownerID, clientID uuid.UUID) ([]ContactWithRoles, error) {
	var out []ContactWithRoles
	for _, link := range r.links {
		if link.ClientID != clientID {
			continue
		}
		contact, ok := r.contacts[link.ContactID]
		if !ok || contact.OwnerID != ownerID {
			continue
		}
		out = append(out, ContactWithRoles{Contact: contact, Roles: link})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out, nil
}

func containsNormalized(name, needle string) bool {
	return strings.Contains(NormalizeName(name), NormalizeName(needle))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "societe generale", NormalizeName("  Société Générale "))
	assert.Equal(t, "muller", NormalizeName("Müller"))
	assert.Equal(t, "plain", NormalizeName("plain"))
}

func TestCreateClientDefaultsKind(t *testing.T) {
	repo := newMemoryCRMRepo()
	svc := NewService(repo)

	client, err := svc.CreateClient(context.Background(), CreateClientRequest{
		OwnerID: uuid.New(),
		Name:    "  Aurore Studio  ",
	})
	require.NoError(t, err)
	assert.Equal(t, ClientIndividual, client.Kind)
	assert.Equal(t, "Aurore Studio", client.Name, "name is trimmed")
}

func TestCreateClientRejectsBlankName(t *testing.T) {
	svc := NewService(newMemoryCRMRepo())
	_, err := svc.CreateClient(context.Background(), CreateClientRequest{OwnerID: uuid.New(), Name: "   "})
	require.Error(t, err)
}

func TestCreateClientRejectsUnknownKind(t *testing.T) {
	svc := NewService(newMemoryCRMRepo())
	_, err := svc.CreateClient(context.Background(), CreateClientRequest{
		OwnerID: uuid.New(), Name: "X", Kind: ClientKind("agency"),
	})
	require.Error(t, err)
}

func TestFindClientByNameAccentInsensitive(t *testing.T) {
	repo := newMemoryCRMRepo()
	svc := NewService(repo)
	owner := uuid.New()

	created, err := svc.CreateClient(context.Background(), CreateClientRequest{OwnerID: owner, Name: "Société Générale"})
	require.NoError(t, err)

	found, err := svc.FindClientByName(context.Background(), owner, "societe")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestBillingRecipientPreference(t *testing.T) {
	repo := newMemoryCRMRepo()
	svc := NewService(repo)
	owner := uuid.New()
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, CreateClientRequest{OwnerID: owner, Name: "Aurore", Email: "hello@aurore.example"})
	require.NoError(t, err)

	billingContact, err := svc.CreateContact(ctx, CreateContactRequest{OwnerID: owner, FirstName: "Anne", LastName: "Bellec", Email: "anne@aurore.example"})
	require.NoError(t, err)
	primary, err := svc.CreateContact(ctx, CreateContactRequest{OwnerID: owner, FirstName: "Zoé", LastName: "Costa", Email: "zoe@aurore.example"})
	require.NoError(t, err)

	t.Run("client email when no billing contact", func(t *testing.T) {
		to, err := svc.BillingRecipient(ctx, owner, client.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello@aurore.example", to)
	})

	require.NoError(t, svc.LinkContact(ctx, owner, ClientContact{
		ClientID: client.ID, ContactID: billingContact.ID, HandlesBilling: true,
	}))

	t.Run("any billing contact beats the client email", func(t *testing.T) {
		to, err := svc.BillingRecipient(ctx, owner, client.ID)
		require.NoError(t, err)
		assert.Equal(t, "anne@aurore.example", to)
	})

	require.NoError(t, svc.LinkContact(ctx, owner, ClientContact{
		ClientID: client.ID, ContactID: primary.ID, HandlesBilling: true, IsPrimary: true,
	}))

	t.Run("primary billing contact wins", func(t *testing.T) {
		to, err := svc.BillingRecipient(ctx, owner, client.ID)
		require.NoError(t, err)
		assert.Equal(t, "zoe@aurore.example", to)
	})
}

func TestLinkContactRequiresIDs(t *testing.T) {
	svc := NewService(newMemoryCRMRepo())
	err := svc.LinkContact(context.Background(), uuid.New(), ClientContact{})
	require.Error(t, err)
}

func TestContactFullName(t *testing.T) {
	assert.Equal(t, "Anne Bellec", Contact{FirstName: "Anne", LastName: "Bellec"}.FullName())
	assert.Equal(t, "Anne", Contact{FirstName: "Anne"}.FullName())
	assert.Equal(t, "Bellec", Contact{LastName: "Bellec"}.FullName())
}

func TestUpdateClientRoundTrips(t *testing.T) {
	repo := newMemoryCRMRepo()
	svc := NewService(repo)
	owner := uuid.New()

	client, err := svc.CreateClient(context.Background(), CreateClientRequest{OwnerID: owner, Name: "Aurore"})
	require.NoError(t, err)

	updated, err := svc.UpdateClient(context.Background(), owner, client.ID, map[string]interface{}{"email": "new@aurore.example"})
	require.NoError(t, err)
	assert.Equal(t, "new@aurore.example", updated.Email)
}
