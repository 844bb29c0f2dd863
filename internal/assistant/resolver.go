package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// Kind names a resolvable entity family.
type Kind string

const (
	KindClient  Kind = "client"
	KindContact Kind = "contact"
	KindDeal    Kind = "deal"
	KindMission Kind = "mission"
)

// Directory is the search side of the resolver. Each method runs a single
// owner-scoped, case- and accent-insensitive substring search and returns the
// first match by name ascending, or shared.ErrNotFound.
type Directory interface {
	SearchClient(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error)
	SearchContact(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error)
	SearchDeal(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error)
	SearchMission(ctx context.Context, ownerID uuid.UUID, name string) (uuid.UUID, error)
}

// Resolver turns loose planner references into entity ids. An argument that
// already parses as a UUID is trusted as-is, with no lookup; otherwise the
// name triggers exactly one search.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the id for a reference given as id and/or name. When both
// are empty it returns uuid.Nil with no error; the caller decides whether the
// reference was required.
func (r *Resolver) Resolve(ctx context.Context, ownerID uuid.UUID, kind Kind, id, name string) (uuid.UUID, error) {
	if id = strings.TrimSpace(id); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return uuid.Nil, validationErr("identifiant %s invalide: %q", kind, id)
		}
		return parsed, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, nil
	}

	found, err := r.search(ctx, ownerID, kind, name)
	if errors.Is(err, shared.ErrNotFound) {
		return uuid.Nil, notFoundErr(kind, name)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve %s %q: %w", kind, name, err)
	}
	return found, nil
}

func (r *Resolver) search(ctx context.Context, ownerID uuid.UUID, kind Kind, name string) (uuid.UUID, error) {
	switch kind {
	case KindClient:
		return r.dir.SearchClient(ctx, ownerID, name)
	case KindContact:
		return r.dir.SearchContact(ctx, ownerID, name)
	case KindDeal:
		return r.dir.SearchDeal(ctx, ownerID, name)
	case KindMission:
		return r.dir.SearchMission(ctx, ownerID, name)
	default:
		return uuid.Nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}

// notFoundErr names the searched string so the planner can relay it, and
// points at the listing action for the kind.
func notFoundErr(kind Kind, name string) *Error {
	labels := map[Kind]string{
		KindClient:  "Aucun client trouvé pour %q.",
		KindContact: "Aucun contact trouvé pour %q.",
		KindDeal:    "Aucun deal trouvé pour %q.",
		KindMission: "Aucune mission trouvée pour %q.",
	}
	return &Error{
		Kind:       KindNotFound,
		Message:    fmt.Sprintf(labels[kind], name),
		NextAction: "list_" + string(kind) + "s",
	}
}
