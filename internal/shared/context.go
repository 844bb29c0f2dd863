package shared

import (
	"context"

	"github.com/google/uuid"
)

type ownerContextKey struct{}

// ContextWithOwner stores the authenticated account id in context.
func ContextWithOwner(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, ownerID)
}

// OwnerFromContext extracts the authenticated account id from context.
// The zero UUID means no authenticated owner.
func OwnerFromContext(ctx context.Context) uuid.UUID {
	ownerID, _ := ctx.Value(ownerContextKey{}).(uuid.UUID)
	return ownerID
}
