package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// APIKeyVerifier checks an owner's API key secret against its stored hash.
type APIKeyVerifier interface {
	Verify(ctx context.Context, ownerID uuid.UUID, secret string) error
}

type pgKeyStore struct {
	pool *pgxpool.Pool
}

// NewKeyStore returns the PostgreSQL-backed API key verifier.
func NewKeyStore(pool *pgxpool.Pool) APIKeyVerifier {
	return &pgKeyStore{pool: pool}
}

func (s *pgKeyStore) Verify(ctx context.Context, ownerID uuid.UUID, secret string) error {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT api_key_hash FROM owners WHERE id = $1`, ownerID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return shared.ErrUnauthorized
	}
	return nil
}

// AuthMiddleware authenticates the bearer token "<owner_id>.<secret>" and
// stores the owner id in the request context.
func AuthMiddleware(verifier APIKeyVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, secret, ok := parseBearer(r.Header.Get("Authorization"))
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if err := verifier.Verify(r.Context(), ownerID, secret); err != nil {
				if !errors.Is(err, shared.ErrUnauthorized) {
					logger.Error("verify api key", slog.Any("error", err))
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
					return
				}
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			ctx := shared.ContextWithOwner(r.Context(), ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(header string) (uuid.UUID, string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return uuid.Nil, "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	idPart, secret, found := strings.Cut(token, ".")
	if !found || secret == "" {
		return uuid.Nil, "", false
	}
	ownerID, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", false
	}
	return ownerID, secret, true
}
