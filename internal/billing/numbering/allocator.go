package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNumbering reports a failed counter allocation. The caller's document
// must not be created when this is returned; a number that was allocated but
// never used stays a gap and is never reissued.
var ErrNumbering = errors.New("numbering: allocation failed")

// CounterStore atomically increments and reads the counter for a scope.
// Two simultaneous calls for the same scope must never return the same value.
type CounterStore interface {
	Next(ctx context.Context, ownerID uuid.UUID, docType, scopeKey string) (int64, error)
}

// Allocator turns a pattern plus counter scope into the next formatted
// document number.
type Allocator struct {
	counters CounterStore
}

// NewAllocator creates an allocator over the given counter store.
func NewAllocator(counters CounterStore) *Allocator {
	return &Allocator{counters: counters}
}

// Allocate parses the pattern, increments the counter for the derived scope
// and returns the formatted number. Counter rows may be shared by many
// stateless processes; the increment happens at the storage layer.
func (a *Allocator) Allocate(ctx context.Context, ownerID uuid.UUID, docType, pattern string, when time.Time) (string, error) {
	p, err := ParsePattern(pattern)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNumbering, err)
	}
	seq, err := a.counters.Next(ctx, ownerID, docType, p.ScopeKey(when))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNumbering, err)
	}
	return p.Format(seq, when), nil
}

type pgCounterStore struct {
	pool *pgxpool.Pool
}

// NewCounterStore returns the PostgreSQL-backed counter store. The upsert is
// a single indivisible increment-and-read, safe under arbitrary concurrent
// callers; counters are never decremented.
func NewCounterStore(pool *pgxpool.Pool) CounterStore {
	return &pgCounterStore{pool: pool}
}

func (s *pgCounterStore) Next(ctx context.Context, ownerID uuid.UUID, docType, scopeKey string) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO document_counters (owner_id, doc_type, scope_key, last_value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (owner_id, doc_type, scope_key)
		DO UPDATE SET last_value = document_counters.last_value + 1, updated_at = NOW()
		RETURNING last_value
	`, ownerID, docType, scopeKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("numbering: next counter: %w", err)
	}
	return seq, nil
}
