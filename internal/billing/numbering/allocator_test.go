package numbering

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
	calls    int
	fail     error
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{counters: make(map[string]int64)}
}

func (s *memoryCounterStore) Next(_ context.Context, ownerID uuid.UUID, docType, scopeKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	s.calls++
	key := ownerID.String() + "|" + docType + "|" + scopeKey
	s.counters[key]++
	return s.counters[key], nil
}

func TestAllocateSequence(t *testing.T) {
	store := newMemoryCounterStore()
	alloc := NewAllocator(store)
	owner := uuid.New()
	when := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	first, err := alloc.Allocate(context.Background(), owner, "invoice", "FAC-{YYYY}-{0000}", when)
	require.NoError(t, err)
	second, err := alloc.Allocate(context.Background(), owner, "invoice", "FAC-{YYYY}-{0000}", when)
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-0001", first)
	assert.Equal(t, "FAC-2026-0002", second)
}

func TestAllocateYearReset(t *testing.T) {
	store := newMemoryCounterStore()
	alloc := NewAllocator(store)
	owner := uuid.New()

	in2026 := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
	in2027 := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)

	n1, err := alloc.Allocate(context.Background(), owner, "quote", "DEV-{YYYY}-{0000}", in2026)
	require.NoError(t, err)
	n2, err := alloc.Allocate(context.Background(), owner, "quote", "DEV-{YYYY}-{0000}", in2027)
	require.NoError(t, err)

	assert.Equal(t, "DEV-2026-0001", n1)
	assert.Equal(t, "DEV-2027-0001", n2, "new year starts a fresh counter")
}

func TestAllocateScopesAreIndependent(t *testing.T) {
	store := newMemoryCounterStore()
	alloc := NewAllocator(store)
	owner := uuid.New()
	when := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	q, err := alloc.Allocate(context.Background(), owner, "quote", "DEV-{YYYY}-{0000}", when)
	require.NoError(t, err)
	i, err := alloc.Allocate(context.Background(), owner, "invoice", "FAC-{YYYY}-{0000}", when)
	require.NoError(t, err)

	assert.Equal(t, "DEV-2026-0001", q)
	assert.Equal(t, "FAC-2026-0001", i, "quote and invoice counters do not share sequences")
}

func TestAllocateConcurrentDistinct(t *testing.T) {
	store := newMemoryCounterStore()
	alloc := NewAllocator(store)
	owner := uuid.New()
	when := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	const n = 50
	results := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := alloc.Allocate(context.Background(), owner, "invoice", "FAC-{YYYY}-{00000}", when)
			assert.NoError(t, err)
			results <- number
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for number := range results {
		assert.False(t, seen[number], "duplicate number %s", number)
		seen[number] = true
	}
	assert.Len(t, seen, n)
}

func TestAllocateWrapsErrors(t *testing.T) {
	owner := uuid.New()

	t.Run("bad pattern", func(t *testing.T) {
		store := newMemoryCounterStore()
		alloc := NewAllocator(store)
		_, err := alloc.Allocate(context.Background(), owner, "quote", "no-counter", time.Now())
		require.ErrorIs(t, err, ErrNumbering)
		assert.Zero(t, store.calls, "counter must not move on a bad pattern")
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemoryCounterStore()
		store.fail = errors.New("connection reset")
		alloc := NewAllocator(store)
		_, err := alloc.Allocate(context.Background(), owner, "quote", "DEV-{0000}", time.Now())
		require.ErrorIs(t, err, ErrNumbering)
	})
}
