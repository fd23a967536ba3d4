package replay

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/provalia/agentcore/core"
)

// DefaultMaxSize bounds the store when no capacity is configured.
const DefaultMaxSize = 10000

// Config shapes an InMemoryStore.
type Config struct {
	// MaxSize caps retained records; <= 0 selects DefaultMaxSize.
	MaxSize int
	// Prioritized selects the eviction policy: lowest-priority-first when
	// set (ties broken oldest-first), strict FIFO otherwise.
	Prioritized bool
	// Retention ages out records on append and Purge. Zero keeps records
	// indefinitely.
	Retention time.Duration
}

// InMemoryStore is the process-local ReplayStore. Appends are safe for
// concurrent writers; records are immutable once stored.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []core.ReplayRecord
	cfg     Config
	rng     *rand.Rand
}

// NewInMemoryStore creates a store with the given configuration.
func NewInMemoryStore(cfg Config) *InMemoryStore {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &InMemoryStore{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Append stores one record, stamping the time if unset, ageing out expired
// records and evicting per policy once capacity is exceeded.
func (s *InMemoryStore) Append(_ context.Context, record core.ReplayRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Retention > 0 {
		s.purgeLocked(time.Now().Add(-s.cfg.Retention))
	}

	s.records = append(s.records, record)
	for len(s.records) > s.cfg.MaxSize {
		if s.cfg.Prioritized {
			s.evictLowestPriorityLocked()
		} else {
			s.records = s.records[1:]
		}
	}
	return nil
}

// evictLowestPriorityLocked removes the record with the lowest priority,
// preferring the oldest on ties.
func (s *InMemoryStore) evictLowestPriorityLocked() {
	lowest := 0
	for i, r := range s.records {
		if r.Priority < s.records[lowest].Priority {
			lowest = i
		}
	}
	s.records = append(s.records[:lowest], s.records[lowest+1:]...)
}

// Sample returns up to n records without replacement. Prioritized sampling
// weights selection by record priority; a zero total weight falls back to
// uniform selection.
func (s *InMemoryStore) Sample(_ context.Context, n int, prioritized bool) ([]core.ReplayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.records) == 0 {
		return []core.ReplayRecord{}, nil
	}
	if n > len(s.records) {
		n = len(s.records)
	}

	pool := make([]core.ReplayRecord, len(s.records))
	copy(pool, s.records)

	out := make([]core.ReplayRecord, 0, n)
	for len(out) < n {
		idx := s.pickIndex(pool, prioritized)
		out = append(out, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return out, nil
}

func (s *InMemoryStore) pickIndex(pool []core.ReplayRecord, prioritized bool) int {
	if !prioritized {
		return s.rng.Intn(len(pool))
	}
	total := 0.0
	for _, r := range pool {
		if r.Priority > 0 {
			total += r.Priority
		}
	}
	if total <= 0 {
		return s.rng.Intn(len(pool))
	}
	target := s.rng.Float64() * total
	acc := 0.0
	for i, r := range pool {
		if r.Priority > 0 {
			acc += r.Priority
		}
		if acc >= target {
			return i
		}
	}
	return len(pool) - 1
}

// Len reports the number of retained records.
func (s *InMemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Purge removes records older than the cutoff.
func (s *InMemoryStore) Purge(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(before), nil
}

func (s *InMemoryStore) purgeLocked(before time.Time) int {
	kept := s.records[:0]
	dropped := 0
	for _, r := range s.records {
		if r.Timestamp.Before(before) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return dropped
}

// Records returns a copy of all retained records in append order. Intended
// for inspection and tests.
func (s *InMemoryStore) Records() []core.ReplayRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ReplayRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Interface compliance (compile-time assertion)
var _ core.ReplayStore = (*InMemoryStore)(nil)
