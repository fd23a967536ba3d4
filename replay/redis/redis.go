// Package redis provides a ReplayStore backend on redis. Prioritized stores
// keep records in a sorted set scored by priority so capacity trimming drops
// the lowest-priority members; FIFO stores use a plain list. Sampling
// decodes the bounded working set and reuses the in-memory selection policy,
// preserving the ReplayStore contract across backends.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/provalia/agentcore/core"
)

// DefaultKey is the redis key used when none is configured.
const DefaultKey = "agentcore:replay"

// Config shapes a Store.
type Config struct {
	// Key overrides the redis key.
	Key string
	// MaxSize caps retained records; <= 0 means unbounded.
	MaxSize int64
	// Prioritized selects sorted-set storage with lowest-priority trimming;
	// a list with FIFO trimming otherwise.
	Prioritized bool
	// Retention ages out records on Purge. Zero keeps records indefinitely.
	Retention time.Duration
}

// Store is a redis-backed ReplayStore.
type Store struct {
	client *redis.Client
	cfg    Config
	rng    *rand.Rand
}

// wireRecord adds a unique id so identical experiences stay distinct as
// sorted-set members.
type wireRecord struct {
	ID string `json:"id"`
	core.ReplayRecord
}

// New creates a Store over an established redis client. The caller retains
// ownership of the client.
func New(client *redis.Client, cfg Config) *Store {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	return &Store{client: client, cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Append stores one record and trims to capacity per policy.
func (s *Store) Append(ctx context.Context, record core.ReplayRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(wireRecord{ID: core.NewID(), ReplayRecord: record})
	if err != nil {
		return fmt.Errorf("encode replay record: %w", err)
	}

	if s.cfg.Prioritized {
		if err := s.client.ZAdd(ctx, s.cfg.Key, redis.Z{Score: record.Priority, Member: string(data)}).Err(); err != nil {
			return fmt.Errorf("append replay record: %w", err)
		}
		if s.cfg.MaxSize > 0 {
			card, err := s.client.ZCard(ctx, s.cfg.Key).Result()
			if err != nil {
				return fmt.Errorf("trim replay store: %w", err)
			}
			if over := card - s.cfg.MaxSize; over > 0 {
				if err := s.client.ZPopMin(ctx, s.cfg.Key, over).Err(); err != nil {
					return fmt.Errorf("trim replay store: %w", err)
				}
			}
		}
		return nil
	}

	if err := s.client.RPush(ctx, s.cfg.Key, string(data)).Err(); err != nil {
		return fmt.Errorf("append replay record: %w", err)
	}
	if s.cfg.MaxSize > 0 {
		if err := s.client.LTrim(ctx, s.cfg.Key, -s.cfg.MaxSize, -1).Err(); err != nil {
			return fmt.Errorf("trim replay store: %w", err)
		}
	}
	return nil
}

// Sample returns up to n records without replacement.
func (s *Store) Sample(ctx context.Context, n int, prioritized bool) ([]core.ReplayRecord, error) {
	if n <= 0 {
		return []core.ReplayRecord{}, nil
	}
	pool, err := s.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if n > len(pool) {
		n = len(pool)
	}

	out := make([]core.ReplayRecord, 0, n)
	for len(out) < n {
		idx := s.pickIndex(pool, prioritized)
		out = append(out, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return out, nil
}

func (s *Store) pickIndex(pool []core.ReplayRecord, prioritized bool) int {
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
func (s *Store) Len(ctx context.Context) (int, error) {
	var (
		n   int64
		err error
	)
	if s.cfg.Prioritized {
		n, err = s.client.ZCard(ctx, s.cfg.Key).Result()
	} else {
		n, err = s.client.LLen(ctx, s.cfg.Key).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("replay store length: %w", err)
	}
	return int(n), nil
}

// Purge removes records older than the cutoff.
func (s *Store) Purge(ctx context.Context, before time.Time) (int, error) {
	members, err := s.fetchRaw(ctx)
	if err != nil {
		return 0, err
	}

	dropped := 0
	for _, member := range members {
		var wr wireRecord
		if err := json.Unmarshal([]byte(member), &wr); err != nil {
			continue
		}
		if !wr.Timestamp.Before(before) {
			continue
		}
		if s.cfg.Prioritized {
			err = s.client.ZRem(ctx, s.cfg.Key, member).Err()
		} else {
			err = s.client.LRem(ctx, s.cfg.Key, 1, member).Err()
		}
		if err != nil {
			return dropped, fmt.Errorf("purge replay record: %w", err)
		}
		dropped++
	}
	return dropped, nil
}

func (s *Store) fetchRaw(ctx context.Context) ([]string, error) {
	var (
		members []string
		err     error
	)
	if s.cfg.Prioritized {
		members, err = s.client.ZRange(ctx, s.cfg.Key, 0, -1).Result()
	} else {
		members, err = s.client.LRange(ctx, s.cfg.Key, 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("fetch replay records: %w", err)
	}
	return members, nil
}

func (s *Store) fetchAll(ctx context.Context) ([]core.ReplayRecord, error) {
	members, err := s.fetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.ReplayRecord, 0, len(members))
	for _, member := range members {
		var wr wireRecord
		if err := json.Unmarshal([]byte(member), &wr); err != nil {
			continue
		}
		out = append(out, wr.ReplayRecord)
	}
	return out, nil
}

// Interface compliance (compile-time assertion)
var _ core.ReplayStore = (*Store)(nil)
