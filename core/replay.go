package core

import (
	"context"
	"time"
)

// ReplayRecord is one appended experience tuple: the input an agent saw, the
// output it produced, and the observed outcome. Priority weights retention
// and sampling; the core treats the store as an opaque append-only log, not
// a learning component.
type ReplayRecord struct {
	Input     map[string]any `json:"input"`
	Output    map[string]any `json:"output"`
	Outcome   float64        `json:"outcome"`
	Priority  float64        `json:"priority"`
	Timestamp time.Time      `json:"timestamp"`
}

// ReplayStore is the pluggable experience log written after each processed
// message. Backends must preserve the in-memory contract: bounded capacity
// with lowest-priority-first eviction when prioritized, FIFO otherwise.
type ReplayStore interface {
	// Append stores one record, evicting per policy when over capacity.
	Append(ctx context.Context, record ReplayRecord) error

	// Sample returns up to n records. Prioritized sampling weights selection
	// by record priority; otherwise selection is uniform.
	Sample(ctx context.Context, n int, prioritized bool) ([]ReplayRecord, error)

	// Len reports the number of retained records.
	Len(ctx context.Context) (int, error)

	// Purge removes records older than the cutoff, returning how many were
	// dropped.
	Purge(ctx context.Context, before time.Time) (int, error)
}
