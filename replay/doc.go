// Package replay provides ReplayStore backends: the bounded in-memory
// default and a redis-backed variant under replay/redis. Stores hold the
// experience tuples agents append after each processed request; the core
// treats them as opaque append-only logs with priority-aware retention.
package replay
