package logging

import (
	"sync"
	"time"

	"github.com/provalia/agentcore/core"
)

// EventLog is the shared append-only event sink. Every record is written
// through the configured Logger at the level matching its type and retained
// in a bounded in-memory buffer so operational state can be inspected without
// scraping log output. Safe for concurrent writers; internal failures never
// propagate to the caller.
type EventLog struct {
	mu       sync.RWMutex
	logger   Logger
	records  []core.EventRecord
	capacity int
}

// DefaultEventCapacity bounds the in-memory history when no capacity is given.
const DefaultEventCapacity = 1024

// NewEventLog creates an EventLog writing through logger. A nil logger is
// replaced by NoOpLogger; capacity <= 0 selects DefaultEventCapacity.
func NewEventLog(logger Logger, capacity int) *EventLog {
	if logger == nil {
		logger = NoOpLogger{}
	}
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{logger: logger, capacity: capacity}
}

// Log appends the record, stamping the time if unset. Oldest records are
// dropped once the buffer is full.
func (e *EventLog) Log(record core.EventRecord) {
	defer func() {
		// A panicking slog handler must not take down the caller.
		_ = recover()
	}()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	e.mu.Lock()
	e.records = append(e.records, record)
	if len(e.records) > e.capacity {
		e.records = e.records[len(e.records)-e.capacity:]
	}
	e.mu.Unlock()

	args := []any{"source", record.Source}
	if record.Severity != "" {
		args = append(args, "severity", string(record.Severity))
	}
	for k, v := range record.Data {
		args = append(args, k, v)
	}
	switch record.Type {
	case core.EventWarning:
		e.logger.Warn(record.Message, args...)
	case core.EventError:
		e.logger.Error(record.Message, args...)
	default:
		e.logger.Info(record.Message, args...)
	}
}

// Records returns a copy of the retained history in append order.
func (e *EventLog) Records() []core.EventRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.EventRecord, len(e.records))
	copy(out, e.records)
	return out
}

// RecordsBySource returns retained records attributed to the given source.
func (e *EventLog) RecordsBySource(source string) []core.EventRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []core.EventRecord
	for _, r := range e.records {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

// RecordsByType returns retained records of the given type.
func (e *EventLog) RecordsByType(typ core.EventType) []core.EventRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []core.EventRecord
	for _, r := range e.records {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// Len reports the number of retained records.
func (e *EventLog) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

// Interface compliance (compile-time assertion)
var _ core.EventSink = (*EventLog)(nil)
