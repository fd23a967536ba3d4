package core

import "time"

// EventType is the coarse classification of an operational event.
type EventType string

const (
	// EventInfo records normal operation.
	EventInfo EventType = "INFO"
	// EventWarning records degradation or suspicious conditions.
	EventWarning EventType = "WARNING"
	// EventError records failures.
	EventError EventType = "ERROR"
)

// EventSeverity grades warnings and errors beyond the coarse type.
type EventSeverity string

const (
	// EventSeverityLow marks routine, expected conditions.
	EventSeverityLow EventSeverity = "LOW"
	// EventSeverityMedium marks conditions needing operator attention.
	EventSeverityMedium EventSeverity = "MEDIUM"
	// EventSeverityHigh marks conditions threatening agent availability.
	EventSeverityHigh EventSeverity = "HIGH"
	// EventSeverityError marks outright failures.
	EventSeverityError EventSeverity = "ERROR"
)

// EventRecord is one append-only structured event. Immutable after emission.
type EventRecord struct {
	Type      EventType      `json:"type"`
	Severity  EventSeverity  `json:"severity,omitempty"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventSink consumes event records. Implementations must be safe for
// concurrent writers and must never let an internal failure propagate to the
// caller; logging is side-effect only.
type EventSink interface {
	Log(record EventRecord)
}
