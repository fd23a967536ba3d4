package core

// Payload represents the polymorphic content of a message. Concrete payload
// types implement the unexported isPayload marker enabling a closed set the
// broker and base agent can dispatch on exhaustively. Concrete-agent business
// data travels inside QueryPayload.Data / RawPayload and stays opaque to the
// orchestration core.
type Payload interface{ isPayload() }

// QueryPayload asks an agent to perform a named operation. It is the payload
// synthesized by ExecuteAgent and carried by query-type messages.
type QueryPayload struct {
	Operation   string         `json:"operation"`
	Data        map[string]any `json:"data,omitempty"`
	AccessLevel string         `json:"access_level,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// isPayload implements the Payload interface for QueryPayload.
func (QueryPayload) isPayload() {}

// ResponsePayload carries an agent's response back to the requester. The
// enclosing message's CorrelationID links it to the originating query.
type ResponsePayload struct {
	Response AgentResponse `json:"response"`
}

// isPayload implements the Payload interface for ResponsePayload.
func (ResponsePayload) isPayload() {}

// EventPayload announces a named occurrence with optional structured data.
// Used by reactive cross-agent pipelines subscribed through the broker.
type EventPayload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// isPayload implements the Payload interface for EventPayload.
func (EventPayload) isPayload() {}

// AssistancePayload is the escalation signal broadcast by the supervisor when
// an agent's observed metrics breach configured thresholds. It is broadcast,
// so every registered agent sees it and decides for itself whether to help.
type AssistancePayload struct {
	RequestID string         `json:"request_id"`
	AgentID   string         `json:"agent_id"`
	IssueType string         `json:"issue_type"`
	Data      map[string]any `json:"data,omitempty"`
}

// isPayload implements the Payload interface for AssistancePayload.
func (AssistancePayload) isPayload() {}

// AckPayload acknowledges receipt of a message that requested acknowledgment.
// Acknowledgment is best-effort and consumed by sender-side logic only.
type AckPayload struct {
	AcknowledgedID string `json:"acknowledged_id"`
}

// isPayload implements the Payload interface for AckPayload.
func (AckPayload) isPayload() {}

// RawPayload wraps arbitrary content the core does not inspect. Escape hatch
// for concrete-agent traffic that fits none of the typed payloads.
type RawPayload struct {
	Value any `json:"value"`
}

// isPayload implements the Payload interface for RawPayload.
func (RawPayload) isPayload() {}
