package core

import "context"

// AgentIdentity carries the stable identifying details of an agent. Created
// at construction and immutable for the agent's lifetime.
type AgentIdentity struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the identity declares the named capability.
func (a AgentIdentity) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ResponseStatus is the outcome discriminator of an AgentResponse.
type ResponseStatus string

const (
	// StatusSuccess marks a completed operation.
	StatusSuccess ResponseStatus = "success"
	// StatusError marks a failed operation. Agent failures surface as error
	// responses, never as panics crossing the Process boundary.
	StatusError ResponseStatus = "error"
)

// AgentResponse is the uniform result shape returned by Agent.Process and
// delivered to ExecuteAgent callers.
type AgentResponse struct {
	Status  ResponseStatus `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// SuccessResponse builds a success response. A nil data map is normalized to
// an empty one so callers can index without nil checks.
func SuccessResponse(message string, data map[string]any) AgentResponse {
	if data == nil {
		data = map[string]any{}
	}
	return AgentResponse{Status: StatusSuccess, Message: message, Data: data}
}

// ErrorResponse builds an error response with an empty data map.
func ErrorResponse(message string) AgentResponse {
	return AgentResponse{Status: StatusError, Message: message, Data: map[string]any{}}
}

// IssueSeverity grades a validation issue.
type IssueSeverity string

const (
	// SeverityLow marks cosmetic or recoverable issues.
	SeverityLow IssueSeverity = "LOW"
	// SeverityMedium marks issues that degrade the result.
	SeverityMedium IssueSeverity = "MEDIUM"
	// SeverityHigh marks issues that invalidate the input.
	SeverityHigh IssueSeverity = "HIGH"
)

// ValidationIssue describes a single problem found in agent input.
type ValidationIssue struct {
	Field       string        `json:"field"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Severity    IssueSeverity `json:"severity"`
}

// ValidationResult is the outcome of Agent.ValidateInput. ValidatedData may
// carry a normalized copy of the input when validation succeeds.
type ValidationResult struct {
	IsValid       bool              `json:"is_valid"`
	Issues        []ValidationIssue `json:"issues"`
	ValidatedData map[string]any    `json:"validated_data,omitempty"`
}

// Request names the operation an agent should perform plus its opaque data.
type Request struct {
	Operation string         `json:"operation"`
	Data      map[string]any `json:"data,omitempty"`
}

// AgentContext carries per-invocation scope into Agent.Process: correlation,
// caller access level, free-form parameters, and a structured event sink.
type AgentContext struct {
	CorrelationID string
	AccessLevel   string
	Parameters    map[string]any
	Source        string
	Events        EventSink
}

// Log writes a structured event attributed to the invocation's source agent.
// Safe to call with a nil sink.
func (c *AgentContext) Log(typ EventType, message string, data map[string]any) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.Log(EventRecord{Type: typ, Source: c.Source, Message: message, Data: data})
}

// Agent is the polymorphic contract every supervised unit implements. The
// orchestration core calls concrete agents only through this interface;
// request payloads beyond the envelope fields it inspects remain opaque.
//
// Implementations must:
//   - Respect context cancellation on blocking operations
//   - Return error responses instead of panicking past Process
//   - Keep Status cheap; it is polled by the supervisor's health loop
type Agent interface {
	// Identity returns the agent's stable identity.
	Identity() AgentIdentity

	// Initialize wires the agent to the shared transport and replay store.
	// Re-initialization is not a defined use case.
	Initialize(ctx context.Context, bus MessageBus, replay ReplayStore) error

	// ValidateInput checks candidate input without side effects.
	ValidateInput(input map[string]any) ValidationResult

	// Process performs the requested operation. Unsupported operations yield
	// an error-status response, never an error return or panic.
	Process(ctx context.Context, req Request, ac *AgentContext) (AgentResponse, error)

	// ProcessMessage is the transport-facing entry point. Unrecognized
	// content must be delegated to a default handler, not silently dropped.
	ProcessMessage(ctx context.Context, msg Message) error

	// Status reports the agent's self-observed health and metrics.
	Status(ctx context.Context) (AgentStatus, error)
}
