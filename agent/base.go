package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/provalia/agentcore/core"
)

// ProcessFunc is the concrete business logic invoked for each request.
type ProcessFunc func(ctx context.Context, req core.Request, ac *core.AgentContext) (core.AgentResponse, error)

// ValidateFunc checks candidate input without side effects.
type ValidateFunc func(input map[string]any) core.ValidationResult

// SelfCheckFunc lets concrete agents extend Status with their own health
// verdict and a details map (e.g. registries of sources or pipelines).
type SelfCheckFunc func(ctx context.Context) (healthy bool, details map[string]any, err error)

// Options holds hooks and overrides passed to New.
type Options struct {
	// Events receives the agent's operational events.
	Events core.EventSink
	// Process supplies the business logic. Without it every operation yields
	// an unsupported-operation error response.
	Process ProcessFunc
	// Validate overrides input validation. Default accepts everything.
	Validate ValidateFunc
	// OnEvent handles incoming event payloads. Default logs and drops.
	OnEvent func(ctx context.Context, payload core.EventPayload, msg core.Message) error
	// OnAssistance handles assistance broadcasts from the supervisor.
	// Default records the observation.
	OnAssistance func(ctx context.Context, payload core.AssistancePayload, msg core.Message) error
	// SelfCheck extends Status with a concrete health verdict.
	SelfCheck SelfCheckFunc
	// ReplayPriorityOnFailure weights failed experiences for prioritized
	// sampling. Defaults to 1.0 (failures are the interesting records).
	ReplayPriorityOnFailure float64
	// ReplayPriorityOnSuccess defaults to 0.25.
	ReplayPriorityOnSuccess float64
}

// BaseAgent implements core.Agent with supervised-lifecycle plumbing shared
// by all concrete agents. All exported methods are goroutine-safe.
type BaseAgent struct {
	identity core.AgentIdentity
	events   core.EventSink

	process      ProcessFunc
	validate     ValidateFunc
	onEvent      func(ctx context.Context, payload core.EventPayload, msg core.Message) error
	onAssistance func(ctx context.Context, payload core.AssistancePayload, msg core.Message) error
	selfCheck    SelfCheckFunc

	failurePriority float64
	successPriority float64

	mu              sync.Mutex
	bus             core.MessageBus
	replay          core.ReplayStore
	initialized     bool
	healthy         bool
	requests        int64
	errorCount      int64
	consecutive     int64
	totalProcessing time.Duration
	lastError       *core.AgentError
}

// New constructs a BaseAgent with the given identity and hooks.
func New(identity core.AgentIdentity, optFns ...func(o *Options)) *BaseAgent {
	opts := Options{ReplayPriorityOnFailure: 1.0, ReplayPriorityOnSuccess: 0.25}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &BaseAgent{
		identity:        identity,
		events:          opts.Events,
		process:         opts.Process,
		validate:        opts.Validate,
		onEvent:         opts.OnEvent,
		onAssistance:    opts.OnAssistance,
		selfCheck:       opts.SelfCheck,
		failurePriority: opts.ReplayPriorityOnFailure,
		successPriority: opts.ReplayPriorityOnSuccess,
		healthy:         true,
	}
}

// Identity returns the agent's stable identity.
func (b *BaseAgent) Identity() core.AgentIdentity { return b.identity }

// Initialize wires the agent to the shared transport and replay store.
func (b *BaseAgent) Initialize(_ context.Context, bus core.MessageBus, replay core.ReplayStore) error {
	b.mu.Lock()
	b.bus = bus
	b.replay = replay
	b.initialized = true
	b.mu.Unlock()

	b.logEvent(core.EventRecord{
		Type: core.EventInfo, Source: b.identity.ID, Message: "agent initialized",
	})
	return nil
}

// ValidateInput checks candidate input. The default implementation accepts
// everything and echoes the input as validated data.
func (b *BaseAgent) ValidateInput(input map[string]any) core.ValidationResult {
	if b.validate != nil {
		return b.validate(input)
	}
	return core.ValidationResult{IsValid: true, Issues: []core.ValidationIssue{}, ValidatedData: input}
}

// Process runs the configured business logic, containing panics and error
// returns as error-status responses, and updates the agent's self-observed
// counters. It never returns a non-nil error; failures are visible in the
// response status and the metrics.
func (b *BaseAgent) Process(ctx context.Context, req core.Request, ac *core.AgentContext) (core.AgentResponse, error) {
	start := time.Now()
	resp := b.invoke(ctx, req, ac)
	elapsed := time.Since(start)

	failed := resp.Status == core.StatusError
	b.recordOutcome(elapsed, failed, resp.Message)
	b.appendReplay(ctx, req, resp, failed)
	return resp, nil
}

func (b *BaseAgent) invoke(ctx context.Context, req core.Request, ac *core.AgentContext) (resp core.AgentResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = core.ErrorResponse(fmt.Sprintf("agent %s panic processing %q: %v", b.identity.ID, req.Operation, r))
		}
	}()

	if b.process == nil {
		return core.ErrorResponse(fmt.Sprintf("agent %s does not support operation %q", b.identity.ID, req.Operation))
	}
	resp, err := b.process(ctx, req, ac)
	if err != nil {
		return core.ErrorResponse(err.Error())
	}
	return resp
}

// ProcessMessage is the transport-facing entry point. It dispatches on the
// payload type; unrecognized content goes through the default handler rather
// than being silently dropped.
func (b *BaseAgent) ProcessMessage(ctx context.Context, msg core.Message) error {
	switch payload := msg.Content.(type) {
	case core.QueryPayload:
		if err := b.handleQuery(ctx, payload, msg); err != nil {
			return err
		}
	case core.EventPayload:
		if b.onEvent != nil {
			if err := b.onEvent(ctx, payload, msg); err != nil {
				return err
			}
		} else {
			b.logEvent(core.EventRecord{
				Type: core.EventInfo, Source: b.identity.ID, Message: "event received",
				Data: map[string]any{"event": payload.Event, "sender_id": msg.SenderID},
			})
		}
	case core.AssistancePayload:
		if b.onAssistance != nil {
			if err := b.onAssistance(ctx, payload, msg); err != nil {
				return err
			}
		} else {
			b.logEvent(core.EventRecord{
				Type: core.EventInfo, Source: b.identity.ID, Message: "assistance request observed",
				Data: map[string]any{"agent_id": payload.AgentID, "issue_type": payload.IssueType},
			})
		}
	case core.ResponsePayload, core.AckPayload:
		// Correlation is the broker's concern; nothing to do here.
	default:
		b.handleDefault(msg)
	}

	if msg.RequiresAcknowledgment && msg.SenderID != "" && msg.SenderID != b.identity.ID {
		if err := b.AcknowledgeMessage(ctx, msg); err != nil {
			b.logEvent(core.EventRecord{
				Type: core.EventWarning, Severity: core.EventSeverityLow, Source: b.identity.ID,
				Message: "acknowledgment failed",
				Data:    map[string]any{"message_id": msg.ID, "error": err.Error()},
			})
		}
	}
	return nil
}

func (b *BaseAgent) handleQuery(ctx context.Context, payload core.QueryPayload, msg core.Message) error {
	resp, _ := b.Process(ctx, core.Request{Operation: payload.Operation, Data: payload.Data}, &core.AgentContext{
		CorrelationID: msg.CorrelationID,
		AccessLevel:   payload.AccessLevel,
		Parameters:    payload.Parameters,
		Source:        b.identity.ID,
		Events:        b.events,
	})

	if msg.SenderID == "" {
		return nil
	}
	response := b.CreateMessage(core.MessageTypeResponse, msg.SenderID, core.ResponsePayload{Response: resp},
		func(o *core.MessageOptions) { o.CorrelationID = msg.CorrelationID })
	return b.SendMessage(ctx, response)
}

// handleDefault is the fallback for content the dispatcher does not
// recognize.
func (b *BaseAgent) handleDefault(msg core.Message) {
	b.logEvent(core.EventRecord{
		Type: core.EventWarning, Severity: core.EventSeverityLow, Source: b.identity.ID,
		Message: "unhandled message content",
		Data:    map[string]any{"message_id": msg.ID, "type": string(msg.Type), "sender_id": msg.SenderID},
	})
}

// CreateMessage builds a message authored by this agent. It does not send.
func (b *BaseAgent) CreateMessage(typ core.MessageType, recipientID string, content core.Payload, optFns ...func(o *core.MessageOptions)) core.Message {
	return core.NewMessage(typ, b.identity.ID, recipientID, content, optFns...)
}

// SendMessage publishes a message on the wired transport.
func (b *BaseAgent) SendMessage(ctx context.Context, msg core.Message) error {
	b.mu.Lock()
	bus := b.bus
	b.mu.Unlock()
	if bus == nil {
		return errors.New("agent not initialized: no message bus")
	}
	return bus.Publish(ctx, msg)
}

// AcknowledgeMessage sends a best-effort acknowledgment back to the sender
// of a message that requested one.
func (b *BaseAgent) AcknowledgeMessage(ctx context.Context, msg core.Message) error {
	ack := b.CreateMessage(core.MessageTypeResponse, msg.SenderID, core.AckPayload{AcknowledgedID: msg.ID},
		func(o *core.MessageOptions) { o.CorrelationID = msg.CorrelationID })
	return b.SendMessage(ctx, ack)
}

// Status reports the agent's self-observed health and metrics. When a
// self-check hook is configured its verdict and details are merged in; a
// self-check error is returned to the caller (the supervisor treats it as an
// unhealthy signal).
func (b *BaseAgent) Status(ctx context.Context) (core.AgentStatus, error) {
	var details map[string]any
	if b.selfCheck != nil {
		healthy, d, err := b.selfCheck(ctx)
		if err != nil {
			return core.AgentStatus{}, fmt.Errorf("agent %s self check: %w", b.identity.ID, err)
		}
		b.SetHealthy(healthy)
		details = d
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var avg time.Duration
	if b.requests > 0 {
		avg = b.totalProcessing / time.Duration(b.requests)
	}
	return core.AgentStatus{
		ID:      b.identity.ID,
		Active:  b.initialized,
		Healthy: b.healthy,
		Metrics: core.AgentMetrics{
			RequestsProcessed:   b.requests,
			ErrorsEncountered:   b.errorCount,
			AvgProcessingTime:   avg,
			ConsecutiveFailures: b.consecutive,
		},
		LastError: b.lastError,
		Details:   details,
	}, nil
}

// SetHealthy overrides the agent's self-reported health flag.
func (b *BaseAgent) SetHealthy(healthy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = healthy
}

func (b *BaseAgent) recordOutcome(elapsed time.Duration, failed bool, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	b.totalProcessing += elapsed
	if failed {
		b.errorCount++
		b.consecutive++
		b.lastError = &core.AgentError{Message: message, Timestamp: time.Now().UTC()}
	} else {
		b.consecutive = 0
	}
}

// appendReplay records the processed request as an experience tuple. Replay
// failures are logged, never surfaced to the request path.
func (b *BaseAgent) appendReplay(ctx context.Context, req core.Request, resp core.AgentResponse, failed bool) {
	b.mu.Lock()
	replay := b.replay
	b.mu.Unlock()
	if replay == nil {
		return
	}

	outcome, priority := 1.0, b.successPriority
	if failed {
		outcome, priority = 0.0, b.failurePriority
	}
	rec := core.ReplayRecord{
		Input:     req.Data,
		Output:    resp.Data,
		Outcome:   outcome,
		Priority:  priority,
		Timestamp: time.Now().UTC(),
	}
	if err := replay.Append(ctx, rec); err != nil {
		b.logEvent(core.EventRecord{
			Type: core.EventWarning, Severity: core.EventSeverityLow, Source: b.identity.ID,
			Message: "replay append failed", Data: map[string]any{"error": err.Error()},
		})
	}
}

func (b *BaseAgent) logEvent(record core.EventRecord) {
	if b.events == nil {
		return
	}
	b.events.Log(record)
}

// Interface compliance (compile-time assertion)
var _ core.Agent = (*BaseAgent)(nil)
