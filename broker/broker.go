package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/metrics"
)

// DefaultExecuteTimeout bounds ExecuteAgent when the caller supplies none.
const DefaultExecuteTimeout = 30 * time.Second

const eventSource = "broker"

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Events receives the broker's operational events. Defaults to a
	// discarding sink.
	Events core.EventSink
	// Metrics enables prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
	// ExecuteTimeout bounds ExecuteAgent calls without an explicit timeout.
	ExecuteTimeout time.Duration
}

// Broker is the message router connecting agents. It exclusively owns agent
// registration and the pending-call correlation table; subscriptions are
// delegated to the underlying transport so the broker itself satisfies
// core.MessageBus and can be handed to agents as their bus.
//
// Ordering: responses are correlated to requests via correlation id; no
// guarantee is made about delivery order between independent messages.
type Broker struct {
	bus            core.MessageBus
	events         core.EventSink
	metrics        *metrics.Registry
	executeTimeout time.Duration

	mu      sync.RWMutex
	agents  map[string]core.Agent
	pending map[string]chan core.AgentResponse
}

// New constructs a Broker over the given transport.
func New(bus core.MessageBus, optFns ...func(o *Options)) *Broker {
	opts := Options{Events: discardSink{}, ExecuteTimeout: DefaultExecuteTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Events == nil {
		opts.Events = discardSink{}
	}
	if opts.ExecuteTimeout <= 0 {
		opts.ExecuteTimeout = DefaultExecuteTimeout
	}
	return &Broker{
		bus:            bus,
		events:         opts.Events,
		metrics:        opts.Metrics,
		executeTimeout: opts.ExecuteTimeout,
		agents:         make(map[string]core.Agent),
		pending:        make(map[string]chan core.AgentResponse),
	}
}

// RegisterAgent adds the agent to the registry. Registering an id twice
// leaves the first registration in place, logs a warning and returns
// ErrDuplicateAgent.
func (b *Broker) RegisterAgent(agent core.Agent) error {
	id := agent.Identity().ID

	b.mu.Lock()
	if _, exists := b.agents[id]; exists {
		b.mu.Unlock()
		b.events.Log(core.EventRecord{
			Type: core.EventWarning, Severity: core.EventSeverityLow, Source: eventSource,
			Message: "duplicate agent registration rejected", Data: map[string]any{"agent_id": id},
		})
		return fmt.Errorf("register agent %q: %w", id, core.ErrDuplicateAgent)
	}
	b.agents[id] = agent
	b.mu.Unlock()

	b.events.Log(core.EventRecord{
		Type: core.EventInfo, Source: eventSource,
		Message: "agent registered", Data: map[string]any{"agent_id": id},
	})
	return nil
}

// Agent returns the registered agent for id, or nil.
func (b *Broker) Agent(id string) core.Agent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.agents[id]
}

// Agents returns a snapshot of all registered agents.
func (b *Broker) Agents() []core.Agent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Agent, 0, len(b.agents))
	for _, a := range b.agents {
		out = append(out, a)
	}
	return out
}

// CreateMessage builds a message with a fresh unique id. It does not send.
func (b *Broker) CreateMessage(typ core.MessageType, senderID, recipientID string, content core.Payload, optFns ...func(o *core.MessageOptions)) core.Message {
	return core.NewMessage(typ, senderID, recipientID, content, optFns...)
}

// SendMessage routes the message. Broadcasts reach every registered agent
// concurrently with per-recipient isolation; point-to-point messages require
// a registered recipient unless they resolve a pending execute call. All
// matching transport subscribers are notified regardless of recipient.
func (b *Broker) SendMessage(ctx context.Context, msg core.Message) error {
	resolved := b.resolvePending(msg)

	var recipients []core.Agent
	if msg.IsBroadcast() {
		recipients = b.Agents()
	} else if agent := b.Agent(msg.RecipientID); agent != nil {
		recipients = []core.Agent{agent}
	} else if !resolved && msg.Type != core.MessageTypeResponse {
		// Responses may target external callers (execute originators,
		// the supervisor awaiting acks); those flow to subscribers only.
		b.events.Log(core.EventRecord{
			Type: core.EventWarning, Severity: core.EventSeverityMedium, Source: eventSource,
			Message: "message addressed to unknown agent",
			Data:    map[string]any{"message_id": msg.ID, "recipient_id": msg.RecipientID},
		})
		return fmt.Errorf("send message %s to %q: %w", msg.ID, msg.RecipientID, core.ErrAgentNotRegistered)
	}

	var wg sync.WaitGroup
	for _, agent := range recipients {
		wg.Add(1)
		go func(agent core.Agent) {
			defer wg.Done()
			if err := b.deliver(ctx, agent, msg); err != nil {
				b.metrics.DeliveryFailed()
				b.events.Log(core.EventRecord{
					Type: core.EventError, Severity: core.EventSeverityMedium, Source: eventSource,
					Message: "message delivery failed",
					Data: map[string]any{
						"message_id": msg.ID,
						"agent_id":   agent.Identity().ID,
						"error":      err.Error(),
					},
				})
			}
		}(agent)
	}
	wg.Wait()

	b.metrics.MessageDelivered(string(msg.Type))

	// Reactive subscribers see the envelope after direct delivery settles.
	if err := b.bus.Publish(ctx, msg); err != nil {
		b.events.Log(core.EventRecord{
			Type: core.EventWarning, Severity: core.EventSeverityLow, Source: eventSource,
			Message: "transport publish failed",
			Data:    map[string]any{"message_id": msg.ID, "error": err.Error()},
		})
	}
	return nil
}

// Publish implements core.MessageBus so the broker itself can be handed to
// agents as their transport.
func (b *Broker) Publish(ctx context.Context, msg core.Message) error {
	return b.SendMessage(ctx, msg)
}

// Subscribe registers a transport subscription on behalf of subscriberID.
// Used for cross-agent reactive pipelines (e.g. trigger the validator when
// the builder emits a success response).
func (b *Broker) Subscribe(subscriberID string, handler core.Handler, filter core.Filter) func() {
	return b.bus.Subscribe(subscriberID, handler, filter)
}

// Close shuts down the underlying transport.
func (b *Broker) Close() error { return b.bus.Close() }

// ExecuteOptions shapes an ExecuteAgent call.
type ExecuteOptions struct {
	// AccessLevel is passed through to the agent's context.
	AccessLevel string
	// CorrelationID links the synthesized query to its response. Generated
	// when empty.
	CorrelationID string
	// Parameters are free-form invocation parameters.
	Parameters map[string]any
	// Timeout overrides the broker's execute timeout.
	Timeout time.Duration
}

// ExecuteAgent synthesizes a query message for agentID, invokes the agent and
// returns its direct response. Agent failures (error returns and panics) are
// wrapped into an error-status response, never propagated; an unregistered
// agent id rejects with ErrAgentNotRegistered so callers cannot mistake "no
// such agent" for "agent returned an error".
func (b *Broker) ExecuteAgent(ctx context.Context, agentID string, req core.Request, optFns ...func(o *ExecuteOptions)) (core.AgentResponse, error) {
	opts := ExecuteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	agent := b.Agent(agentID)
	if agent == nil {
		return core.AgentResponse{}, fmt.Errorf("execute agent %q: %w", agentID, core.ErrAgentNotRegistered)
	}

	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = core.NewID()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = b.executeTimeout
	}

	query := b.CreateMessage(core.MessageTypeQuery, "", agentID,
		core.QueryPayload{Operation: req.Operation, Data: req.Data, AccessLevel: opts.AccessLevel, Parameters: opts.Parameters},
		func(o *core.MessageOptions) { o.CorrelationID = correlationID })

	done := make(chan core.AgentResponse, 1)
	b.mu.Lock()
	b.pending[correlationID] = done
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, correlationID)
		b.mu.Unlock()
	}()

	// Reactive subscribers observe the query; agent delivery is direct.
	if err := b.bus.Publish(ctx, query); err != nil {
		b.events.Log(core.EventRecord{
			Type: core.EventWarning, Severity: core.EventSeverityLow, Source: eventSource,
			Message: "transport publish failed",
			Data:    map[string]any{"message_id": query.ID, "error": err.Error()},
		})
	}

	go func() {
		start := time.Now()
		resp := b.safeProcess(ctx, agent, req, &core.AgentContext{
			CorrelationID: correlationID,
			AccessLevel:   opts.AccessLevel,
			Parameters:    opts.Parameters,
			Source:        agentID,
			Events:        b.events,
		})
		b.metrics.ExecutionObserved(agentID, string(resp.Status), time.Since(start))

		response := b.CreateMessage(core.MessageTypeResponse, agentID, query.SenderID,
			core.ResponsePayload{Response: resp},
			func(o *core.MessageOptions) { o.CorrelationID = correlationID })
		_ = b.SendMessage(ctx, response)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return core.AgentResponse{}, ctx.Err()
	case <-timer.C:
		return core.AgentResponse{}, fmt.Errorf("execute agent %q after %s: %w", agentID, timeout, core.ErrExecuteTimeout)
	}
}

// safeProcess invokes Process converting panics and error returns into
// error-status responses.
func (b *Broker) safeProcess(ctx context.Context, agent core.Agent, req core.Request, ac *core.AgentContext) (resp core.AgentResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = core.ErrorResponse(fmt.Sprintf("agent panic: %v", r))
		}
	}()
	resp, err := agent.Process(ctx, req, ac)
	if err != nil {
		return core.ErrorResponse(err.Error())
	}
	return resp
}

// resolvePending hands a correlated response to its waiting execute call.
// Returns true when a pending call consumed the message.
func (b *Broker) resolvePending(msg core.Message) bool {
	if msg.Type != core.MessageTypeResponse || msg.CorrelationID == "" {
		return false
	}
	payload, ok := msg.Content.(core.ResponsePayload)
	if !ok {
		return false
	}

	b.mu.Lock()
	done, ok := b.pending[msg.CorrelationID]
	if ok {
		delete(b.pending, msg.CorrelationID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	done <- payload.Response
	return true
}

// deliver invokes the agent's transport entry point converting a panic into
// an error so one recipient cannot abort a broadcast.
func (b *Broker) deliver(ctx context.Context, agent core.Agent, msg core.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panic: %v", r)
		}
	}()
	return agent.ProcessMessage(ctx, msg)
}

type discardSink struct{}

func (discardSink) Log(core.EventRecord) {}

// Interface compliance (compile-time assertion)
var _ core.MessageBus = (*Broker)(nil)
