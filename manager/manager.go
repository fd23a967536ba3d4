package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/provalia/agentcore/broker"
	"github.com/provalia/agentcore/config"
	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/metrics"
)

const eventSource = "agent-manager"

// Factory constructs a concrete agent from its declarative config. The
// factory registry replaces a closed switch over agent ids so new agent
// types plug in without touching the manager.
type Factory func(cfg config.AgentConfig) (core.Agent, error)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// Events receives the manager's operational events.
	Events core.EventSink
	// Metrics enables prometheus instrumentation when non-nil.
	Metrics *metrics.Registry
	// HealthCheckInterval overrides the monitoring config (default 60s).
	HealthCheckInterval time.Duration
	// PerformanceCheckInterval overrides the monitoring config (default 300s).
	PerformanceCheckInterval time.Duration
	// StatusTimeout bounds each Status call made by the periodic loops
	// (default 5s). A timeout is treated identically to a thrown error.
	StatusTimeout time.Duration
}

// Manager supervises the configured agents. It exclusively owns the
// AgentStatus map: status records are created at registration, mutated only
// by the health and performance cycles, and never deleted while the agent
// stays registered.
type Manager struct {
	broker  *broker.Broker
	replay  core.ReplayStore
	cfg     *config.AgentSystemConfig
	events  core.EventSink
	metrics *metrics.Registry

	healthInterval time.Duration
	perfInterval   time.Duration
	statusTimeout  time.Duration

	mu         sync.RWMutex
	factories  map[string]Factory
	agents     map[string]core.Agent
	status     map[string]*core.AgentStatus
	thresholds map[string]*config.PerformanceThresholds

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// New constructs a Manager wired to the broker and replay store. Loop
// intervals come from cfg.Monitoring unless overridden via options.
func New(b *broker.Broker, replay core.ReplayStore, cfg *config.AgentSystemConfig, optFns ...func(o *Options)) *Manager {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	m := &Manager{
		broker:         b,
		replay:         replay,
		cfg:            cfg,
		events:         opts.Events,
		metrics:        opts.Metrics,
		healthInterval: opts.HealthCheckInterval,
		perfInterval:   opts.PerformanceCheckInterval,
		statusTimeout:  opts.StatusTimeout,
		factories:      make(map[string]Factory),
		agents:         make(map[string]core.Agent),
		status:         make(map[string]*core.AgentStatus),
		thresholds:     make(map[string]*config.PerformanceThresholds),
	}
	if m.events == nil {
		m.events = discardSink{}
	}
	if m.healthInterval <= 0 {
		m.healthInterval = cfg.Monitoring.HealthCheckInterval
	}
	if m.healthInterval <= 0 {
		m.healthInterval = 60 * time.Second
	}
	if m.perfInterval <= 0 {
		m.perfInterval = cfg.Monitoring.PerformanceCheckInterval
	}
	if m.perfInterval <= 0 {
		m.perfInterval = 300 * time.Second
	}
	if m.statusTimeout <= 0 {
		m.statusTimeout = cfg.Monitoring.StatusTimeout
	}
	if m.statusTimeout <= 0 {
		m.statusTimeout = 5 * time.Second
	}
	return m
}

// RegisterFactory binds an agent config id to its constructor. Must happen
// before InitializeAgents.
func (m *Manager) RegisterFactory(id string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[id] = f
}

// InitializeAgents instantiates every enabled agent config and starts the
// periodic monitoring loops. One agent failing to initialize logs an error
// and does not abort initialization of the remaining agents.
func (m *Manager) InitializeAgents(ctx context.Context) error {
	for _, ac := range m.cfg.EnabledAgents() {
		if _, err := m.InitializeAgent(ctx, ac); err != nil {
			m.events.Log(core.EventRecord{
				Type: core.EventError, Severity: core.EventSeverityHigh, Source: eventSource,
				Message: "agent initialization failed",
				Data:    map[string]any{"agent_id": ac.ID, "error": err.Error()},
			})
		}
	}
	m.startLoops()
	return nil
}

// InitializeAgent builds, wires and registers a single agent. Unknown config
// ids log a high-severity error and return (nil, nil) so the offending agent
// is simply absent from the registry; duplicate ids log a low-severity
// warning and return the already-registered agent.
func (m *Manager) InitializeAgent(ctx context.Context, ac config.AgentConfig) (core.Agent, error) {
	m.mu.RLock()
	existing := m.agents[ac.ID]
	factory := m.factories[ac.ID]
	m.mu.RUnlock()

	if existing != nil {
		m.events.Log(core.EventRecord{
			Type: core.EventWarning, Severity: core.EventSeverityLow, Source: eventSource,
			Message: "agent already initialized", Data: map[string]any{"agent_id": ac.ID},
		})
		return existing, nil
	}
	if factory == nil {
		m.events.Log(core.EventRecord{
			Type: core.EventError, Severity: core.EventSeverityHigh, Source: eventSource,
			Message: "no factory for agent id", Data: map[string]any{"agent_id": ac.ID},
		})
		return nil, nil
	}

	agent, err := factory(ac)
	if err != nil {
		return nil, fmt.Errorf("construct agent %q: %w", ac.ID, err)
	}
	if err := agent.Initialize(ctx, m.broker, m.replay); err != nil {
		return nil, fmt.Errorf("initialize agent %q: %w", ac.ID, err)
	}
	if err := m.broker.RegisterAgent(agent); err != nil {
		return nil, fmt.Errorf("register agent %q: %w", ac.ID, err)
	}

	m.mu.Lock()
	m.agents[ac.ID] = agent
	m.status[ac.ID] = &core.AgentStatus{ID: ac.ID, Active: true, Healthy: true}
	m.thresholds[ac.ID] = ac.PerformanceThresholds
	m.mu.Unlock()

	m.metrics.SetAgentHealthy(ac.ID, true)
	m.events.Log(core.EventRecord{
		Type: core.EventInfo, Source: eventSource,
		Message: "agent initialized",
		Data:    map[string]any{"agent_id": ac.ID, "name": ac.Name, "capabilities": ac.Capabilities},
	})
	return agent, nil
}

// Agent returns the managed agent for id, or nil.
func (m *Manager) Agent(id string) core.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.agents[id]
}

// Agents returns a snapshot of all managed agents.
func (m *Manager) Agents() []core.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out
}

// AgentStatus returns a copy of the stored status for id.
func (m *Manager) AgentStatus(id string) (core.AgentStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[id]
	if !ok {
		return core.AgentStatus{}, false
	}
	return *st, true
}

// AllAgentStatus returns a copy of every stored status keyed by agent id.
func (m *Manager) AllAgentStatus() map[string]core.AgentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]core.AgentStatus, len(m.status))
	for id, st := range m.status {
		out[id] = *st
	}
	return out
}

// RequestAssistance broadcasts a high-priority, acknowledgment-required
// escalation on behalf of a struggling agent. Every registered agent
// receives it. Send failures are caught and logged, never propagated.
func (m *Manager) RequestAssistance(ctx context.Context, agentID, issueType string, data map[string]any) {
	requestID := core.NewID()
	msg := m.broker.CreateMessage(core.MessageTypeQuery, eventSource, core.BroadcastRecipient,
		core.AssistancePayload{RequestID: requestID, AgentID: agentID, IssueType: issueType, Data: data},
		func(o *core.MessageOptions) {
			o.Priority = core.PriorityHigh
			o.RequiresAcknowledgment = true
		})

	if err := m.broker.SendMessage(ctx, msg); err != nil {
		m.events.Log(core.EventRecord{
			Type: core.EventError, Severity: core.EventSeverityMedium, Source: eventSource,
			Message: "assistance request failed",
			Data:    map[string]any{"agent_id": agentID, "issue_type": issueType, "error": err.Error()},
		})
		return
	}

	m.metrics.AssistanceRequested(issueType)
	m.events.Log(core.EventRecord{
		Type: core.EventInfo, Source: eventSource,
		Message: "assistance requested",
		Data:    map[string]any{"agent_id": agentID, "issue_type": issueType, "request_id": requestID},
	})
}

// Shutdown stops the monitoring loops and logs a final summary. Idempotent;
// registered agents and their status records are left in place.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	cancel := m.loopCancel
	m.loopCancel = nil
	agentCount := len(m.agents)
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.loopWG.Wait()

	m.events.Log(core.EventRecord{
		Type: core.EventInfo, Source: eventSource,
		Message: "agent manager shut down", Data: map[string]any{"agents": agentCount},
	})
}

type discardSink struct{}

func (discardSink) Log(core.EventRecord) {}
