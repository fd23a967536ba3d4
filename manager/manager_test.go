package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provalia/agentcore/agent"
	"github.com/provalia/agentcore/broker"
	"github.com/provalia/agentcore/bus"
	"github.com/provalia/agentcore/config"
	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/internal/testutil"
	"github.com/provalia/agentcore/logging"
	"github.com/provalia/agentcore/replay"
)

type fixture struct {
	events  *logging.EventLog
	broker  *broker.Broker
	replay  *replay.InMemoryStore
	manager *Manager
}

func newFixture(t *testing.T, agents ...config.AgentConfig) *fixture {
	t.Helper()
	events := logging.NewEventLog(logging.NoOpLogger{}, 0)
	b := broker.New(bus.NewInMemoryBus(), func(o *broker.Options) { o.Events = events })
	store := replay.NewInMemoryStore(replay.Config{MaxSize: 100})

	cfg := config.Default(config.Development)
	cfg.Agents = agents
	// Long intervals: tests drive the check passes directly.
	cfg.Monitoring.HealthCheckInterval = time.Hour
	cfg.Monitoring.PerformanceCheckInterval = time.Hour
	cfg.Monitoring.StatusTimeout = 200 * time.Millisecond

	m := New(b, store, cfg, func(o *Options) { o.Events = events })
	t.Cleanup(m.Shutdown)
	return &fixture{events: events, broker: b, replay: store, manager: m}
}

func stubFactory(stub *testutil.StubAgent) Factory {
	return func(config.AgentConfig) (core.Agent, error) { return stub, nil }
}

func enabledAgent(id string) config.AgentConfig {
	return config.AgentConfig{ID: id, Name: id, Capabilities: []string{"process"}, Enabled: true}
}

func TestInitializeAgentUnknownID(t *testing.T) {
	f := newFixture(t)

	got, err := f.manager.InitializeAgent(context.Background(), enabledAgent("no-such-agent"))
	require.NoError(t, err)
	assert.Nil(t, got)

	// No registry entry and exactly one high-severity error event.
	assert.Nil(t, f.manager.Agent("no-such-agent"))
	_, ok := f.manager.AgentStatus("no-such-agent")
	assert.False(t, ok)
	errs := f.events.RecordsByType(core.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, core.EventSeverityHigh, errs[0].Severity)
}

func TestInitializeAgentDuplicate(t *testing.T) {
	f := newFixture(t)
	stub := testutil.NewStubAgent("valuation")
	f.manager.RegisterFactory("valuation", stubFactory(stub))

	first, err := f.manager.InitializeAgent(context.Background(), enabledAgent("valuation"))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.manager.InitializeAgent(context.Background(), enabledAgent("valuation"))
	require.NoError(t, err)
	assert.Same(t, first.(*testutil.StubAgent), second.(*testutil.StubAgent))

	warnings := f.events.RecordsByType(core.EventWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, core.EventSeverityLow, warnings[0].Severity)
}

func TestInitializeAgentsPartialFailure(t *testing.T) {
	f := newFixture(t, enabledAgent("broken"), enabledAgent("working"))
	f.manager.RegisterFactory("broken", func(config.AgentConfig) (core.Agent, error) {
		return nil, errors.New("bad wiring")
	})
	f.manager.RegisterFactory("working", stubFactory(testutil.NewStubAgent("working")))

	require.NoError(t, f.manager.InitializeAgents(context.Background()))

	assert.Nil(t, f.manager.Agent("broken"))
	assert.NotNil(t, f.manager.Agent("working"))
	st, ok := f.manager.AgentStatus("working")
	require.True(t, ok)
	assert.True(t, st.Active)
	assert.True(t, st.Healthy)
}

func TestHealthCheckMergesMetrics(t *testing.T) {
	f := newFixture(t)
	stub := testutil.NewStubAgent("worker")
	stub.StatusFn = func(context.Context) (core.AgentStatus, error) {
		return core.AgentStatus{
			ID: "worker", Active: true, Healthy: true,
			Metrics: core.AgentMetrics{RequestsProcessed: 7, ErrorsEncountered: 2, AvgProcessingTime: 40 * time.Millisecond},
		}, nil
	}
	f.manager.RegisterFactory("worker", stubFactory(stub))
	_, err := f.manager.InitializeAgent(context.Background(), enabledAgent("worker"))
	require.NoError(t, err)

	f.manager.runHealthChecks(context.Background())

	st, ok := f.manager.AgentStatus("worker")
	require.True(t, ok)
	assert.EqualValues(t, 7, st.Metrics.RequestsProcessed)
	assert.EqualValues(t, 2, st.Metrics.ErrorsEncountered)
	assert.False(t, st.Metrics.LastHealthCheck.IsZero())
}

func TestHealthCheckFailureMarksUnhealthy(t *testing.T) {
	f := newFixture(t)
	stub := testutil.NewStubAgent("shaky")
	var failing atomic.Bool
	stub.StatusFn = func(context.Context) (core.AgentStatus, error) {
		if failing.Load() {
			return core.AgentStatus{}, errors.New("status backend down")
		}
		return core.AgentStatus{ID: "shaky", Active: true, Healthy: true}, nil
	}
	f.manager.RegisterFactory("shaky", stubFactory(stub))
	_, err := f.manager.InitializeAgent(context.Background(), enabledAgent("shaky"))
	require.NoError(t, err)

	failing.Store(true)
	f.manager.runHealthChecks(context.Background())

	st, ok := f.manager.AgentStatus("shaky")
	require.True(t, ok)
	assert.False(t, st.Healthy)
	require.NotNil(t, st.LastError)
	assert.Contains(t, st.LastError.Message, "status backend down")

	// Recovery on the next pass flips the state back and logs it.
	failing.Store(false)
	f.manager.runHealthChecks(context.Background())
	st, _ = f.manager.AgentStatus("shaky")
	assert.True(t, st.Healthy)

	var recovered bool
	for _, r := range f.events.RecordsByType(core.EventInfo) {
		if r.Message == "agent recovered" {
			recovered = true
		}
	}
	assert.True(t, recovered)
}

func TestHealthCheckTimeout(t *testing.T) {
	f := newFixture(t)
	stub := testutil.NewStubAgent("hung")
	stub.StatusFn = func(ctx context.Context) (core.AgentStatus, error) {
		<-ctx.Done()
		return core.AgentStatus{}, ctx.Err()
	}
	f.manager.RegisterFactory("hung", stubFactory(stub))
	_, err := f.manager.InitializeAgent(context.Background(), enabledAgent("hung"))
	require.NoError(t, err)

	start := time.Now()
	f.manager.runHealthChecks(context.Background())
	assert.Less(t, time.Since(start), 2*time.Second)

	st, ok := f.manager.AgentStatus("hung")
	require.True(t, ok)
	assert.False(t, st.Healthy)
}

func TestPerformanceCheckEscalatesHighErrorRate(t *testing.T) {
	maxRate := 0.1
	ac := enabledAgent("overloaded")
	ac.PerformanceThresholds = &config.PerformanceThresholds{MaxErrorRate: &maxRate}

	f := newFixture(t)
	stub := testutil.NewStubAgent("overloaded")
	stub.StatusFn = func(context.Context) (core.AgentStatus, error) {
		return core.AgentStatus{
			ID: "overloaded", Active: true, Healthy: true,
			Metrics: core.AgentMetrics{RequestsProcessed: 100, ErrorsEncountered: 20},
		}, nil
	}
	listener := testutil.NewStubAgent("listener")
	f.manager.RegisterFactory("overloaded", stubFactory(stub))
	f.manager.RegisterFactory("listener", stubFactory(listener))

	ctx := context.Background()
	_, err := f.manager.InitializeAgent(ctx, ac)
	require.NoError(t, err)
	_, err = f.manager.InitializeAgent(ctx, enabledAgent("listener"))
	require.NoError(t, err)

	f.manager.runHealthChecks(ctx)
	f.manager.runPerformanceChecks(ctx)

	// Exactly one warning for the breach.
	warnings := f.events.RecordsByType(core.EventWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, core.EventSeverityMedium, warnings[0].Severity)
	assert.Equal(t, "high_error_rate", warnings[0].Data["issue_type"])

	// Exactly one assistance broadcast, received by every registered agent.
	assistance := 0
	for _, msg := range listener.Received() {
		if payload, ok := msg.Content.(core.AssistancePayload); ok {
			assistance++
			assert.Equal(t, "overloaded", payload.AgentID)
			assert.Equal(t, "high_error_rate", payload.IssueType)
			assert.Equal(t, core.PriorityHigh, msg.Priority)
			assert.True(t, msg.RequiresAcknowledgment)
			assert.True(t, msg.IsBroadcast())
		}
	}
	assert.Equal(t, 1, assistance)
}

func TestPerformanceCheckSkipsUnhealthyAgents(t *testing.T) {
	maxRate := 0.1
	ac := enabledAgent("sick")
	ac.PerformanceThresholds = &config.PerformanceThresholds{MaxErrorRate: &maxRate}

	f := newFixture(t)
	stub := testutil.NewStubAgent("sick")
	stub.StatusFn = func(context.Context) (core.AgentStatus, error) {
		return core.AgentStatus{
			ID: "sick", Active: true, Healthy: false,
			Metrics: core.AgentMetrics{RequestsProcessed: 100, ErrorsEncountered: 90},
		}, nil
	}
	f.manager.RegisterFactory("sick", stubFactory(stub))
	_, err := f.manager.InitializeAgent(context.Background(), ac)
	require.NoError(t, err)

	f.manager.runHealthChecks(context.Background())
	f.manager.runPerformanceChecks(context.Background())

	for _, r := range f.events.RecordsByType(core.EventWarning) {
		assert.NotEqual(t, "performance threshold breached", r.Message)
	}
}

func TestPerformanceCheckSkipsZeroRequests(t *testing.T) {
	maxRate := 0.0
	ac := enabledAgent("idle")
	ac.PerformanceThresholds = &config.PerformanceThresholds{MaxErrorRate: &maxRate}

	f := newFixture(t)
	stub := testutil.NewStubAgent("idle")
	f.manager.RegisterFactory("idle", stubFactory(stub))
	_, err := f.manager.InitializeAgent(context.Background(), ac)
	require.NoError(t, err)

	f.manager.runHealthChecks(context.Background())
	f.manager.runPerformanceChecks(context.Background())

	require.Empty(t, f.events.RecordsByType(core.EventWarning))
}

func TestShutdownIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.InitializeAgents(context.Background()))
	f.manager.Shutdown()
	f.manager.Shutdown() // second call must not panic or block
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t, enabledAgent("A"), enabledAgent("B"))

	var statusFails atomic.Bool
	agentA := agent.New(core.AgentIdentity{ID: "A", Name: "A", Capabilities: []string{"process"}}, func(o *agent.Options) {
		o.Events = f.events
		o.Process = func(_ context.Context, req core.Request, _ *core.AgentContext) (core.AgentResponse, error) {
			if req.Operation == "echo" {
				return core.SuccessResponse("echoed", req.Data), nil
			}
			return core.ErrorResponse("unsupported operation " + req.Operation), nil
		}
		o.SelfCheck = func(context.Context) (bool, map[string]any, error) {
			if statusFails.Load() {
				return false, nil, errors.New("self check blew up")
			}
			return true, nil, nil
		}
	})
	f.manager.RegisterFactory("A", func(config.AgentConfig) (core.Agent, error) { return agentA, nil })
	f.manager.RegisterFactory("B", stubFactory(testutil.NewStubAgent("B")))

	ctx := context.Background()
	require.NoError(t, f.manager.InitializeAgents(ctx))

	resp, err := f.broker.ExecuteAgent(ctx, "A", core.Request{Operation: "echo", Data: map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, resp.Status)
	assert.Equal(t, 1, resp.Data["x"])

	f.manager.runHealthChecks(ctx)
	st, ok := f.manager.AgentStatus("A")
	require.True(t, ok)
	assert.True(t, st.Healthy)
	assert.EqualValues(t, 1, st.Metrics.RequestsProcessed)

	// Force the next status poll to fail; the tick flips A to unhealthy.
	statusFails.Store(true)
	f.manager.runHealthChecks(ctx)

	st, _ = f.manager.AgentStatus("A")
	assert.False(t, st.Healthy)

	var mentioned bool
	for _, r := range f.events.RecordsByType(core.EventError) {
		if r.Data["agent_id"] == "A" {
			mentioned = true
		}
	}
	assert.True(t, mentioned)
}
