package agentcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provalia/agentcore/config"
	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/internal/testutil"
)

func TestNewDefaults(t *testing.T) {
	system, err := New(nil)
	require.NoError(t, err)
	defer system.Shutdown()

	assert.NotNil(t, system.Broker())
	assert.NotNil(t, system.Manager())
	assert.NotNil(t, system.Events())
	assert.NotNil(t, system.Replay())
	assert.Nil(t, system.Metrics()) // telemetry is off in development
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.MessageBroker.Backend = "carrier-pigeon"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestSystemExecuteRoundTrip(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.Monitoring.HealthCheckInterval = time.Hour
	cfg.Monitoring.PerformanceCheckInterval = time.Hour
	cfg.Agents = []config.AgentConfig{
		{ID: "echo", Name: "echo", Capabilities: []string{"process"}, Enabled: true},
	}

	system, err := New(cfg)
	require.NoError(t, err)
	defer system.Shutdown()

	stub := testutil.NewStubAgent("echo")
	system.RegisterFactory("echo", func(config.AgentConfig) (core.Agent, error) { return stub, nil })

	ctx := context.Background()
	require.NoError(t, system.Start(ctx))

	resp, err := system.Broker().ExecuteAgent(ctx, "echo", core.Request{
		Operation: "process",
		Data:      map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, resp.Status)
	assert.Equal(t, "v", resp.Data["k"])

	st, ok := system.Manager().AgentStatus("echo")
	require.True(t, ok)
	assert.True(t, st.Active)
}

func TestTelemetryEnabledBuildsRegistry(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.Telemetry.Enabled = true
	system, err := New(cfg)
	require.NoError(t, err)
	defer system.Shutdown()
	require.NotNil(t, system.Metrics())
	assert.NotNil(t, system.Metrics().Gatherer())
}
