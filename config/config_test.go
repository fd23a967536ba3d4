package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultVariants(t *testing.T) {
	dev := Default(Development)
	assert.Equal(t, "in-memory", dev.MessageBroker.Backend)
	assert.Equal(t, "text", dev.Logger.Format)
	assert.Nil(t, dev.Security)

	prod := Default(Production)
	assert.Equal(t, "redis", prod.MessageBroker.Backend)
	assert.Equal(t, "file", prod.Logger.Backend)
	assert.True(t, prod.Telemetry.Enabled)
	require.NotNil(t, prod.Security)
	assert.Equal(t, "restricted", prod.Security.DefaultAccessLevel)
	assert.Equal(t, 30*24*time.Hour, prod.ReplayBuffer.Retention())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, 60*time.Second, cfg.Monitoring.HealthCheckInterval)
	assert.Equal(t, 300*time.Second, cfg.Monitoring.PerformanceCheckInterval)
}

func TestLoadFileAndOverlay(t *testing.T) {
	path := writeConfig(t, `
message_broker:
  backend: in-memory
replay_buffer:
  max_size: 500
agents:
  - id: valuation
    name: Valuation Agent
    capabilities: [validate, process]
    enabled: true
    performance_thresholds:
      max_error_rate: 0.1
      max_avg_processing_time: 2s
  - id: compliance
    name: Compliance Agent
    enabled: false
environments:
  production:
    message_broker:
      backend: redis
    replay_buffer:
      max_size: 100000
`)

	dev, err := Load(path, Development)
	require.NoError(t, err)
	assert.Equal(t, "in-memory", dev.MessageBroker.Backend)
	assert.Equal(t, 500, dev.ReplayBuffer.MaxSize)
	require.Len(t, dev.Agents, 2)

	enabled := dev.EnabledAgents()
	require.Len(t, enabled, 1)
	assert.Equal(t, "valuation", enabled[0].ID)
	require.NotNil(t, enabled[0].PerformanceThresholds)
	require.NotNil(t, enabled[0].PerformanceThresholds.MaxErrorRate)
	assert.InDelta(t, 0.1, *enabled[0].PerformanceThresholds.MaxErrorRate, 1e-9)
	require.NotNil(t, enabled[0].PerformanceThresholds.MaxAvgProcessingTime)
	assert.Equal(t, 2*time.Second, *enabled[0].PerformanceThresholds.MaxAvgProcessingTime)

	prod, err := Load(path, Production)
	require.NoError(t, err)
	assert.Equal(t, "redis", prod.MessageBroker.Backend)
	assert.Equal(t, 100000, prod.ReplayBuffer.MaxSize)
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	cfg := Default(Development)
	cfg.Agents = []AgentConfig{{ID: "a", Enabled: true}, {ID: "a", Enabled: true}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadErrorRate(t *testing.T) {
	rate := 1.5
	cfg := Default(Development)
	cfg.Agents = []AgentConfig{{ID: "a", PerformanceThresholds: &PerformanceThresholds{MaxErrorRate: &rate}}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default(Development)
	cfg.MessageBroker.Backend = "kafka"
	assert.Error(t, cfg.Validate())
}
