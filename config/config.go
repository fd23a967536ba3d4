// Package config holds the declarative, hierarchical configuration the
// orchestration core is built from: agent definitions with performance
// thresholds, transport and replay backend selection, logging and telemetry
// settings. Configuration is read once at startup and never mutated by the
// core at runtime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment selects which static configuration variant is active.
type Environment string

const (
	// Development is the default environment.
	Development Environment = "development"
	// Staging mirrors production topology with relaxed thresholds.
	Staging Environment = "staging"
	// Production swaps persistence, logging and security settings.
	Production Environment = "production"
)

// AgentSystemConfig is the root configuration consumed read-only by the
// manager at startup.
type AgentSystemConfig struct {
	Environment   Environment         `mapstructure:"environment"`
	MessageBroker MessageBrokerConfig `mapstructure:"message_broker"`
	ReplayBuffer  ReplayBufferConfig  `mapstructure:"replay_buffer"`
	Training      TrainingConfig      `mapstructure:"training"`
	Agents        []AgentConfig       `mapstructure:"agents"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Dashboard     DashboardConfig     `mapstructure:"dashboard"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Security      *SecurityConfig     `mapstructure:"security"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
}

// RedisConfig locates a redis backend.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port for client construction.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// MessageBrokerConfig selects and tunes the message transport.
type MessageBrokerConfig struct {
	// Backend is "in-memory" (default) or "redis".
	Backend        string        `mapstructure:"backend"`
	ExecuteTimeout time.Duration `mapstructure:"execute_timeout"`
	Channel        string        `mapstructure:"channel"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

// ReplayBufferConfig selects and tunes the experience store.
type ReplayBufferConfig struct {
	// Backend is "in-memory" (default) or "redis".
	Backend                string      `mapstructure:"backend"`
	MaxSize                int         `mapstructure:"max_size"`
	UsePrioritizedSampling bool        `mapstructure:"use_prioritized_sampling"`
	RetentionDays          int         `mapstructure:"retention_days"`
	Key                    string      `mapstructure:"key"`
	Redis                  RedisConfig `mapstructure:"redis"`
}

// Retention converts RetentionDays to a duration; zero keeps records
// indefinitely.
func (r ReplayBufferConfig) Retention() time.Duration {
	return time.Duration(r.RetentionDays) * 24 * time.Hour
}

// TrainingConfig is passed through to replay consumers untouched; the core
// does not interpret it.
type TrainingConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MinSamples int  `mapstructure:"min_samples"`
	BatchSize  int  `mapstructure:"batch_size"`
}

// LoggerConfig shapes the structured logger and event log.
type LoggerConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Backend       string `mapstructure:"backend"`
	FilePath      string `mapstructure:"file_path"`
	EventCapacity int    `mapstructure:"event_capacity"`
}

// DashboardConfig is consumed by the embedding application's operational
// dashboard; the core only carries it.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TelemetryConfig toggles prometheus instrumentation.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SecurityConfig holds access-level defaults for execute calls.
type SecurityConfig struct {
	DefaultAccessLevel string `mapstructure:"default_access_level"`
}

// MonitoringConfig tunes the manager's periodic loops.
type MonitoringConfig struct {
	HealthCheckInterval      time.Duration `mapstructure:"health_check_interval"`
	PerformanceCheckInterval time.Duration `mapstructure:"performance_check_interval"`
	StatusTimeout            time.Duration `mapstructure:"status_timeout"`
}

// PerformanceThresholds bound an agent's observed metrics. Nil fields are
// not evaluated.
type PerformanceThresholds struct {
	MaxErrorRate           *float64       `mapstructure:"max_error_rate"`
	MaxAvgProcessingTime   *time.Duration `mapstructure:"max_avg_processing_time"`
	MaxConsecutiveFailures *int64         `mapstructure:"max_consecutive_failures"`
}

// AgentConfig declares one agent instance.
type AgentConfig struct {
	ID                    string                 `mapstructure:"id"`
	Name                  string                 `mapstructure:"name"`
	Capabilities          []string               `mapstructure:"capabilities"`
	Enabled               bool                   `mapstructure:"enabled"`
	PerformanceThresholds *PerformanceThresholds `mapstructure:"performance_thresholds"`
	Settings              map[string]any         `mapstructure:"settings"`
}

// Default returns the static configuration variant for the environment.
func Default(env Environment) *AgentSystemConfig {
	cfg := &AgentSystemConfig{
		Environment: env,
		MessageBroker: MessageBrokerConfig{
			Backend:        "in-memory",
			ExecuteTimeout: 30 * time.Second,
		},
		ReplayBuffer: ReplayBufferConfig{
			Backend:                "in-memory",
			MaxSize:                10000,
			UsePrioritizedSampling: true,
		},
		Logger: LoggerConfig{Level: "debug", Format: "text", Backend: "console"},
		Monitoring: MonitoringConfig{
			HealthCheckInterval:      60 * time.Second,
			PerformanceCheckInterval: 300 * time.Second,
			StatusTimeout:            5 * time.Second,
		},
	}
	switch env {
	case Production:
		cfg.Logger = LoggerConfig{Level: "info", Format: "json", Backend: "file", FilePath: "/var/log/agentcore/events.log"}
		cfg.MessageBroker.Backend = "redis"
		cfg.ReplayBuffer.Backend = "redis"
		cfg.ReplayBuffer.RetentionDays = 30
		cfg.Telemetry.Enabled = true
		cfg.Security = &SecurityConfig{DefaultAccessLevel: "restricted"}
	case Staging:
		cfg.Logger = LoggerConfig{Level: "info", Format: "json", Backend: "console"}
		cfg.Telemetry.Enabled = true
	}
	return cfg
}

// Load reads configuration from an optional YAML file plus AGENTCORE_*
// environment variables, applying the environment overlay nested under
// "environments.<env>" when present.
func Load(path string, env Environment) (*AgentSystemConfig, error) {
	if env == "" {
		env = Development
	}

	v := viper.New()
	setDefaults(v, env)

	v.SetEnvPrefix("AGENTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if overlay := v.Sub("environments." + string(env)); overlay != nil {
			if err := v.MergeConfigMap(overlay.AllSettings()); err != nil {
				return nil, fmt.Errorf("merge %s overlay: %w", env, err)
			}
		}
	}

	cfg := new(AgentSystemConfig)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Environment = env
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, env Environment) {
	base := Default(env)
	v.SetDefault("environment", string(base.Environment))
	v.SetDefault("message_broker.backend", base.MessageBroker.Backend)
	v.SetDefault("message_broker.execute_timeout", base.MessageBroker.ExecuteTimeout)
	v.SetDefault("replay_buffer.backend", base.ReplayBuffer.Backend)
	v.SetDefault("replay_buffer.max_size", base.ReplayBuffer.MaxSize)
	v.SetDefault("replay_buffer.use_prioritized_sampling", base.ReplayBuffer.UsePrioritizedSampling)
	v.SetDefault("replay_buffer.retention_days", base.ReplayBuffer.RetentionDays)
	v.SetDefault("logger.level", base.Logger.Level)
	v.SetDefault("logger.format", base.Logger.Format)
	v.SetDefault("logger.backend", base.Logger.Backend)
	v.SetDefault("logger.file_path", base.Logger.FilePath)
	v.SetDefault("telemetry.enabled", base.Telemetry.Enabled)
	v.SetDefault("monitoring.health_check_interval", base.Monitoring.HealthCheckInterval)
	v.SetDefault("monitoring.performance_check_interval", base.Monitoring.PerformanceCheckInterval)
	v.SetDefault("monitoring.status_timeout", base.Monitoring.StatusTimeout)
}

// Validate rejects configurations the manager cannot start from.
func (c *AgentSystemConfig) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for _, agent := range c.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent config with empty id")
		}
		if seen[agent.ID] {
			return fmt.Errorf("duplicate agent config id %q", agent.ID)
		}
		seen[agent.ID] = true
		if t := agent.PerformanceThresholds; t != nil && t.MaxErrorRate != nil {
			if *t.MaxErrorRate < 0 || *t.MaxErrorRate > 1 {
				return fmt.Errorf("agent %q: max_error_rate %v outside [0,1]", agent.ID, *t.MaxErrorRate)
			}
		}
	}
	switch c.MessageBroker.Backend {
	case "", "in-memory", "redis":
	default:
		return fmt.Errorf("unknown message broker backend %q", c.MessageBroker.Backend)
	}
	switch c.ReplayBuffer.Backend {
	case "", "in-memory", "redis":
	default:
		return fmt.Errorf("unknown replay buffer backend %q", c.ReplayBuffer.Backend)
	}
	return nil
}

// EnabledAgents returns the agent configs the manager should instantiate.
func (c *AgentSystemConfig) EnabledAgents() []AgentConfig {
	out := make([]AgentConfig, 0, len(c.Agents))
	for _, a := range c.Agents {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}
