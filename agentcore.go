// Package agentcore provides a high-level façade over the orchestration
// core: the broker, the agent manager, the event log and the replay store.
// Most applications interact with this package by:
//  1. Loading or building an AgentSystemConfig
//  2. Creating a System via New() (optionally overriding backends)
//  3. Registering agent factories and calling Start()
//  4. Driving work through Broker().ExecuteAgent or direct messaging
//
// The façade delegates supervision to manager.Manager and routing to
// broker.Broker while keeping setup concise. All defaults are safe for local
// development and testing; production deployments typically select the redis
// transport and replay backends through configuration.
package agentcore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/provalia/agentcore/broker"
	"github.com/provalia/agentcore/bus"
	busredis "github.com/provalia/agentcore/bus/redis"
	"github.com/provalia/agentcore/config"
	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/logging"
	"github.com/provalia/agentcore/manager"
	"github.com/provalia/agentcore/metrics"
	"github.com/provalia/agentcore/replay"
	replayredis "github.com/provalia/agentcore/replay/redis"
)

// Options configures the System instance. Any field left nil is built from
// the configuration.
type Options struct {
	// Logger overrides the structured logger built from cfg.Logger.
	Logger logging.Logger
	// Bus overrides the message transport built from cfg.MessageBroker.
	Bus core.MessageBus
	// Replay overrides the experience store built from cfg.ReplayBuffer.
	Replay core.ReplayStore
	// Metrics overrides the prometheus registry. By default one is created
	// when cfg.Telemetry.Enabled is set.
	Metrics *metrics.Registry
	// RedisClient is shared by redis-backed transport and replay backends.
	// Built from the respective config sections when nil.
	RedisClient *redis.Client
	// EventCapacity bounds the in-memory event log. Zero selects the default.
	EventCapacity int
}

// System aggregates the wired orchestration core.
type System struct {
	cfg     *config.AgentSystemConfig
	logger  logging.Logger
	events  *logging.EventLog
	bus     core.MessageBus
	broker  *broker.Broker
	replay  core.ReplayStore
	manager *manager.Manager
	metrics *metrics.Registry
}

// New wires a System from configuration with optional overrides. A nil cfg
// uses the development defaults.
func New(cfg *config.AgentSystemConfig, optFns ...func(o *Options)) (*System, error) {
	if cfg == nil {
		cfg = config.Default(config.Development)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{EventCapacity: cfg.Logger.EventCapacity}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(&logging.Config{
			Level:    logging.ParseLevel(cfg.Logger.Level),
			Format:   cfg.Logger.Format,
			Backend:  cfg.Logger.Backend,
			FilePath: cfg.Logger.FilePath,
		})
	}
	events := logging.NewEventLog(logger, opts.EventCapacity)

	reg := opts.Metrics
	if reg == nil && cfg.Telemetry.Enabled {
		reg = metrics.New()
	}

	transport := opts.Bus
	if transport == nil {
		switch cfg.MessageBroker.Backend {
		case "redis":
			client := opts.RedisClient
			if client == nil {
				client = redisClient(cfg.MessageBroker.Redis)
			}
			transport = busredis.New(client, func(o *busredis.Options) {
				o.Logger = logger
				if cfg.MessageBroker.Channel != "" {
					o.Channel = cfg.MessageBroker.Channel
				}
			})
		default:
			transport = bus.NewInMemoryBus(func(o *bus.Options) { o.Logger = logger })
		}
	}

	b := broker.New(transport, func(o *broker.Options) {
		o.Events = events
		o.Metrics = reg
		o.ExecuteTimeout = cfg.MessageBroker.ExecuteTimeout
	})

	store := opts.Replay
	if store == nil {
		switch cfg.ReplayBuffer.Backend {
		case "redis":
			client := opts.RedisClient
			if client == nil {
				client = redisClient(cfg.ReplayBuffer.Redis)
			}
			store = replayredis.New(client, replayredis.Config{
				Key:         cfg.ReplayBuffer.Key,
				MaxSize:     int64(cfg.ReplayBuffer.MaxSize),
				Prioritized: cfg.ReplayBuffer.UsePrioritizedSampling,
				Retention:   cfg.ReplayBuffer.Retention(),
			})
		default:
			store = replay.NewInMemoryStore(replay.Config{
				MaxSize:     cfg.ReplayBuffer.MaxSize,
				Prioritized: cfg.ReplayBuffer.UsePrioritizedSampling,
				Retention:   cfg.ReplayBuffer.Retention(),
			})
		}
	}

	m := manager.New(b, store, cfg, func(o *manager.Options) {
		o.Events = events
		o.Metrics = reg
	})

	return &System{
		cfg:     cfg,
		logger:  logger,
		events:  events,
		bus:     transport,
		broker:  b,
		replay:  store,
		manager: m,
		metrics: reg,
	}, nil
}

func redisClient(rc config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: rc.Addr(), Password: rc.Password, DB: rc.DB})
}

// RegisterFactory binds an agent config id to its constructor. Must happen
// before Start.
func (s *System) RegisterFactory(id string, f manager.Factory) {
	s.manager.RegisterFactory(id, f)
}

// Start initializes every enabled configured agent and launches the
// monitoring loops.
func (s *System) Start(ctx context.Context) error {
	return s.manager.InitializeAgents(ctx)
}

// Shutdown stops the monitoring loops and closes the underlying transport.
func (s *System) Shutdown() error {
	s.manager.Shutdown()
	return s.bus.Close()
}

// Manager returns the agent supervisor.
func (s *System) Manager() *manager.Manager { return s.manager }

// Broker returns the message router.
func (s *System) Broker() *broker.Broker { return s.broker }

// Events returns the bounded operational event log.
func (s *System) Events() *logging.EventLog { return s.events }

// Replay returns the experience store agents append to.
func (s *System) Replay() core.ReplayStore { return s.replay }

// Logger returns the structured logger the system writes through.
func (s *System) Logger() logging.Logger { return s.logger }

// Metrics returns the prometheus registry, or nil when telemetry is
// disabled.
func (s *System) Metrics() *metrics.Registry { return s.metrics }
