// Package redis provides a MessageBus backend on top of redis pub/sub.
// Envelopes travel as JSON on a single channel; filtering happens locally on
// each subscribing process, preserving the in-memory bus contract.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/logging"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "agentcore:messages"

// Options holds configuration overrides passed to New.
type Options struct {
	// Channel overrides the pub/sub channel name.
	Channel string
	// Logger receives delivery diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Bus is a redis pub/sub backed MessageBus. All instances sharing a channel
// see each other's traffic, enabling multi-process deployments without
// changing broker or agent code.
type Bus struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	logger  logging.Logger

	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
	wg     sync.WaitGroup
}

type subscription struct {
	subscriberID string
	handler      core.Handler
	filter       core.Filter
}

// New creates a Bus over an established redis client and starts its receive
// loop. The caller retains ownership of the client.
func New(client *redis.Client, optFns ...func(o *Options)) *Bus {
	opts := Options{Channel: DefaultChannel, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		client:  client,
		channel: opts.Channel,
		pubsub:  client.Subscribe(ctx, opts.Channel),
		cancel:  cancel,
		logger:  opts.Logger,
		subs:    make(map[int]*subscription),
	}

	b.wg.Add(1)
	go b.receive(ctx)
	return b
}

// Publish encodes the message and publishes it on the configured channel.
func (b *Bus) Publish(ctx context.Context, msg core.Message) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return core.ErrBusClosed
	}

	data, err := encodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish message %s: %w", msg.ID, err)
	}
	return nil
}

// Subscribe registers a local handler for messages matching the filter. The
// returned unsubscribe function is idempotent.
func (b *Bus) Subscribe(subscriberID string, handler core.Handler, filter core.Filter) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{subscriberID: subscriberID, handler: handler, filter: filter}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

// Close stops the receive loop and the underlying pub/sub. The redis client
// itself is left open for the owner to close.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

func (b *Bus) receive(ctx context.Context) {
	defer b.wg.Done()
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			msg, err := decodeMessage([]byte(raw.Payload))
			if err != nil {
				b.logger.Warn("dropping undecodable message", "error", err.Error())
				continue
			}
			b.dispatch(ctx, msg)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg core.Message) {
	b.mu.RLock()
	matching := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.Matches(msg) {
			matching = append(matching, sub)
		}
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range matching {
		wg.Add(1)
		go func(sub *subscription) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Warn("subscriber panic",
						"subscriber_id", sub.subscriberID, "message_id", msg.ID, "panic", fmt.Sprint(r))
				}
			}()
			if err := sub.handler(ctx, msg); err != nil {
				b.logger.Warn("subscriber delivery failed",
					"subscriber_id", sub.subscriberID, "message_id", msg.ID, "error", err.Error())
			}
		}(sub)
	}
	wg.Wait()
}

// Interface compliance (compile-time assertion)
var _ core.MessageBus = (*Bus)(nil)
