package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/logging"
)

// Options holds dependency overrides passed to NewInMemoryBus.
type Options struct {
	// Logger receives delivery diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// InMemoryBus is the process-local MessageBus. Publish fans out to every
// matching subscriber concurrently and waits for all deliveries to settle;
// one subscriber's failure or panic never aborts delivery to siblings.
//
// Concurrency: the subscription table is protected by RWMutex; handlers run
// on their own goroutines. No ordering guarantee is made between independent
// messages.
type InMemoryBus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
	logger logging.Logger
}

type subscription struct {
	subscriberID string
	handler      core.Handler
	filter       core.Filter
}

// NewInMemoryBus creates an empty in-memory bus.
func NewInMemoryBus(optFns ...func(o *Options)) *InMemoryBus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryBus{subs: make(map[int]*subscription), logger: opts.Logger}
}

// Subscribe registers a handler for messages matching the filter. The
// returned unsubscribe function is idempotent.
func (b *InMemoryBus) Subscribe(subscriberID string, handler core.Handler, filter core.Filter) func() {
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

// Publish delivers the message to all matching subscribers and blocks until
// every delivery has settled. Returns ErrBusClosed after Close; per-recipient
// failures are logged, not returned.
func (b *InMemoryBus) Publish(ctx context.Context, msg core.Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return core.ErrBusClosed
	}
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
			if err := deliver(ctx, sub.handler, msg); err != nil {
				b.logger.Warn("subscriber delivery failed",
					"subscriber_id", sub.subscriberID, "message_id", msg.ID, "error", err.Error())
			}
		}(sub)
	}
	wg.Wait()
	return nil
}

// Close marks the bus closed. Subsequent Publish calls return ErrBusClosed.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// deliver invokes the handler converting a panic into an error so a broken
// subscriber cannot take down the publisher.
func deliver(ctx context.Context, handler core.Handler, msg core.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

// Interface compliance (compile-time assertion)
var _ core.MessageBus = (*InMemoryBus)(nil)
