package core

import "context"

// Handler consumes a delivered message. A non-nil error is recorded by the
// transport and never aborts delivery to sibling recipients.
type Handler func(ctx context.Context, msg Message) error

// Filter narrows which messages a subscription receives. Zero-value fields
// match everything; both constraints must hold when set.
type Filter struct {
	SenderID string
	Types    []MessageType
}

// Matches reports whether the message satisfies the filter.
func (f Filter) Matches(m Message) bool {
	if f.SenderID != "" && f.SenderID != m.SenderID {
		return false
	}
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if t == m.Type {
				return true
			}
		}
		return false
	}
	return true
}

// MessageBus is the pluggable pub/sub transport underneath the broker.
// Publish fans a message out to every matching subscriber; subscriber
// failures are isolated per recipient. The bus makes no ordering guarantee
// between independent messages.
type MessageBus interface {
	// Publish delivers the message to all matching subscribers.
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers a handler for messages matching the filter on
	// behalf of subscriberID. The returned function removes the
	// subscription and is safe to call more than once.
	Subscribe(subscriberID string, handler Handler, filter Filter) (unsubscribe func())

	// Close releases transport resources. Publishing after Close returns
	// ErrBusClosed.
	Close() error
}
