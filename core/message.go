package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageType categorizes the intent of a message envelope.
type MessageType string

const (
	// MessageTypeQuery requests work from an agent and expects a response.
	MessageTypeQuery MessageType = "query"
	// MessageTypeCommand instructs an agent without expecting a payload back.
	MessageTypeCommand MessageType = "command"
	// MessageTypeEvent announces that something happened.
	MessageTypeEvent MessageType = "event"
	// MessageTypeResponse answers a previously sent query or command.
	MessageTypeResponse MessageType = "response"
	// MessageTypeBroadcast addresses every registered agent.
	MessageTypeBroadcast MessageType = "broadcast"
)

// MessagePriority orders delivery preference. The in-memory transport treats
// it as advisory metadata; durable backends may use it for queue selection.
type MessagePriority string

const (
	// PriorityLow marks background traffic.
	PriorityLow MessagePriority = "low"
	// PriorityNormal is the default priority.
	PriorityNormal MessagePriority = "normal"
	// PriorityHigh marks urgent traffic such as assistance requests.
	PriorityHigh MessagePriority = "high"
)

// BroadcastRecipient is the reserved recipient id addressing all registered
// agents at once.
const BroadcastRecipient = "all"

// Message is the immutable transport envelope exchanged between agents. After
// emission it must be treated as read-only. CorrelationID links a request to
// its eventual response; it is the only ordering guarantee the transport
// makes — delivery order between unrelated messages is unspecified.
type Message struct {
	ID                     string            `json:"id"`
	Type                   MessageType       `json:"type"`
	SenderID               string            `json:"sender_id"`
	RecipientID            string            `json:"recipient_id"`
	Content                Payload           `json:"content"`
	CorrelationID          string            `json:"correlation_id,omitempty"`
	Priority               MessagePriority   `json:"priority,omitempty"`
	RequiresAcknowledgment bool              `json:"requires_acknowledgment,omitempty"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	Timestamp              time.Time         `json:"timestamp"`
}

// MessageOptions holds optional envelope fields set at construction time.
type MessageOptions struct {
	CorrelationID          string
	Priority               MessagePriority
	RequiresAcknowledgment bool
	Metadata               map[string]string
}

// NewMessage constructs a message with a fresh unique id and UTC timestamp.
// It does not send; delivery is the broker's concern.
func NewMessage(typ MessageType, senderID, recipientID string, content Payload, optFns ...func(o *MessageOptions)) Message {
	opts := MessageOptions{Priority: PriorityNormal}
	for _, fn := range optFns {
		fn(&opts)
	}
	return Message{
		ID:                     NewID(),
		Type:                   typ,
		SenderID:               senderID,
		RecipientID:            recipientID,
		Content:                content,
		CorrelationID:          opts.CorrelationID,
		Priority:               opts.Priority,
		RequiresAcknowledgment: opts.RequiresAcknowledgment,
		Metadata:               opts.Metadata,
		Timestamp:              time.Now().UTC(),
	}
}

// IsBroadcast reports whether the message addresses all registered agents.
func (m Message) IsBroadcast() bool { return m.RecipientID == BroadcastRecipient }

// NewID generates a new unique identifier for messages, events and
// assistance requests. Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
