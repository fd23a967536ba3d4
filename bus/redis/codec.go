package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/provalia/agentcore/core"
)

// Payload kinds on the wire. Closed set mirroring core's payload union.
const (
	kindQuery      = "query"
	kindResponse   = "response"
	kindEvent      = "event"
	kindAssistance = "assistance"
	kindAck        = "ack"
	kindRaw        = "raw"
)

type wirePayload struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

type wireMessage struct {
	ID                     string               `json:"id"`
	Type                   core.MessageType     `json:"type"`
	SenderID               string               `json:"sender_id"`
	RecipientID            string               `json:"recipient_id"`
	Content                wirePayload          `json:"content"`
	CorrelationID          string               `json:"correlation_id,omitempty"`
	Priority               core.MessagePriority `json:"priority,omitempty"`
	RequiresAcknowledgment bool                 `json:"requires_acknowledgment,omitempty"`
	Metadata               map[string]string    `json:"metadata,omitempty"`
	Timestamp              time.Time            `json:"timestamp"`
}

func encodeMessage(msg core.Message) ([]byte, error) {
	var kind string
	switch msg.Content.(type) {
	case core.QueryPayload:
		kind = kindQuery
	case core.ResponsePayload:
		kind = kindResponse
	case core.EventPayload:
		kind = kindEvent
	case core.AssistancePayload:
		kind = kindAssistance
	case core.AckPayload:
		kind = kindAck
	case core.RawPayload, nil:
		kind = kindRaw
	default:
		return nil, fmt.Errorf("unknown payload type %T", msg.Content)
	}

	body, err := json.Marshal(msg.Content)
	if err != nil {
		return nil, err
	}

	return json.Marshal(wireMessage{
		ID:                     msg.ID,
		Type:                   msg.Type,
		SenderID:               msg.SenderID,
		RecipientID:            msg.RecipientID,
		Content:                wirePayload{Kind: kind, Body: body},
		CorrelationID:          msg.CorrelationID,
		Priority:               msg.Priority,
		RequiresAcknowledgment: msg.RequiresAcknowledgment,
		Metadata:               msg.Metadata,
		Timestamp:              msg.Timestamp,
	})
}

func decodeMessage(data []byte) (core.Message, error) {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return core.Message{}, err
	}

	var content core.Payload
	var err error
	switch wm.Content.Kind {
	case kindQuery:
		var p core.QueryPayload
		err = json.Unmarshal(wm.Content.Body, &p)
		content = p
	case kindResponse:
		var p core.ResponsePayload
		err = json.Unmarshal(wm.Content.Body, &p)
		content = p
	case kindEvent:
		var p core.EventPayload
		err = json.Unmarshal(wm.Content.Body, &p)
		content = p
	case kindAssistance:
		var p core.AssistancePayload
		err = json.Unmarshal(wm.Content.Body, &p)
		content = p
	case kindAck:
		var p core.AckPayload
		err = json.Unmarshal(wm.Content.Body, &p)
		content = p
	case kindRaw:
		var p core.RawPayload
		if len(wm.Content.Body) > 0 {
			err = json.Unmarshal(wm.Content.Body, &p)
		}
		content = p
	default:
		return core.Message{}, fmt.Errorf("unknown payload kind %q", wm.Content.Kind)
	}
	if err != nil {
		return core.Message{}, fmt.Errorf("decode %s payload: %w", wm.Content.Kind, err)
	}

	return core.Message{
		ID:                     wm.ID,
		Type:                   wm.Type,
		SenderID:               wm.SenderID,
		RecipientID:            wm.RecipientID,
		Content:                content,
		CorrelationID:          wm.CorrelationID,
		Priority:               wm.Priority,
		RequiresAcknowledgment: wm.RequiresAcknowledgment,
		Metadata:               wm.Metadata,
		Timestamp:              wm.Timestamp,
	}, nil
}
