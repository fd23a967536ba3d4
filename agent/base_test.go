package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provalia/agentcore/bus"
	"github.com/provalia/agentcore/core"
	"github.com/provalia/agentcore/logging"
	"github.com/provalia/agentcore/replay"
)

func newEchoAgent(events core.EventSink) *BaseAgent {
	return New(core.AgentIdentity{ID: "echo", Name: "Echo", Capabilities: []string{"process"}}, func(o *Options) {
		o.Events = events
		o.Process = func(_ context.Context, req core.Request, _ *core.AgentContext) (core.AgentResponse, error) {
			switch req.Operation {
			case "echo":
				return core.SuccessResponse("echoed", req.Data), nil
			case "fail":
				return core.AgentResponse{}, errors.New("requested failure")
			case "explode":
				panic("requested panic")
			default:
				return core.ErrorResponse("unsupported operation " + req.Operation), nil
			}
		}
	})
}

func TestProcessCounters(t *testing.T) {
	a := newEchoAgent(nil)
	ctx := context.Background()

	const successes, failures = 3, 2
	for i := 0; i < successes; i++ {
		resp, err := a.Process(ctx, core.Request{Operation: "echo", Data: map[string]any{"i": i}}, nil)
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, resp.Status)
	}
	for i := 0; i < failures; i++ {
		resp, err := a.Process(ctx, core.Request{Operation: "fail"}, nil)
		require.NoError(t, err)
		assert.Equal(t, core.StatusError, resp.Status)
	}

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, successes+failures, status.Metrics.RequestsProcessed)
	assert.EqualValues(t, failures, status.Metrics.ErrorsEncountered)
	assert.LessOrEqual(t, status.Metrics.ErrorsEncountered, status.Metrics.RequestsProcessed)
	assert.EqualValues(t, failures, status.Metrics.ConsecutiveFailures)
	require.NotNil(t, status.LastError)
}

func TestConsecutiveFailuresResetOnSuccess(t *testing.T) {
	a := newEchoAgent(nil)
	ctx := context.Background()

	_, _ = a.Process(ctx, core.Request{Operation: "fail"}, nil)
	_, _ = a.Process(ctx, core.Request{Operation: "fail"}, nil)
	_, _ = a.Process(ctx, core.Request{Operation: "echo"}, nil)

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Metrics.ConsecutiveFailures)
	assert.EqualValues(t, 2, status.Metrics.ErrorsEncountered)
}

func TestProcessContainsPanic(t *testing.T) {
	a := newEchoAgent(nil)
	resp, err := a.Process(context.Background(), core.Request{Operation: "explode"}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, resp.Status)
	assert.Contains(t, resp.Message, "requested panic")
}

func TestProcessWithoutHook(t *testing.T) {
	a := New(core.AgentIdentity{ID: "bare"})
	resp, err := a.Process(context.Background(), core.Request{Operation: "anything"}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, resp.Status)
	assert.Contains(t, resp.Message, "does not support operation")
}

func TestValidateInputDefault(t *testing.T) {
	a := New(core.AgentIdentity{ID: "bare"})
	result := a.ValidateInput(map[string]any{"k": "v"})
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Issues)
	assert.Equal(t, "v", result.ValidatedData["k"])
}

func TestProcessMessageQuerySendsResponse(t *testing.T) {
	transport := bus.NewInMemoryBus()
	a := newEchoAgent(nil)
	require.NoError(t, a.Initialize(context.Background(), transport, nil))

	got := make(chan core.Message, 1)
	transport.Subscribe("caller", func(_ context.Context, msg core.Message) error {
		if msg.Type == core.MessageTypeResponse {
			got <- msg
		}
		return nil
	}, core.Filter{SenderID: "echo"})

	query := core.NewMessage(core.MessageTypeQuery, "caller", "echo",
		core.QueryPayload{Operation: "echo", Data: map[string]any{"x": 1}},
		func(o *core.MessageOptions) { o.CorrelationID = "corr-1" })
	require.NoError(t, a.ProcessMessage(context.Background(), query))

	select {
	case msg := <-got:
		assert.Equal(t, "corr-1", msg.CorrelationID)
		payload, ok := msg.Content.(core.ResponsePayload)
		require.True(t, ok)
		assert.Equal(t, core.StatusSuccess, payload.Response.Status)
	default:
		t.Fatal("expected a response message on the transport")
	}
}

func TestProcessMessageAcknowledges(t *testing.T) {
	transport := bus.NewInMemoryBus()
	a := newEchoAgent(nil)
	require.NoError(t, a.Initialize(context.Background(), transport, nil))

	acks := make(chan core.Message, 1)
	transport.Subscribe("manager", func(_ context.Context, msg core.Message) error {
		if _, ok := msg.Content.(core.AckPayload); ok {
			acks <- msg
		}
		return nil
	}, core.Filter{})

	assistance := core.NewMessage(core.MessageTypeQuery, "agent-manager", core.BroadcastRecipient,
		core.AssistancePayload{RequestID: "req-1", AgentID: "other", IssueType: "high_error_rate"},
		func(o *core.MessageOptions) { o.RequiresAcknowledgment = true })
	require.NoError(t, a.ProcessMessage(context.Background(), assistance))

	select {
	case msg := <-acks:
		payload := msg.Content.(core.AckPayload)
		assert.Equal(t, assistance.ID, payload.AcknowledgedID)
	default:
		t.Fatal("expected an acknowledgment")
	}
}

func TestProcessMessageDefaultHandlerLogs(t *testing.T) {
	events := logging.NewEventLog(nil, 0)
	a := New(core.AgentIdentity{ID: "quiet"}, func(o *Options) { o.Events = events })

	raw := core.NewMessage(core.MessageTypeCommand, "someone", "quiet", core.RawPayload{Value: 42})
	require.NoError(t, a.ProcessMessage(context.Background(), raw))

	warnings := events.RecordsByType(core.EventWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "unhandled message content", warnings[0].Message)
}

func TestProcessAppendsReplay(t *testing.T) {
	store := replay.NewInMemoryStore(replay.Config{MaxSize: 10})
	a := newEchoAgent(nil)
	require.NoError(t, a.Initialize(context.Background(), bus.NewInMemoryBus(), store))

	_, _ = a.Process(context.Background(), core.Request{Operation: "echo", Data: map[string]any{"x": 1}}, nil)
	_, _ = a.Process(context.Background(), core.Request{Operation: "fail"}, nil)

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := store.Sample(context.Background(), 2, false)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestSendMessageRequiresInitialization(t *testing.T) {
	a := New(core.AgentIdentity{ID: "loose"})
	err := a.SendMessage(context.Background(), a.CreateMessage(core.MessageTypeEvent, "x", core.EventPayload{Event: "e"}))
	assert.Error(t, err)
}
