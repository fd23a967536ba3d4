package testutil

import (
	"context"
	"sync"

	"github.com/provalia/agentcore/core"
)

// StubAgent is a controllable core.Agent double. Zero-value hooks fall back
// to benign defaults: Process echoes the request data, ProcessMessage only
// records the envelope, Status reports healthy.
type StubAgent struct {
	ID           string
	Name         string
	Capabilities []string

	ProcessFn        func(ctx context.Context, req core.Request, ac *core.AgentContext) (core.AgentResponse, error)
	ProcessMessageFn func(ctx context.Context, msg core.Message) error
	StatusFn         func(ctx context.Context) (core.AgentStatus, error)
	InitializeFn     func(ctx context.Context, bus core.MessageBus, replay core.ReplayStore) error

	mu       sync.Mutex
	received []core.Message
}

// NewStubAgent creates a stub with the given id.
func NewStubAgent(id string) *StubAgent {
	return &StubAgent{ID: id, Name: id, Capabilities: []string{"process"}}
}

// Identity implements core.Agent.
func (s *StubAgent) Identity() core.AgentIdentity {
	return core.AgentIdentity{ID: s.ID, Name: s.Name, Capabilities: s.Capabilities}
}

// Initialize implements core.Agent.
func (s *StubAgent) Initialize(ctx context.Context, bus core.MessageBus, replay core.ReplayStore) error {
	if s.InitializeFn != nil {
		return s.InitializeFn(ctx, bus, replay)
	}
	return nil
}

// ValidateInput implements core.Agent.
func (s *StubAgent) ValidateInput(input map[string]any) core.ValidationResult {
	return core.ValidationResult{IsValid: true, Issues: []core.ValidationIssue{}, ValidatedData: input}
}

// Process implements core.Agent.
func (s *StubAgent) Process(ctx context.Context, req core.Request, ac *core.AgentContext) (core.AgentResponse, error) {
	if s.ProcessFn != nil {
		return s.ProcessFn(ctx, req, ac)
	}
	return core.SuccessResponse("ok", req.Data), nil
}

// ProcessMessage implements core.Agent, recording every delivered envelope.
func (s *StubAgent) ProcessMessage(ctx context.Context, msg core.Message) error {
	s.mu.Lock()
	s.received = append(s.received, msg)
	s.mu.Unlock()
	if s.ProcessMessageFn != nil {
		return s.ProcessMessageFn(ctx, msg)
	}
	return nil
}

// Status implements core.Agent.
func (s *StubAgent) Status(ctx context.Context) (core.AgentStatus, error) {
	if s.StatusFn != nil {
		return s.StatusFn(ctx)
	}
	return core.AgentStatus{ID: s.ID, Active: true, Healthy: true}, nil
}

// Received returns a copy of the envelopes delivered so far.
func (s *StubAgent) Received() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Message, len(s.received))
	copy(out, s.received)
	return out
}

// Interface compliance (compile-time assertion)
var _ core.Agent = (*StubAgent)(nil)
