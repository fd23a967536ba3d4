package core

import "errors"

var (
	// ErrAgentNotRegistered is returned when a message or execute call
	// targets an agent id the broker has never seen. Surfaced to callers so
	// "no such agent" cannot be misread as "agent returned an error".
	ErrAgentNotRegistered = errors.New("agent not registered")

	// ErrDuplicateAgent is returned when registering an id twice.
	ErrDuplicateAgent = errors.New("agent already registered")

	// ErrBusClosed is returned when publishing on a closed transport.
	ErrBusClosed = errors.New("message bus closed")

	// ErrExecuteTimeout is returned when an agent does not answer an execute
	// call within the configured deadline.
	ErrExecuteTimeout = errors.New("agent execution timed out")
)
