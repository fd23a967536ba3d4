package core

import "time"

// AgentMetrics aggregates an agent's self-observed counters. Invariant:
// ErrorsEncountered <= RequestsProcessed.
type AgentMetrics struct {
	RequestsProcessed   int64              `json:"requests_processed"`
	ErrorsEncountered   int64              `json:"errors_encountered"`
	AvgProcessingTime   time.Duration      `json:"avg_processing_time"`
	ConsecutiveFailures int64              `json:"consecutive_failures"`
	LastHealthCheck     time.Time          `json:"last_health_check"`
	Custom              map[string]float64 `json:"custom,omitempty"`
}

// ErrorRate returns ErrorsEncountered / RequestsProcessed, or 0 when no
// requests have been processed yet.
func (m AgentMetrics) ErrorRate() float64 {
	if m.RequestsProcessed == 0 {
		return 0
	}
	return float64(m.ErrorsEncountered) / float64(m.RequestsProcessed)
}

// AgentError captures the most recent failure observed for an agent.
type AgentError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// AgentStatus is the supervisor-owned view of one agent. The manager mutates
// it exclusively from its health and performance cycles; agents report their
// own counters through Agent.Status and never touch this record directly.
// Details lets concrete agents extend the base shape (e.g. registries of
// sources or pipelines) without changing it.
type AgentStatus struct {
	ID        string         `json:"id"`
	Active    bool           `json:"active"`
	Healthy   bool           `json:"healthy"`
	Metrics   AgentMetrics   `json:"metrics"`
	LastError *AgentError    `json:"last_error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
