package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/provalia/agentcore/config"
	"github.com/provalia/agentcore/core"
)

// startLoops launches the health and performance tickers. Each loop runs as
// a single sequential pass over the agents so no two concurrent checks for
// the same agent id can interleave.
func (m *Manager) startLoops() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loopCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.loopCancel = cancel

	m.loopWG.Add(2)
	go func() {
		defer m.loopWG.Done()
		ticker := time.NewTicker(m.healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runHealthChecks(ctx)
			}
		}
	}()
	go func() {
		defer m.loopWG.Done()
		ticker := time.NewTicker(m.perfInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runPerformanceChecks(ctx)
			}
		}
	}()
}

// runHealthChecks polls every managed agent once. A failing agent never
// aborts the pass.
func (m *Manager) runHealthChecks(ctx context.Context) {
	for id, agent := range m.agentSnapshot() {
		m.checkAgentHealth(ctx, id, agent)
	}
}

func (m *Manager) agentSnapshot() map[string]core.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]core.Agent, len(m.agents))
	for id, a := range m.agents {
		out[id] = a
	}
	return out
}

// checkAgentHealth polls one agent's self-reported status and folds it into
// the stored record. Errors and timeouts mark the agent unhealthy; health
// state flips are logged in both directions.
func (m *Manager) checkAgentHealth(ctx context.Context, id string, agent core.Agent) {
	now := time.Now().UTC()
	reported, err := m.statusWithTimeout(ctx, agent)

	m.mu.Lock()
	stored, ok := m.status[id]
	if !ok {
		m.mu.Unlock()
		return
	}

	if err != nil {
		stored.Healthy = false
		stored.LastError = &core.AgentError{Message: err.Error(), Timestamp: now}
		stored.Metrics.LastHealthCheck = now
		m.mu.Unlock()

		m.metrics.SetAgentHealthy(id, false)
		m.events.Log(core.EventRecord{
			Type: core.EventError, Severity: core.EventSeverityHigh, Source: eventSource,
			Message: "agent health check failed",
			Data:    map[string]any{"agent_id": id, "error": err.Error()},
		})
		return
	}

	wasHealthy := stored.Healthy
	stored.Healthy = reported.Healthy
	stored.Metrics = reported.Metrics
	stored.Metrics.LastHealthCheck = now
	if reported.LastError != nil {
		stored.LastError = reported.LastError
	}
	stored.Details = reported.Details
	m.mu.Unlock()

	m.metrics.SetAgentHealthy(id, reported.Healthy)
	switch {
	case wasHealthy && !reported.Healthy:
		m.events.Log(core.EventRecord{
			Type: core.EventWarning, Severity: core.EventSeverityHigh, Source: eventSource,
			Message: "agent became unhealthy", Data: map[string]any{"agent_id": id},
		})
	case !wasHealthy && reported.Healthy:
		m.events.Log(core.EventRecord{
			Type: core.EventInfo, Source: eventSource,
			Message: "agent recovered", Data: map[string]any{"agent_id": id},
		})
	}
}

// statusWithTimeout bounds the Status call so a hung agent cannot block the
// loop indefinitely. A timeout is treated identically to an error.
func (m *Manager) statusWithTimeout(ctx context.Context, agent core.Agent) (core.AgentStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, m.statusTimeout)
	defer cancel()

	type result struct {
		status core.AgentStatus
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		st, err := statusSafe(ctx, agent)
		ch <- result{st, err}
	}()

	select {
	case r := <-ch:
		return r.status, r.err
	case <-ctx.Done():
		return core.AgentStatus{}, fmt.Errorf("status check: %w", ctx.Err())
	}
}

func statusSafe(ctx context.Context, agent core.Agent) (st core.AgentStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("status panic: %v", r)
		}
	}()
	return agent.Status(ctx)
}

// runPerformanceChecks evaluates thresholds for every agent that is both
// active and currently healthy. An agent already marked unhealthy is not
// performance-evaluated until it recovers; that asymmetry is part of the
// escalation semantics, not an oversight to fix here.
func (m *Manager) runPerformanceChecks(ctx context.Context) {
	type candidate struct {
		id         string
		status     core.AgentStatus
		thresholds *config.PerformanceThresholds
	}

	m.mu.RLock()
	candidates := make([]candidate, 0, len(m.status))
	for id, st := range m.status {
		t := m.thresholds[id]
		if t == nil || !st.Active || !st.Healthy {
			continue
		}
		candidates = append(candidates, candidate{id: id, status: *st, thresholds: t})
	}
	m.mu.RUnlock()

	for _, c := range candidates {
		metrics := c.status.Metrics
		if t := c.thresholds.MaxErrorRate; t != nil && metrics.RequestsProcessed > 0 {
			if rate := metrics.ErrorRate(); rate > *t {
				m.reportBreach(ctx, c.id, "high_error_rate", map[string]any{
					"error_rate":         rate,
					"threshold":          *t,
					"requests_processed": metrics.RequestsProcessed,
					"errors_encountered": metrics.ErrorsEncountered,
				})
			}
		}
		if t := c.thresholds.MaxAvgProcessingTime; t != nil && metrics.AvgProcessingTime > *t {
			m.reportBreach(ctx, c.id, "slow_processing", map[string]any{
				"avg_processing_time": metrics.AvgProcessingTime.String(),
				"threshold":           t.String(),
			})
		}
		if t := c.thresholds.MaxConsecutiveFailures; t != nil && metrics.ConsecutiveFailures > *t {
			m.reportBreach(ctx, c.id, "consecutive_failures", map[string]any{
				"consecutive_failures": metrics.ConsecutiveFailures,
				"threshold":            *t,
			})
		}
	}
}

// reportBreach logs the threshold breach and raises the escalation. Breaches
// are warnings, not errors; they do not change the agent's healthy state.
func (m *Manager) reportBreach(ctx context.Context, agentID, issueType string, data map[string]any) {
	m.events.Log(core.EventRecord{
		Type: core.EventWarning, Severity: core.EventSeverityMedium, Source: eventSource,
		Message: "performance threshold breached",
		Data:    mergeData(map[string]any{"agent_id": agentID, "issue_type": issueType}, data),
	})
	m.RequestAssistance(ctx, agentID, issueType, data)
}

func mergeData(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
