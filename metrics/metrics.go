// Package metrics exposes prometheus instrumentation for the orchestration
// core. A nil *Registry disables collection; every method is nil-safe so the
// broker and manager can instrument unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the core's collectors on a dedicated prometheus registry
// so embedding applications can expose or scrape it however they like.
type Registry struct {
	registry *prometheus.Registry

	messagesDelivered  *prometheus.CounterVec
	deliveryFailures   prometheus.Counter
	executions         *prometheus.CounterVec
	processingTime     *prometheus.HistogramVec
	agentHealthy       *prometheus.GaugeVec
	assistanceRequests *prometheus.CounterVec
}

// New creates a Registry with all collectors registered.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		messagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore", Name: "messages_delivered_total",
			Help: "Messages delivered by the broker, by message type.",
		}, []string{"type"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcore", Name: "delivery_failures_total",
			Help: "Per-recipient delivery failures isolated by the broker.",
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore", Name: "agent_executions_total",
			Help: "ExecuteAgent calls, by agent id and response status.",
		}, []string{"agent_id", "status"}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentcore", Name: "agent_processing_seconds",
			Help:    "Agent Process latency, by agent id.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent_id"}),
		agentHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentcore", Name: "agent_healthy",
			Help: "Agent health as observed by the manager (1 healthy, 0 unhealthy).",
		}, []string{"agent_id"}),
		assistanceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore", Name: "assistance_requests_total",
			Help: "Assistance escalations raised by the manager, by issue type.",
		}, []string{"issue_type"}),
	}
	r.registry.MustRegister(
		r.messagesDelivered, r.deliveryFailures, r.executions,
		r.processingTime, r.agentHealthy, r.assistanceRequests,
	)
	return r
}

// Gatherer returns the underlying prometheus gatherer for scraping.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// MessageDelivered counts one delivered message.
func (r *Registry) MessageDelivered(msgType string) {
	if r == nil {
		return
	}
	r.messagesDelivered.WithLabelValues(msgType).Inc()
}

// DeliveryFailed counts one isolated per-recipient failure.
func (r *Registry) DeliveryFailed() {
	if r == nil {
		return
	}
	r.deliveryFailures.Inc()
}

// ExecutionObserved records one ExecuteAgent outcome and its latency.
func (r *Registry) ExecutionObserved(agentID, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.executions.WithLabelValues(agentID, status).Inc()
	r.processingTime.WithLabelValues(agentID).Observe(d.Seconds())
}

// SetAgentHealthy publishes the manager's health verdict for an agent.
func (r *Registry) SetAgentHealthy(agentID string, healthy bool) {
	if r == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1.0
	}
	r.agentHealthy.WithLabelValues(agentID).Set(v)
}

// AssistanceRequested counts one escalation broadcast.
func (r *Registry) AssistanceRequested(issueType string) {
	if r == nil {
		return
	}
	r.assistanceRequests.WithLabelValues(issueType).Inc()
}
