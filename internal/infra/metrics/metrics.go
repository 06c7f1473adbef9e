// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayMetrics captures authorization decisions and request latency.
type GatewayMetrics interface {
	IncDecision(route, outcome string)
	IncStoreDegraded(store string)
	IncAuditDropped()
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements GatewayMetrics without emitting anything.
type Noop struct{}

func (Noop) IncDecision(string, string) {}
func (Noop) IncStoreDegraded(string)    {}
func (Noop) IncAuditDropped()           {}

func (Noop) ObserveRequest(string, string, string, float64) {}

// Prom implements GatewayMetrics backed by Prometheus collectors.
type Prom struct {
	decisions     *prometheus.CounterVec
	storeDegraded *prometheus.CounterVec
	auditDropped  prometheus.Counter
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	once          sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_decisions_total",
			Help:      "Authorization decisions by route and outcome",
		}, []string{"route", "outcome"}),
		storeDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_degraded_total",
			Help:      "Fallback decisions taken after a live store failure",
		}, []string{"store"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the emitter queue was full",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(p.decisions, p.storeDegraded, p.auditDropped, p.requests, p.latency)
	})
}

func (p *Prom) IncDecision(route, outcome string) {
	p.decisions.WithLabelValues(route, outcome).Inc()
}

func (p *Prom) IncStoreDegraded(store string) {
	p.storeDegraded.WithLabelValues(store).Inc()
}

func (p *Prom) IncAuditDropped() {
	p.auditDropped.Inc()
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
