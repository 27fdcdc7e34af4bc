// Package metrics exposes Prometheus collectors for the HTTP surface and the
// authentication event stream.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	AuthEvents    *prometheus.CounterVec
	EventsDropped prometheus.Counter
}

// New builds the collectors on a private registry so tests never collide on
// the global one.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compass_auth_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compass_auth_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compass_auth_events_total",
			Help: "Total number of authentication events by type and status",
		}, []string{"type", "status"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compass_auth_events_dropped_total",
			Help: "Events discarded because a subscriber buffer was full",
		}),
	}

	registry.MustRegister(m.HTTPRequests, m.HTTPDuration, m.AuthEvents, m.EventsDropped)
	return m
}

func (m *Metrics) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveEvent(eventType string, status string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) ObserveDrop() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
