package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// RateLimited counts requests rejected by the rate limiter
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	)

	// RouteBuilds counts route builds by strategy and outcome
	RouteBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_builds_total", Help: "Route builds by strategy and outcome."},
		[]string{"strategy", "outcome"},
	)
	// RouteBuildDuration tracks route construction time in seconds
	RouteBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "route_build_duration_seconds", Help: "Route construction time in seconds.", Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5}},
		[]string{"strategy"},
	)
	// PlaybackTicks counts playback loop ticks
	PlaybackTicks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "playback_ticks_total", Help: "Playback loop ticks."},
	)
	// DeliveriesCompleted counts simulated deliveries reached during playback
	DeliveriesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "deliveries_completed_total", Help: "Simulated deliveries completed during playback."},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sessions_active", Help: "Open simulation sessions."},
	)
	ActivePlaybacks = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "playbacks_active", Help: "Running playback loops."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers all collectors on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests, HTTPDuration, RateLimited,
			RouteBuilds, RouteBuildDuration,
			PlaybackTicks, DeliveriesCompleted,
			ActiveSessions, ActivePlaybacks,
			WebhookDeliveries, WebhookLatency,
		)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
