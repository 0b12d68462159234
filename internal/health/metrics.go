// File: internal/health/metrics.go

// Package health tracks component checks, runtime metrics and alerting for
// the engine.
package health

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the prometheus registry and every instrument the engine
// exposes on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	browserActions  *prometheus.CounterVec

	cacheHitRate   prometheus.Gauge
	poolSize       prometheus.Gauge
	poolInUse      prometheus.Gauge
	activeSessions prometheus.Gauge
	goroutines     prometheus.Gauge
	heapAlloc      prometheus.Gauge

	// Plain counters duplicated from the prometheus instruments so health
	// reports can read totals without gathering the registry.
	requestCount int64
	actionCount  int64
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voyant",
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voyant",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		browserActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voyant",
			Name:      "browser_actions_total",
			Help:      "Driver-level actions executed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		cacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voyant",
			Name:      "perception_cache_hit_rate",
			Help:      "Fraction of perception lookups served from cache.",
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voyant",
			Name:      "browser_pool_size",
			Help:      "Browsers currently owned by the pool.",
		}),
		poolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voyant",
			Name:      "browser_pool_in_use",
			Help:      "Browsers currently loaned out.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voyant",
			Name:      "sessions_active",
			Help:      "Named sessions currently alive.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voyant",
			Name:      "goroutines",
			Help:      "Current goroutine count.",
		}),
		heapAlloc: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voyant",
			Name:      "heap_alloc_bytes",
			Help:      "Bytes of allocated heap objects.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.browserActions,
		m.cacheHitRate,
		m.poolSize,
		m.poolInUse,
		m.activeSessions,
		m.goroutines,
		m.heapAlloc,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	atomic.AddInt64(&m.requestCount, 1)
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveBrowserAction records one driver action.
func (m *Metrics) ObserveBrowserAction(kind string, success bool) {
	atomic.AddInt64(&m.actionCount, 1)
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.browserActions.WithLabelValues(kind, outcome).Inc()
}

// RequestsTotal returns the number of HTTP requests handled so far.
func (m *Metrics) RequestsTotal() int64 { return atomic.LoadInt64(&m.requestCount) }

// BrowserActionsTotal returns the number of driver actions recorded so far.
func (m *Metrics) BrowserActionsTotal() int64 { return atomic.LoadInt64(&m.actionCount) }
