// Package metrics exposes Prometheus collectors for the dashboard.
// All methods are safe on a nil *Collector, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ccdash"

// Boundary fetch results.
const (
	BoundaryMemory  = "memory"
	BoundarySQLite  = "sqlite"
	BoundaryNetwork = "network"
	BoundaryError   = "error"
)

// Security event kinds.
const (
	SecurityRateLimited = "rate_limited"
	SecuritySuspicious  = "suspicious"
)

type Collector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	datasetRows     prometheus.Gauge
	filteredRows    prometheus.Histogram
	boundaryFetches *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	securityEvents  *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		datasetRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows in the loaded transactions dataset.",
		}),
		filteredRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filtered_rows",
			Help:      "Rows selected by each computed filter.",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 8),
		}),
		boundaryFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_fetches_total",
			Help:      "State boundary lookups by where they were served from.",
		}, []string{"result"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by cache and outcome.",
		}, []string{"cache", "result"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_events_total",
			Help:      "Dashboard snapshot events by publish outcome.",
		}, []string{"result"}),
		securityEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_events_total",
			Help:      "Rate-limited and suspicious requests.",
		}, []string{"kind"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) SetDatasetRows(n int) {
	if c == nil {
		return
	}
	c.datasetRows.Set(float64(n))
}

func (c *Collector) ObserveFiltered(n int) {
	if c == nil {
		return
	}
	c.filteredRows.Observe(float64(n))
}

func (c *Collector) BoundaryFetch(result string) {
	if c == nil {
		return
	}
	c.boundaryFetches.WithLabelValues(result).Inc()
}

func (c *Collector) CacheLookup(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *Collector) EventPublished(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.eventsPublished.WithLabelValues(result).Inc()
}

func (c *Collector) SecurityEvent(kind string) {
	if c == nil {
		return
	}
	c.securityEvents.WithLabelValues(kind).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware records request counts and latency labelled by the chi
// route pattern, so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		c.requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		c.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
