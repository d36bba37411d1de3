// Package observability holds the Prometheus registry shared by the API and
// the worker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/chantier-erp/chantier-erp/internal/jobs"
)

// Metrics collects the application Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recapBuilds     *prometheus.CounterVec
	recapDuration   prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	droppedInvoices prometheus.Counter
	eventsPublished *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises the registry with HTTP, recap, cache, event and job metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chantier_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chantier_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	recapBuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chantier_recap_builds_total",
		Help: "Recap builds from the database by result.",
	}, []string{"result"})
	recapDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chantier_recap_build_duration_seconds",
		Help:    "Duration of recap builds from the database.",
		Buckets: prometheus.DefBuckets,
	})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chantier_cache_lookups_total",
		Help: "Cache lookups by namespace and result.",
	}, []string{"namespace", "result"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chantier_recap_dropped_invoices_total",
		Help: "Invoices left out of month grouping because they carry no date.",
	})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chantier_events_published_total",
		Help: "Events published on the bus by topic.",
	}, []string{"topic"})
	registry.MustRegister(requests, duration, recapBuilds, recapDuration, cacheLookups, dropped, events)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		recapBuilds:     recapBuilds,
		recapDuration:   recapDuration,
		cacheLookups:    cacheLookups,
		droppedInvoices: dropped,
		eventsPublished: events,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and duration under the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Jobs returns the job metrics registered on the same registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// ObserveRecapBuild records one recap build from the database.
func (m *Metrics) ObserveRecapBuild(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.recapBuilds.WithLabelValues(result).Inc()
	m.recapDuration.Observe(elapsed.Seconds())
}

// AddDroppedInvoices counts dateless invoices left out of a recap.
func (m *Metrics) AddDroppedInvoices(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedInvoices.Add(float64(n))
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(namespace string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(namespace, "hit").Inc()
}

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(namespace string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(namespace, "miss").Inc()
}

// EventPublished counts one event published on topic.
func (m *Metrics) EventPublished(topic string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topic).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
