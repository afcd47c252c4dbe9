package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheRequests   *prometheus.CounterVec
	cacheErrors     *prometheus.CounterVec
	versionBumps    prometheus.Counter
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik cache analitik.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	cacheRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_analytics_cache_requests_total",
		Help: "Jumlah lookup cache analitik berdasarkan namespace dan hasil (hit/miss).",
	}, []string{"namespace", "result"})
	cacheErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_analytics_cache_errors_total",
		Help: "Jumlah kegagalan backend cache analitik yang diturunkan menjadi komputasi langsung.",
	}, []string{"namespace", "op"})
	bumps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_analytics_version_bumps_total",
		Help: "Jumlah kenaikan versi cache analitik.",
	})
	registry.MustRegister(
		requests, duration, cacheRequests, cacheErrors, bumps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		cacheRequests:   cacheRequests,
		cacheErrors:     cacheErrors,
		versionBumps:    bumps,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
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

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// CacheHit mencatat lookup cache yang berhasil.
func (m *Metrics) CacheHit(namespace string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(namespace, "hit").Inc()
}

// CacheMiss mencatat lookup cache yang harus dihitung ulang.
func (m *Metrics) CacheMiss(namespace string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(namespace, "miss").Inc()
}

// CacheError mencatat kegagalan backend cache per operasi.
func (m *Metrics) CacheError(namespace, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(namespace, op).Inc()
}

// VersionBumped dipasang sebagai hook setelah bump versi.
func (m *Metrics) VersionBumped(context.Context, string) error {
	if m != nil {
		m.versionBumps.Inc()
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
