package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-console/internal/guard"
)

// Metrics mengumpulkan metrik Prometheus untuk konsol dan klien API.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	guardOutcomes   *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "Jumlah permintaan HTTP konsol berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP konsol per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_api_requests_total",
		Help: "Jumlah panggilan ke backend berdasarkan endpoint dan status.",
	}, []string{"endpoint", "code"})
	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_api_request_duration_seconds",
		Help:    "Durasi panggilan ke backend per endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_query_cache_lookups_total",
		Help: "Jumlah pencarian cache query berdasarkan endpoint dan hasil.",
	}, []string{"endpoint", "result"})
	cacheEvictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_query_cache_invalidations_total",
		Help: "Jumlah entri cache yang dibuang oleh invalidasi tag.",
	}, []string{"endpoint"})
	guardOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_guard_outcomes_total",
		Help: "Keputusan guard route berdasarkan guard dan hasil.",
	}, []string{"guard", "outcome"})
	registry.MustRegister(requests, duration, apiRequests, apiDuration, cacheLookups, cacheEvictions, guardOutcomes)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		apiRequests:     apiRequests,
		apiDuration:     apiDuration,
		cacheLookups:    cacheLookups,
		cacheEvictions:  cacheEvictions,
		guardOutcomes:   guardOutcomes,
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

// ObserveRequest mencatat satu panggilan klien API. Status nol berarti
// tidak ada respons.
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.apiRequests.WithLabelValues(endpoint, code).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// CacheHit implements querycache.Observer.
func (m *Metrics) CacheHit(key string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(cacheEndpoint(key), "hit").Inc()
	}
}

// CacheMiss implements querycache.Observer.
func (m *Metrics) CacheMiss(key string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(cacheEndpoint(key), "miss").Inc()
	}
}

// CacheInvalidated implements querycache.Observer.
func (m *Metrics) CacheInvalidated(keys []string) {
	if m == nil {
		return
	}
	for _, key := range keys {
		m.cacheEvictions.WithLabelValues(cacheEndpoint(key)).Inc()
	}
}

// ObserveGuard mencatat keputusan guard route.
func (m *Metrics) ObserveGuard(name string, outcome guard.Outcome) {
	if m != nil {
		m.guardOutcomes.WithLabelValues(name, outcome.String()).Inc()
	}
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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

// cacheEndpoint membuang argumen dari kunci cache agar label tetap kecil.
func cacheEndpoint(key string) string {
	endpoint, _, _ := strings.Cut(key, "(")
	return endpoint
}
