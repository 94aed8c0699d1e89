package console

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schoolops/campus/pkg/sdk"
)

// Metrics collects console metrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	redirectsTotal  *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

// NewMetrics creates the registry and registers every console metric.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_console_requests_total",
		Help: "Console HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campus_console_request_duration_seconds",
		Help:    "Console HTTP request duration by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	redirects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_console_redirects_total",
		Help: "Navigations turned away by route authorization.",
	}, []string{"route", "decision"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_session_transitions_total",
		Help: "Session lifecycle transitions by target state and reason.",
	}, []string{"to", "reason"})
	registry.MustRegister(requests, duration, redirects, transitions)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		redirectsTotal:  redirects,
		transitions:     transitions,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records the count and duration of every request.
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

// ObserveRedirect counts a navigation that was not allowed.
func (m *Metrics) ObserveRedirect(routeID string, decision sdk.Decision) {
	if m == nil {
		return
	}
	m.redirectsTotal.WithLabelValues(routeID, decision.String()).Inc()
}

// ObserveTransition counts a lifecycle transition.
func (m *Metrics) ObserveTransition(t sdk.Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(t.To.String(), t.Reason).Inc()
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
