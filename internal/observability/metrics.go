package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registrations   prometheus.Counter
	logins          *prometheus.CounterVec
	loginFailures   prometheus.Counter
	closures        prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "haven_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	registrations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_registrations_total",
		Help: "Accounts created.",
	})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_logins_total",
		Help: "Sessions established, by authentication method.",
	}, []string{"method"})
	loginFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_login_failures_total",
		Help: "Rejected authentication attempts.",
	})
	closures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "haven_account_closures_total",
		Help: "Accounts closed.",
	})
	registry.MustRegister(requests, duration, registrations, logins, loginFailures, closures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		registrations:   registrations,
		logins:          logins,
		loginFailures:   loginFailures,
		closures:        closures,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for each HTTP request.
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

// RecordRegistration counts a created account.
func (m *Metrics) RecordRegistration() {
	if m != nil {
		m.registrations.Inc()
	}
}

// RecordLogin counts an established session. method is "password" or "link".
func (m *Metrics) RecordLogin(method string) {
	if m != nil {
		m.logins.WithLabelValues(method).Inc()
	}
}

// RecordLoginFailure counts a rejected authentication attempt.
func (m *Metrics) RecordLoginFailure() {
	if m != nil {
		m.loginFailures.Inc()
	}
}

// RecordClosure counts a closed account.
func (m *Metrics) RecordClosure() {
	if m != nil {
		m.closures.Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
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
	return r.URL.Path
}
