// Package metrics exposes Prometheus instrumentation for the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoginCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"}, // "success" or "failure"
	)

	InviteCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_invites_total",
			Help: "Total number of invite operations",
		},
		[]string{"operation"}, // "issued" or "redeemed"
	)

	ResetCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Total number of password reset operations",
		},
		[]string{"operation"}, // "requested" or "confirmed"
	)

	SessionRevocationCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_session_revocations_total",
			Help: "Total number of sessions revoked",
		},
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_errors_total",
			Help: "Total number of failed requests by HTTP status",
		},
		[]string{"status"},
	)

	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(InviteCounter)
	prometheus.MustRegister(ResetCounter)
	prometheus.MustRegister(SessionRevocationCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(RequestDuration)
}

// Handler serves the metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordLogin records a login attempt outcome.
func RecordLogin(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	LoginCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordError counts a failed request under its HTTP status.
func RecordError(status int) {
	AuthErrorCounter.With(prometheus.Labels{"status": strconv.Itoa(status)}).Inc()
}

// RecordRevocations adds to the session revocation counter.
func RecordRevocations(count int) {
	SessionRevocationCounter.Add(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware captures request count and duration per endpoint. The endpoint
// label is the registered route pattern, not the raw URL, so path parameters
// do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		labels := prometheus.Labels{
			"endpoint": endpoint,
			"method":   r.Method,
			"status":   strconv.Itoa(recorder.status),
		}
		HTTPRequestCounter.With(labels).Inc()
		RequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
