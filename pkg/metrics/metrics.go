package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the auth counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the service collectors. A nil *Recorder is valid and
// records nothing, so services can run without a registry.
type Recorder struct {
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	reuseDetected prometheus.Counter
	resets        *prometheus.CounterVec
	sweptTokens   prometheus.Counter
}

// New builds a Recorder and registers its collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "access_login_attempts_total",
			Help: "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "access_refresh_attempts_total",
			Help: "Refresh token exchanges by outcome.",
		}, []string{"outcome"}),
		reuseDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "access_refresh_reuse_detected_total",
			Help: "Revoked refresh tokens presented again.",
		}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "access_password_resets_total",
			Help: "Password reset events by stage and outcome.",
		}, []string{"stage", "outcome"}),
		sweptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "access_swept_tokens_total",
			Help: "Expired or revoked token rows removed by the sweeper.",
		}),
	}
	reg.MustRegister(
		r.httpInFlight, r.httpRequestsTotal, r.httpRequestDuration,
		r.logins, r.refreshes, r.reuseDetected, r.resets, r.sweptTokens,
	)
	return r
}

func (r *Recorder) LoginAttempt(method, outcome string) {
	if r == nil {
		return
	}
	r.logins.WithLabelValues(method, outcome).Inc()
}

func (r *Recorder) RefreshAttempt(outcome string) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RefreshReuse() {
	if r == nil {
		return
	}
	r.reuseDetected.Inc()
}

func (r *Recorder) PasswordReset(stage, outcome string) {
	if r == nil {
		return
	}
	r.resets.WithLabelValues(stage, outcome).Inc()
}

func (r *Recorder) TokensSwept(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.sweptTokens.Add(float64(n))
}

// Instrument measures request count, latency and in-flight requests. The
// route label is the chi pattern, so path parameters do not explode the
// label set.
func (r *Recorder) Instrument(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.httpInFlight.Inc()
		defer r.httpInFlight.Dec()
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		labels := []string{req.Method, route, strconv.Itoa(status)}
		r.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		r.httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
