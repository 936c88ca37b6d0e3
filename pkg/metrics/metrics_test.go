package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.LoginAttempt("password", OutcomeSuccess)
	r.RefreshAttempt(OutcomeFailure)
	r.RefreshReuse()
	r.PasswordReset("request", OutcomeSuccess)
	r.TokensSwept(3)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, r.Instrument(h))
}

func TestAuthCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.LoginAttempt("password", OutcomeSuccess)
	r.LoginAttempt("password", OutcomeFailure)
	r.LoginAttempt("password", OutcomeFailure)
	r.RefreshReuse()
	r.TokensSwept(0)
	r.TokensSwept(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.logins.WithLabelValues("password", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reuseDetected))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.sweptTokens))
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)

	router := chi.NewRouter()
	router.Use(rec.Instrument)
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.httpRequestsTotal.WithLabelValues("GET", "/items/{id}", "418")))

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `route="/items/{id}"`))
}
