package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/smartgreen-auth/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.LoginRedirects.WithLabelValues("google").Inc()
	m.Callbacks.WithLabelValues("success").Inc()
	m.TokensIssued.Inc()
	m.GuardRejections.WithLabelValues("missing_token").Add(2)
	m.ExchangeLatency.Observe(0.2)

	require.Equal(t, 5, testutil.CollectAndCount(reg))
	require.Equal(t, float64(2), testutil.ToFloat64(m.GuardRejections.WithLabelValues("missing_token")))
	require.Panics(t, func() { metrics.New(reg) }, "collectors register once per registry")
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.TokensIssued.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "smartgreen_session_tokens_issued_total 1"))
}
