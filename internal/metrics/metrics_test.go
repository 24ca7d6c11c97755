package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.CompaniesProcessed.WithLabelValues("succeeded").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.CompaniesProcessed.WithLabelValues("succeeded")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.CompaniesProcessed.WithLabelValues("succeeded")), 0)
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.IndexCompanies.Set(42)
	m.HTTPRequests.WithLabelValues("/health", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cyberrisk_index_companies 42")
	assert.Contains(t, string(body), `cyberrisk_http_requests_total{code="200",route="/health"} 1`)
}
