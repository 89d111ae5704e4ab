package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	reg := NewRegistry()

	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/api/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", Handler(reg))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(requestDuration), 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `stratus_http_request_duration_seconds_count{method="GET",route="/api/documents/{id}",status="404"}`)
}

func TestCounters(t *testing.T) {
	start := testutil.ToFloat64(RecordsCreated.WithLabelValues("gcs"))
	RecordsCreated.WithLabelValues("gcs").Inc()
	assert.Equal(t, start+1, testutil.ToFloat64(RecordsCreated.WithLabelValues("gcs")))
}
