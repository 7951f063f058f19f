package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/sketchy/internal/metrics"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks(t *testing.T) {
	c := metrics.NewCollector("test")
	hooks := c.Hooks()
	ctx := context.Background()

	hooks.OnStepStart(ctx, &domain.StepEvent{Step: domain.StepAnalyze})
	hooks.OnStepFinish(ctx, &domain.StepEvent{Step: domain.StepAnalyze, Duration: time.Second})
	hooks.OnStepStart(ctx, &domain.StepEvent{Step: domain.StepRegenerate})
	hooks.OnStepFinish(ctx, &domain.StepEvent{
		Step: domain.StepRegenerate,
		Err:  domain.RemoteFailure("provider timeout", errors.New("status 502")),
	})

	expected := `
# HELP test_steps_total Settled workflow steps by outcome
# TYPE test_steps_total counter
test_steps_total{outcome="remote_failure",step="regenerate"} 1
test_steps_total{outcome="success",step="analyze"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "test_steps_total"))
	n, err := testutil.GatherAndCount(c.Registry(), "test_steps_in_flight")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMiddleware(t *testing.T) {
	c := metrics.NewCollector("test")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/v1/analysis/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	expected := `
# HELP test_http_requests_total HTTP requests served by route and status
# TYPE test_http_requests_total counter
test_http_requests_total{method="GET",route="/api/v1/analysis/{id}",status="404"} 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "test_http_requests_total"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_request_duration_seconds")
}

func TestArtifactStored(t *testing.T) {
	c := metrics.NewCollector("test")
	c.ArtifactStored("image")
	c.ArtifactStored("image")
	c.ArtifactStored("improved")

	n, err := testutil.GatherAndCount(c.Registry(), "test_artifacts_stored_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
