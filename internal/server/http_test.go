package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "timeflow/cmd/timeflow/docs"
	"timeflow/internal/observability"
)

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, verifier := newTestServer(&fakeProvider{}, nil)

	rec := get(srv, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Zero(t, verifier.Calls(), "health is unauthenticated")
}

func TestUnknownRoute_ErrorShape(t *testing.T) {
	srv, _ := newTestServer(&fakeProvider{}, nil)

	rec := get(srv, "/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCustomCompletionPath(t *testing.T) {
	provider := &fakeProvider{text: "ok"}
	srv, _ := newTestServer(provider, &Config{Path: "/v1/complete"})

	rec := postCompletion(srv, "Bearer "+validToken, `{"prompt":"hi"}`)
	assert.NotEqual(t, http.StatusOK, rec.Code, "root no longer serves completions")
	assert.Empty(t, provider.Calls())

	req := httptest.NewRequest(http.MethodPost, "/v1/complete", strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+validToken)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, provider.Calls(), 1)
}

func TestRequestID_Generated(t *testing.T) {
	provider := &fakeProvider{text: "ok"}
	srv, _ := newTestServer(provider, nil)

	rec := postCompletion(srv, "Bearer "+validToken, `{"prompt":"hi"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get("X-Request-ID")
	assert.Len(t, id, 36, "uuid expected, got %q", id)
	assert.Equal(t, []string{id}, provider.requestIDs)
}

func TestRequestID_OnRejection(t *testing.T) {
	srv, _ := newTestServer(&fakeProvider{}, nil)

	rec := postCompletion(srv, "", `{"prompt":"hi"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	provider := &fakeProvider{text: "ok"}
	srv, _ := newTestServer(provider, &Config{
		Metrics:        metrics,
		MetricsEnabled: true,
		Gatherer:       reg,
	})

	postCompletion(srv, "Bearer "+validToken, `{"prompt":"hi"}`)
	postCompletion(srv, "", `{"prompt":"hi"}`)
	postCompletion(srv, "Bearer wrong", `{"prompt":"hi"}`)
	postCompletion(srv, "Bearer "+validToken, `{}`)

	rec := get(srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `timeflow_requests_total{outcome="ok"} 1`)
	assert.Contains(t, body, `timeflow_requests_total{outcome="unauthorized"} 1`)
	assert.Contains(t, body, `timeflow_requests_total{outcome="invalid_token"} 1`)
	assert.Contains(t, body, `timeflow_requests_total{outcome="bad_request"} 1`)
	assert.Contains(t, body, `timeflow_upstream_duration_seconds_count{model="gpt-4o",success="true"} 1`)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	srv, _ := newTestServer(&fakeProvider{}, &Config{MetricsEnabled: false})

	rec := get(srv, "/metrics")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsPath(t *testing.T) {
	tests := []struct {
		endpoint       string
		completionPath string
		want           string
	}{
		{"", "/", "/metrics"},
		{"/metrics", "/", "/metrics"},
		{"internal/metrics", "/", "/internal/metrics"},
		{"/", "/", "/metrics"},
		{"/health", "/", "/metrics"},
		{"/v1/complete", "/v1/complete", "/metrics"},
		{"/prom/../stats", "/", "/stats"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, metricsPath(tt.endpoint, tt.completionPath))
		})
	}
}

func TestSwagger(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		srv, _ := newTestServer(&fakeProvider{}, &Config{SwaggerEnabled: true})

		rec := get(srv, "/swagger/doc.json")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "TimeFlow API")
		assert.Contains(t, rec.Body.String(), "BearerAuth")
	})

	t.Run("disabled", func(t *testing.T) {
		srv, _ := newTestServer(&fakeProvider{}, &Config{SwaggerEnabled: false})

		rec := get(srv, "/swagger/doc.json")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
