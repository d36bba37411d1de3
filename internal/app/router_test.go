package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chantier-erp/chantier-erp/internal/events"
	facturationhttp "github.com/chantier-erp/chantier-erp/internal/facturation/http"
	"github.com/chantier-erp/chantier-erp/internal/observability"
	"github.com/chantier-erp/chantier-erp/jobs"
)

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterBaseRoutes(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Config:     validConfig(),
		Metrics:    metrics,
		JobHandler: jobs.NewHandler(nil, nil),
	})

	rec := serve(t, router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))

	rec = serve(t, router, http.MethodGet, "/jobs/health")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "chantier_http_requests_total")

	rec = serve(t, router, http.MethodGet, "/api/facturation/recap")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimitPerMinute = 2
	router := NewRouter(RouterParams{Config: cfg})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/healthz").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, serve(t, router, http.MethodGet, "/healthz").Code)
}

func TestServicesInProcess(t *testing.T) {
	cfg := validConfig()
	services, err := BuildServices(cfg, nil, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := services.SubscribeInvalidation(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, services.Bus.Publish(ctx, events.Event{Topic: events.TopicRecordsChanged, Source: "test"}))
	require.NoError(t, services.HandleEvent(ctx, events.Event{Topic: events.TopicStockRefresh}))

	router := NewRouter(RouterParams{
		Config:             cfg,
		FacturationHandler: facturationhttp.NewHandler(nil, services.Facturation, services.Bus),
	})
	rec := serve(t, router, http.MethodGet, "/api/facturation/recap?year=1800")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildServicesRejectsBadPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.AgingPolicyFile = "/nonexistent/aging.yml"
	_, err := BuildServices(cfg, nil, nil, nil, nil)
	require.Error(t, err)
}
