package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.Jobs().AddRecapsWarmed(1)

	body := scrape(t, metrics)
	if !strings.Contains(body, "chantier_recaps_warmed_total 1") {
		t.Fatalf("expected job metrics on the shared registry, got: %s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected runtime collectors, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/facturation/recap")

	req := httptest.NewRequest(http.MethodGet, "/api/facturation/recap", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `chantier_http_requests_total{code="418",route="/api/facturation/recap"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `chantier_http_request_duration_seconds_bucket{route="/api/facturation/recap"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestMetricsRecapCacheAndEvents(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveRecapBuild(20*time.Millisecond, nil)
	metrics.ObserveRecapBuild(time.Millisecond, errors.New("db down"))
	metrics.CacheHit("recap")
	metrics.CacheMiss("recap")
	metrics.CacheMiss("recap")
	metrics.AddDroppedInvoices(2)
	metrics.EventPublished("facturation.records_changed")

	body := scrape(t, metrics)
	for _, want := range []string{
		`chantier_recap_builds_total{result="success"} 1`,
		`chantier_recap_builds_total{result="failure"} 1`,
		`chantier_recap_build_duration_seconds_count 2`,
		`chantier_cache_lookups_total{namespace="recap",result="hit"} 1`,
		`chantier_cache_lookups_total{namespace="recap",result="miss"} 2`,
		`chantier_recap_dropped_invoices_total 2`,
		`chantier_events_published_total{topic="facturation.records_changed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveRecapBuild(time.Second, nil)
	metrics.CacheHit("recap")
	metrics.AddDroppedInvoices(1)
	metrics.EventPublished("stock.refresh")
	if metrics.Jobs() != nil {
		t.Fatal("expected nil job metrics")
	}

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
