package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*testEnv)
		wantCode   int
		wantStatus HealthStatus
		down       string
	}{
		{"all up", func(*testEnv) {}, http.StatusOK, HealthStatusHealthy, ""},
		{"database down", func(e *testEnv) { e.db.pingErr = errBoom }, http.StatusServiceUnavailable, HealthStatusUnhealthy, "postgresql"},
		{"search down", func(e *testEnv) { e.search.down = true }, http.StatusServiceUnavailable, HealthStatusUnhealthy, "meilisearch"},
		{"bucket missing", func(e *testEnv) { e.objects.down = true }, http.StatusServiceUnavailable, HealthStatusUnhealthy, "minio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.db.visitors = 7
			tt.setup(env)

			rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rr.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d", tt.wantCode, rr.Code)
			}
			var h Health
			decodeBody(t, rr, &h)
			if h.Status != tt.wantStatus {
				t.Errorf("Expected %s, got %s", tt.wantStatus, h.Status)
			}
			if len(h.Services) != 3 {
				t.Errorf("Expected 3 services, got %v", h.Services)
			}
			if tt.down != "" && h.Services[tt.down].Status != ComponentStatusDown {
				t.Errorf("Expected %s down, got %+v", tt.down, h.Services[tt.down])
			}
			if tt.down == "" && (h.VisitorCount != 7 || h.SearchStats == nil) {
				t.Errorf("Expected visitor count and search stats, got %d %v", h.VisitorCount, h.SearchStats)
			}
		})
	}
}

func TestHealthSetsVisitorGauge(t *testing.T) {
	env := newTestEnv(t)
	env.db.visitors = 12
	serve(t, env, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := testutil.ToFloat64(env.srv.metrics.visitors); got != 12 {
		t.Errorf("Expected gauge 12, got %v", got)
	}
}

func TestReadyAndLive(t *testing.T) {
	env := newTestEnv(t)
	if rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); rr.Code != http.StatusOK {
		t.Errorf("Expected ready 200, got %d", rr.Code)
	}
	env.db.pingErr = errBoom
	if rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected ready 503, got %d", rr.Code)
	}
	if rr := serve(t, env, httptest.NewRequest(http.MethodGet, "/health/live", nil)); rr.Code != http.StatusOK {
		t.Errorf("Expected live 200 even with the database down, got %d", rr.Code)
	}
}

func TestOverallHealth(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentHealth
		want       HealthStatus
	}{
		{"empty", map[string]ComponentHealth{}, HealthStatusHealthy},
		{"all up", map[string]ComponentHealth{"a": {Status: ComponentStatusUp}}, HealthStatusHealthy},
		{"slow", map[string]ComponentHealth{"a": {Status: ComponentStatusUp}, "b": {Status: ComponentStatusDegraded}}, HealthStatusDegraded},
		{"down wins", map[string]ComponentHealth{"a": {Status: ComponentStatusDegraded}, "b": {Status: ComponentStatusDown}}, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		if got := overallHealth(tt.components); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}
