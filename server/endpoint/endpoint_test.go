package endpoint_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisper-server/component"
	"github.com/kbukum/whisper-server/observability"
	"github.com/kbukum/whisper-server/server/endpoint"
)

func serve(t *testing.T, path string, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(path, h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", path, http.NoBody))
	return rr
}

func checker(statuses ...component.HealthStatus) endpoint.HealthChecker {
	return func(context.Context) []component.Health {
		out := make([]component.Health, 0, len(statuses))
		for i, s := range statuses {
			out = append(out, component.Health{Name: string(rune('a' + i)), Status: s})
		}
		return out
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    endpoint.HealthChecker
		wantCode   int
		wantStatus component.HealthStatus
	}{
		{"no checker", nil, http.StatusOK, component.StatusHealthy},
		{"all healthy", checker(component.StatusHealthy, component.StatusHealthy), http.StatusOK, component.StatusHealthy},
		{"degraded", checker(component.StatusHealthy, component.StatusDegraded), http.StatusOK, component.StatusDegraded},
		{"unhealthy wins", checker(component.StatusDegraded, component.StatusUnhealthy), http.StatusServiceUnavailable, component.StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, "/health", endpoint.Health("whisper-server", tt.checker))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			var body endpoint.HealthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("expected %s, got %s", tt.wantStatus, body.Status)
			}
			if body.Service != "whisper-server" || body.Version == "" {
				t.Errorf("expected service and version, got %+v", body)
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	rr := serve(t, "/ready", endpoint.Readiness("svc", checker(component.StatusDegraded)))
	if rr.Code != http.StatusOK {
		t.Errorf("degraded should still be ready, got %d", rr.Code)
	}

	rr = serve(t, "/ready", endpoint.Readiness("svc", checker(component.StatusUnhealthy)))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Errorf("expected not_ready, got %s", rr.Body.String())
	}
}

func TestLiveness(t *testing.T) {
	rr := serve(t, "/alive", endpoint.Liveness("svc"))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"alive"`) {
		t.Errorf("unexpected liveness response %d %s", rr.Code, rr.Body.String())
	}
}

func TestInfo(t *testing.T) {
	rr := serve(t, "/info", endpoint.Info("svc"))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"service", "version", "go_version", "uptime", "started"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %q in %v", key, body)
		}
	}
}

func TestMetrics(t *testing.T) {
	m := observability.NewMetrics()
	m.CacheHit()

	rr := serve(t, "/metrics", endpoint.Metrics(m.Handler()))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "whisper_engine_cache_hits_total 1") {
		t.Errorf("expected cache hit counter in exposition, got:\n%s", rr.Body.String())
	}
}
