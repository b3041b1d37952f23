package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/speakerhub/bootstrap"
	"github.com/kbukum/speakerhub/component"
	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/logger"
)

func newTestServer(checker func(context.Context) []component.Health) *Server {
	s := New(Config{Port: 0}, logger.Nop(), nil)
	s.RegisterDefaultEndpoints("speakerhub", checker)
	return s
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr
}

func TestHealthAggregatesComponents(t *testing.T) {
	tests := []struct {
		name     string
		statuses []component.HealthStatus
		wantCode int
		want     component.HealthStatus
	}{
		{"all healthy", []component.HealthStatus{component.StatusHealthy}, http.StatusOK, component.StatusHealthy},
		{"degraded", []component.HealthStatus{component.StatusHealthy, component.StatusDegraded}, http.StatusOK, component.StatusDegraded},
		{"unhealthy wins", []component.HealthStatus{component.StatusDegraded, component.StatusUnhealthy}, http.StatusServiceUnavailable, component.StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(func(context.Context) []component.Health {
				out := make([]component.Health, len(tt.statuses))
				for i, st := range tt.statuses {
					out[i] = component.Health{Name: "c", Status: st}
				}
				return out
			})

			rr := do(s, "GET", "/health")
			if rr.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			var body struct {
				Status component.HealthStatus `json:"status"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.want {
				t.Errorf("status = %q, want %q", body.Status, tt.want)
			}
		})
	}
}

func TestReadyAndVersion(t *testing.T) {
	s := newTestServer(func(context.Context) []component.Health {
		return []component.Health{{Name: "database", Status: component.StatusUnhealthy}}
	})

	if rr := do(s, "GET", "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready = %d", rr.Code)
	}
	if rr := do(s, "GET", "/version"); rr.Code != http.StatusOK {
		t.Errorf("/version = %d", rr.Code)
	}
}

func TestRespondWithError(t *testing.T) {
	s := New(Config{}, logger.Nop(), nil)
	s.Engine().GET("/missing", func(c *gin.Context) {
		RespondWithError(c, apperrors.NotFound("speaker", "abc"))
	})
	s.Engine().GET("/boom", func(c *gin.Context) {
		RespondWithError(c, errors.New("db exploded"))
	})

	rr := do(s, "GET", "/missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rr.Code)
	}
	var body apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != apperrors.ErrCodeNotFound {
		t.Errorf("code = %q", body.Error.Code)
	}

	rr = do(s, "GET", "/boom")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rr.Code)
	}
	if got := rr.Body.String(); strings.Contains(got, "db exploded") {
		t.Errorf("internal error leaked: %s", got)
	}
}

func TestTrackRoutes(t *testing.T) {
	s := newTestServer(nil)
	summary := bootstrap.NewSummary("speakerhub", "test")
	s.TrackRoutes(summary)

	if len(summary.Routes()) != 3 {
		t.Fatalf("routes = %v", summary.Routes())
	}
	if summary.Routes()[0] != "GET /health" {
		t.Errorf("first route = %q", summary.Routes()[0])
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Host: "127.0.0.1"}, logger.Nop(), nil)
	s.httpServer.Addr = "127.0.0.1:0"
	s.RegisterDefaultEndpoints("speakerhub", nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}
