package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusReportsEachCheck(t *testing.T) {
	svc := NewService()
	svc.Register("database", func(ctx context.Context) error { return nil })
	svc.Register("history", func(ctx context.Context) error { return errors.New("connection refused") })
	svc.Register("skipped", nil)

	report := svc.Status(context.Background())
	if report.OK {
		t.Fatalf("expected failing report")
	}
	if report.Checks["database"] != "ok" || report.Checks["history"] != "connection refused" {
		t.Fatalf("unexpected checks: %+v", report.Checks)
	}
	if _, ok := report.Checks["skipped"]; ok {
		t.Fatalf("nil checker should not be registered")
	}
}

func TestReadyStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := NewService()
	healthy.Register("database", func(ctx context.Context) error { return nil })
	failing := NewService()
	failing.Register("database", func(ctx context.Context) error { return context.DeadlineExceeded })

	cases := []struct {
		name string
		svc  *Service
		want int
	}{
		{"healthy", healthy, http.StatusOK},
		{"failing", failing, http.StatusServiceUnavailable},
		{"no checks", NewService(), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/ready", tc.svc.Ready)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			var body Report
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.OK != (tc.want == http.StatusOK) {
				t.Fatalf("unexpected ok flag: %+v", body)
			}
		})
	}
}

func TestLive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Live)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
