package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunCounters(t *testing.T) {
	before := testutil.ToFloat64(runsFailedTotal.WithLabelValues("doc-summary", "LLM_TIMEOUT"))
	IncRunFailed("doc-summary", "LLM_TIMEOUT")
	after := testutil.ToFloat64(runsFailedTotal.WithLabelValues("doc-summary", "LLM_TIMEOUT"))
	if after-before != 1 {
		t.Fatalf("expected failed counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncRunStarted("chat-draft")
	ObserveRunDuration("chat-draft", 1500*time.Millisecond)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `hawkkeyed_workflow_runs_started_total{workflow="chat-draft"}`) {
		t.Fatalf("expected started counter in output")
	}
	if !strings.Contains(body, "hawkkeyed_workflow_run_duration_seconds_bucket") {
		t.Fatalf("expected histogram in output")
	}
}
