package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkkeyed_workflow_runs_started_total",
			Help: "Total workflow runs started",
		},
		[]string{"workflow"},
	)

	runsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkkeyed_workflow_runs_completed_total",
			Help: "Total workflow runs completed",
		},
		[]string{"workflow"},
	)

	runsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkkeyed_workflow_runs_failed_total",
			Help: "Total workflow runs failed",
		},
		[]string{"workflow", "code"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hawkkeyed_workflow_run_duration_seconds",
			Help:    "Workflow run duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workflow"},
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkkeyed_llm_calls_total",
			Help: "Total model provider calls",
		},
		[]string{"stage", "status"},
	)

	reportsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkkeyed_reports_rendered_total",
			Help: "Total reports rendered",
		},
		[]string{"workflow", "format"},
	)

	runEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkkeyed_run_events_total",
			Help: "Total run events consumed by the report worker",
		},
		[]string{"outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hawkkeyed_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// IncRunStarted increments the started counter.
func IncRunStarted(workflow string) {
	runsStartedTotal.WithLabelValues(workflow).Inc()
}

// IncRunCompleted increments the completed counter.
func IncRunCompleted(workflow string) {
	runsCompletedTotal.WithLabelValues(workflow).Inc()
}

// IncRunFailed increments the failed counter.
func IncRunFailed(workflow, code string) {
	runsFailedTotal.WithLabelValues(workflow, code).Inc()
}

// ObserveRunDuration records a run duration.
func ObserveRunDuration(workflow string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	runDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

// IncLLMCall counts a provider call by stage (extraction, narration) and outcome.
func IncLLMCall(stage, status string) {
	llmCallsTotal.WithLabelValues(stage, status).Inc()
}

// IncReportRendered counts a rendered report.
func IncReportRendered(workflow, format string) {
	reportsRenderedTotal.WithLabelValues(workflow, format).Inc()
}

// IncRunEvent counts a consumed run event by outcome (archived, skipped,
// failed, dropped).
func IncRunEvent(outcome string) {
	runEventsTotal.WithLabelValues(outcome).Inc()
}

// Middleware counts requests by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
