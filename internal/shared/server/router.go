package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hawkkeyed-backend/internal/health"
	"hawkkeyed-backend/internal/history"
	"hawkkeyed-backend/internal/report"
	"hawkkeyed-backend/internal/runs"
	"hawkkeyed-backend/internal/shared/config"
	"hawkkeyed-backend/internal/shared/metrics"
	"hawkkeyed-backend/internal/shared/server/middleware"
	"hawkkeyed-backend/internal/workflow"
)

const (
	apiPrefix    = "/api/v1"
	runRoute     = apiPrefix + "/workflows/run"
	rateGroupRun = "RUN"
)

// RouterDeps contains the handlers mounted under /api/v1. Nil handlers
// are skipped.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	WorkflowHandler *workflow.Handler
	RunsHandler     *runs.Handler
	HistoryHandler  *history.Handler
	ReportHandler   *report.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Session(),
		metrics.Middleware(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateGroupRun: {Rate: deps.Config.RateLimitRPS, Burst: deps.Config.RateLimitBurst},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == runRoute {
					return rateGroupRun
				}
				return ""
			},
		}),
	)

	r.GET("/health", health.Live)
	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	api.GET("/health", health.Live)
	if deps.Health != nil {
		api.GET("/health/ready", deps.Health.Ready)
	}
	if deps.WorkflowHandler != nil {
		deps.WorkflowHandler.RegisterRoutes(api)
	}
	if deps.RunsHandler != nil {
		deps.RunsHandler.RegisterRoutes(api)
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.RegisterRoutes(api)
	}
	if deps.HistoryHandler != nil {
		deps.HistoryHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
