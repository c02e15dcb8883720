package runs

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hawkkeyed-backend/internal/shared/server/middleware"
	"hawkkeyed-backend/internal/shared/server/respond"
)

// Handler serves stored runs.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/runs/:id", h.getRun)
}

func (h *Handler) getRun(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "run id is required", nil)
		return
	}
	c.Set("runId", runID)

	run, err := GetForSession(c.Request.Context(), h.Repo, runID, middleware.SessionIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"id":        run.ID,
		"status":    run.Status,
		"createdAt": run.CreatedAt,
		"result":    run.Result(),
	})
}

// GetForSession returns a run only when it belongs to sessionID. Runs of
// other sessions are reported as not found.
func GetForSession(ctx context.Context, repo Repo, runID, sessionID string) (Run, error) {
	if repo == nil {
		return Run{}, ErrNotFound
	}
	run, err := repo.Get(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	if run.SessionID != "" && sessionID != "" && run.SessionID != sessionID {
		return Run{}, ErrNotFound
	}
	return run, nil
}
