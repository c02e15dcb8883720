package history

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hawkkeyed-backend/internal/shared/server/middleware"
	"hawkkeyed-backend/internal/shared/server/respond"
)

// Handler serves the per-session run history.
type Handler struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

// RegisterRoutes attaches history routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.list)
	rg.DELETE("/history", h.clear)
	rg.GET("/history/stats", h.stats)
	rg.GET("/history/:id", h.restore)
	rg.DELETE("/history/:id", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	limit, ok := parseLimit(c.Query("limit"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", []map[string]string{
			{"field": "limit", "issue": "invalid"},
		})
		return
	}
	entries, err := h.Service.List(c.Request.Context(), middleware.SessionIDFromContext(c), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list history", nil)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"items": entries, "count": len(entries)})
}

func (h *Handler) restore(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	result, err := h.Service.Restore(c.Request.Context(), middleware.SessionIDFromContext(c), id)
	if err != nil {
		if IsNotFound(err) {
			respond.Error(c, http.StatusNotFound, "not_found", "history entry not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load history entry", nil)
		return
	}
	c.Set("runId", result.ID)
	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) remove(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.Service.Delete(c.Request.Context(), middleware.SessionIDFromContext(c), id); err != nil {
		if IsNotFound(err) {
			respond.Error(c, http.StatusNotFound, "not_found", "history entry not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete history entry", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clear(c *gin.Context) {
	if err := h.Service.Clear(c.Request.Context(), middleware.SessionIDFromContext(c)); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to clear history", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Service.Stats(c.Request.Context(), middleware.SessionIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to compute history stats", nil)
		return
	}
	respond.JSON(c, http.StatusOK, stats)
}

func parseLimit(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > DefaultMaxEntries {
		n = DefaultMaxEntries
	}
	return n, true
}
