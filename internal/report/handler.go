package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hawkkeyed-backend/internal/runs"
	"hawkkeyed-backend/internal/shared/metrics"
	"hawkkeyed-backend/internal/shared/server/middleware"
	"hawkkeyed-backend/internal/shared/server/respond"
	"hawkkeyed-backend/internal/shared/storage/object"
	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/workflow"
)

const (
	maxReportBody  = 2 << 20
	archiveTimeout = 10 * time.Second
)

var ErrNotReportable = errors.New("run has no successful result")

// Reportable reports whether a run can be rendered.
func Reportable(res workflow.RunResult) error {
	if !res.Workflow.Valid() {
		return workflow.ErrUnknownKind
	}
	if !res.OK || (res.Structured == nil && !res.Narrative.Present()) {
		return ErrNotReportable
	}
	return nil
}

// Handler renders reports over HTTP.
type Handler struct {
	Runs    runs.Repo
	Archive object.Store
	Now     func() time.Time
}

// NewHandler constructs a Handler. runRepo and archive may be nil.
func NewHandler(runRepo runs.Repo, archive object.Store) *Handler {
	return &Handler{Runs: runRepo, Archive: archive, Now: time.Now}
}

// RegisterRoutes attaches report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reports", h.renderPosted)
	rg.GET("/runs/:id/report", h.renderStored)
}

func (h *Handler) renderPosted(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBody))
	if err != nil {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "report payload too large", nil)
		return
	}
	var res workflow.RunResult
	if err := json.Unmarshal(body, &res); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid run result", []map[string]string{
			{"field": "body", "issue": sanitizeDecodeError(err)},
		})
		return
	}
	h.write(c, res)
}

func (h *Handler) renderStored(c *gin.Context) {
	runID := c.Param("id")
	c.Set("runId", runID)
	run, err := runs.GetForSession(c.Request.Context(), h.Runs, runID, middleware.SessionIDFromContext(c))
	if err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
		return
	}
	h.write(c, run.Result())
}

func (h *Handler) write(c *gin.Context, res workflow.RunResult) {
	if err := Reportable(res); err != nil {
		status, code := http.StatusUnprocessableEntity, "run_not_reportable"
		if errors.Is(err, workflow.ErrUnknownKind) {
			status, code = http.StatusBadRequest, "validation_error"
		}
		respond.Error(c, status, code, err.Error(), nil)
		return
	}
	c.Set("workflow", string(res.Workflow))

	if strings.EqualFold(c.Query("format"), "txt") {
		text := Text(res, h.now())
		metrics.IncReportRendered(string(res.Workflow), "txt")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, TextFilename(res)))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
		return
	}

	doc := Render(res)
	data, err := PDFBytes(doc)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "render_failed", "failed to render report", nil)
		return
	}
	metrics.IncReportRendered(string(res.Workflow), "pdf")
	h.archive(c.Request.Context(), middleware.SessionIDFromContext(c), doc, data)

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename()))
	c.Data(http.StatusOK, "application/pdf", data)
}

// archive stores a copy of the PDF. Failures are logged only.
func (h *Handler) archive(ctx context.Context, sessionID string, doc Document, data []byte) {
	if h.Archive == nil {
		return
	}
	key, err := object.ReportKey(sessionID, doc.Filename())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		_, err = h.Archive.Put(ctx, key, "application/pdf", bytes.NewReader(data))
	}
	if err != nil {
		telemetry.Warn("report.archive_failed", map[string]any{
			"document": doc.ID,
			"workflow": string(doc.Workflow),
			"error":    err.Error(),
		})
		return
	}
	telemetry.Info("report.archived", map[string]any{
		"document": doc.ID,
		"key":      key,
		"pages":    len(doc.Pages),
	})
}

func sanitizeDecodeError(err error) string {
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
