package workflow

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hawkkeyed-backend/internal/chart"
	"hawkkeyed-backend/internal/extract"
	"hawkkeyed-backend/internal/shared/server/middleware"
	"hawkkeyed-backend/internal/shared/server/respond"
)

const (
	MaxUploadBytes  = 10 << 20
	maxRequestBytes = MaxUploadBytes + 1<<20
	// multipartMemory is kept in memory while parsing; larger parts spill to disk.
	multipartMemory = 8 << 20
)

var errFileTooLarge = errors.New("file exceeds the 10MB limit")

// Handler wires HTTP handlers to the orchestrator.
type Handler struct {
	Orchestrator *Orchestrator
	Active       *ActiveRuns
}

// NewHandler constructs a Handler.
func NewHandler(o *Orchestrator) *Handler {
	return &Handler{Orchestrator: o, Active: NewActiveRuns()}
}

// RegisterRoutes attaches workflow routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/workflows", h.listWorkflows)
	rg.POST("/workflows/run", h.runWorkflow)
}

type runResponse struct {
	RunResult
	Chart *chart.Series `json:"chart,omitempty"`
}

func (h *Handler) listWorkflows(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{"workflows": Catalog()})
}

func (h *Handler) runWorkflow(c *gin.Context) {
	if status, err := parseForm(c); err != nil {
		code := "validation_error"
		if status == http.StatusRequestEntityTooLarge {
			code = "file_too_large"
		}
		respond.Error(c, status, code, err.Error(), nil)
		return
	}

	workflowValue := strings.TrimSpace(c.PostForm("workflow"))
	if workflowValue == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Missing workflow or input", []map[string]string{
			{"field": "workflow", "issue": "required"},
		})
		return
	}
	kind, err := ParseKind(workflowValue)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Unknown workflow", []map[string]string{
			{"field": "workflow", "issue": "unknown"},
		})
		return
	}
	c.Set("workflow", string(kind))

	file, status, err := readUpload(c)
	if err != nil {
		code := "validation_error"
		if status == http.StatusRequestEntityTooLarge {
			code = "file_too_large"
		}
		respond.Error(c, status, code, err.Error(), nil)
		return
	}
	raw := RawInput{Text: c.PostForm("input"), File: file}
	if strings.TrimSpace(raw.Text) == "" && raw.File == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Missing workflow or input", []map[string]string{
			{"field": "input", "issue": "required"},
		})
		return
	}

	sessionID := middleware.SessionIDFromContext(c)
	if !h.Active.TryAcquire(sessionID) {
		respond.Error(c, http.StatusConflict, "run_in_progress", "A workflow run is already in progress for this session", nil)
		return
	}
	defer h.Active.Release(sessionID)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	ctx = WithSessionID(ctx, sessionID)
	res := h.Orchestrator.Run(ctx, kind, raw)
	c.Set("runId", res.ID)

	if !res.OK {
		c.Set("statusTransition", string(StateCreated)+"->"+string(StateFailed))
		if res.ErrorCode == ErrorCodeValidation {
			respond.Error(c, http.StatusBadRequest, "validation_error", res.Error, nil)
			return
		}
		respond.JSON(c, failureStatus(res.ErrorCode), res)
		return
	}

	c.Set("statusTransition", string(StateCreated)+"->"+string(StateCompleted))
	resp := runResponse{RunResult: res}
	if kind == KindDataInsights {
		if series, ok := chart.ParseSeries(raw.chartSource()); ok {
			resp.Chart = &series
		}
	}
	respond.JSON(c, http.StatusOK, resp)
}

// parseForm reads the whole form up front. Field lookups on gin's context
// swallow parse errors, so an oversized body would otherwise look like a
// request with no fields.
func parseForm(c *gin.Context) (int, error) {
	if c.Request.ContentLength > maxRequestBytes {
		return http.StatusRequestEntityTooLarge, errFileTooLarge
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)

	err := c.Request.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = c.Request.ParseForm()
	}
	if err == nil {
		return http.StatusOK, nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, errFileTooLarge
	}
	return http.StatusBadRequest, errors.New("invalid form body")
}

func readUpload(c *gin.Context) (*RawFile, int, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, http.StatusOK, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, errFileTooLarge
		}
		return nil, http.StatusBadRequest, errors.New("invalid file upload")
	}
	if header.Size > MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, errFileTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid file upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid file upload")
	}
	if len(data) > MaxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, errFileTooLarge
	}
	return &RawFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, http.StatusOK, nil
}

// chartSource is the text the chart parser reads: the decoded file when one
// was uploaded as text, otherwise the input text.
func (raw RawInput) chartSource() string {
	if raw.File != nil && extract.Classify(raw.File.MimeType, raw.File.Name, raw.File.Data) == extract.ClassText {
		return extract.DecodeText(raw.File.Data)
	}
	return raw.Text
}

func failureStatus(code string) int {
	switch code {
	case ErrorCodeValidation:
		return http.StatusBadRequest
	case ErrorCodeInternal:
		return http.StatusInternalServerError
	case ErrorCodeCanceled:
		return 499
	}
	return http.StatusBadGateway
}
