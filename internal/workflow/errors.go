package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hawkkeyed-backend/internal/llm"
)

var (
	ErrInputMissing      = errors.New("input missing: provide text or a file")
	ErrExtractionService = errors.New("extraction service error")
	ErrNarrationService  = errors.New("narration service error")
	ErrRunCanceled       = errors.New("run canceled")
)

const (
	ErrorCodeValidation     = "VALIDATION_ERROR"
	ErrorCodeLLMTimeout     = "LLM_TIMEOUT"
	ErrorCodeLLMUnavailable = "LLM_UNAVAILABLE"
	ErrorCodeLLMError       = "LLM_ERROR"
	ErrorCodeCanceled       = "CANCELED"
	ErrorCodeInternal       = "INTERNAL_ERROR"
)

// Stage names the provider call that failed.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageNarration  Stage = "narration"
)

// ServiceError is a transport or provider failure in one of the two model
// calls. It matches ErrExtractionService or ErrNarrationService via errors.Is.
type ServiceError struct {
	Stage Stage
	Err   error
}

func newServiceError(stage Stage, err error) *ServiceError {
	return &ServiceError{Stage: stage, Err: err}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrExtractionService:
		return e.Stage == StageExtraction
	case ErrNarrationService:
		return e.Stage == StageNarration
	}
	return false
}

// Code classifies the failure for clients and metrics.
func (e *ServiceError) Code() string {
	code, _ := classifyFailure(e)
	return code
}

// Message is the short human-readable text shown to callers.
func (e *ServiceError) Message() string {
	switch e.Stage {
	case StageExtraction:
		return "Structured extraction failed"
	case StageNarration:
		return "Narrative generation failed"
	}
	return "Workflow failed"
}

func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	if errors.Is(err, ErrInputMissing) || errors.Is(err, ErrUnknownKind) {
		return ErrorCodeValidation, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeLLMTimeout, true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrRunCanceled) {
		return ErrorCodeCanceled, true
	}
	if errors.Is(err, llm.ErrNotConfigured) || llm.IsOverloaded(err) {
		return ErrorCodeLLMUnavailable, true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") {
		return ErrorCodeLLMTimeout, true
	}
	if errors.Is(err, ErrExtractionService) || errors.Is(err, ErrNarrationService) {
		return ErrorCodeLLMError, llm.IsTransient(err)
	}
	return ErrorCodeInternal, false
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
