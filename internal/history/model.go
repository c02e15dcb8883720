package history

import (
	"context"
	"errors"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

var ErrNotFound = errors.New("not found")

const (
	DefaultListLimit  = 10
	DefaultMaxEntries = 50
)

// Entry is one remembered run. Entries are never mutated after Append.
type Entry struct {
	ID             string             `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	Workflow       workflow.Kind      `json:"workflow"`
	TruncatedInput string             `json:"truncatedInput"`
	Result         workflow.RunResult `json:"result"`
}

// Store keeps a bounded, most-recent-first list of entries per session.
// Concurrent writers follow last-write-wins.
type Store interface {
	Append(ctx context.Context, sessionID string, entry Entry) error
	List(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Get(ctx context.Context, sessionID, id string) (Entry, error)
	Delete(ctx context.Context, sessionID, id string) error
	Clear(ctx context.Context, sessionID string) error
}
