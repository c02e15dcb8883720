package history

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/shared/util"
	"hawkkeyed-backend/internal/workflow"
)

const truncatedInputChars = 100

// Service records successful runs and answers history queries.
type Service struct {
	Store Store
	Now   func() time.Time
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

// Stats summarizes a session's history.
type Stats struct {
	TotalRuns   int                   `json:"totalRuns"`
	ByWorkflow  map[workflow.Kind]int `json:"byWorkflow"`
	MostUsed    string                `json:"mostUsed"`
	SuccessRate string                `json:"successRate"`
}

// Record appends a successful run. Failed runs are not remembered.
func (s *Service) Record(ctx context.Context, sessionID string, result workflow.RunResult) (Entry, bool, error) {
	if !result.OK {
		return Entry{}, false, nil
	}
	entry := Entry{
		ID:             result.ID,
		Timestamp:      result.Timestamp,
		Workflow:       result.Workflow,
		TruncatedInput: util.Truncate(strings.TrimSpace(result.Input), truncatedInputChars),
		Result:         result,
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.Store.Append(ctx, sessionID, entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// RunFinished implements workflow.RunObserver. Errors are logged only.
func (s *Service) RunFinished(ctx context.Context, result workflow.RunResult) {
	sessionID := workflow.SessionIDFromContext(ctx)
	if _, _, err := s.Record(ctx, sessionID, result); err != nil {
		telemetry.Error("history.append_failed", map[string]any{
			"request_id": workflow.RequestIDFromContext(ctx),
			"run_id":     result.ID,
			"workflow":   string(result.Workflow),
			"error":      err.Error(),
		})
	}
}

// List returns the most recent entries, newest first.
func (s *Service) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	return s.Store.List(ctx, sessionID, limit)
}

// Restore returns the stored result of an entry so it can be shown again.
func (s *Service) Restore(ctx context.Context, sessionID, id string) (workflow.RunResult, error) {
	entry, err := s.Store.Get(ctx, sessionID, id)
	if err != nil {
		return workflow.RunResult{}, err
	}
	return entry.Result, nil
}

func (s *Service) Delete(ctx context.Context, sessionID, id string) error {
	return s.Store.Delete(ctx, sessionID, id)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.Store.Clear(ctx, sessionID)
}

// Stats computes usage analytics over the whole retained history.
func (s *Service) Stats(ctx context.Context, sessionID string) (Stats, error) {
	entries, err := s.Store.List(ctx, sessionID, 0)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(entries), nil
}

func computeStats(entries []Entry) Stats {
	stats := Stats{
		TotalRuns:   len(entries),
		ByWorkflow:  make(map[workflow.Kind]int),
		MostUsed:    "None",
		SuccessRate: "N/A",
	}
	if len(entries) == 0 {
		return stats
	}
	ok := 0
	for _, e := range entries {
		stats.ByWorkflow[e.Workflow]++
		if e.Result.OK {
			ok++
		}
	}

	kinds := make([]workflow.Kind, 0, len(stats.ByWorkflow))
	for k := range stats.ByWorkflow {
		kinds = append(kinds, k)
	}
	// Ties resolve to catalog order so the answer is stable.
	sort.SliceStable(kinds, func(i, j int) bool {
		ci, cj := stats.ByWorkflow[kinds[i]], stats.ByWorkflow[kinds[j]]
		if ci != cj {
			return ci > cj
		}
		return catalogIndex(kinds[i]) < catalogIndex(kinds[j])
	})
	stats.MostUsed = kinds[0].Title()
	stats.SuccessRate = formatPercent(ok, len(entries))
	return stats
}

func catalogIndex(k workflow.Kind) int {
	for i, known := range workflow.Kinds() {
		if known == k {
			return i
		}
	}
	return len(workflow.Kinds())
}

func formatPercent(n, total int) string {
	pct := (n*100 + total/2) / total
	return strconv.Itoa(pct) + "%"
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

var _ workflow.RunObserver = (*Service)(nil)

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
