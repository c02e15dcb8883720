package history

import (
	"context"
	"sync"
)

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	maxEntries int
	bySession  map[string][]Entry
}

// NewMemoryStore constructs a MemoryStore holding at most maxEntries per session.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{maxEntries: maxEntries, bySession: make(map[string][]Entry)}
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.bySession[sessionID]
	next := make([]Entry, 0, len(entries)+1)
	next = append(next, entry)
	for _, e := range entries {
		if e.ID != entry.ID {
			next = append(next, e)
		}
	}
	if len(next) > s.maxEntries {
		next = next[:s.maxEntries]
	}
	s.bySession[sessionID] = next
	return nil
}

func (s *MemoryStore) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.bySession[sessionID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]Entry, limit)
	copy(out, entries[:limit])
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID, id string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.bySession[sessionID] {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.bySession[sessionID]
	for i, e := range entries {
		if e.ID == id {
			next := make([]Entry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			s.bySession[sessionID] = next
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.bySession, sessionID)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
