package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

// Runs against a real server only when REDIS_TEST_URL is set.
func TestRedisStoreRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewRedisStore(ctx, url, 2)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	session := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer store.Clear(context.Background(), session)

	for _, id := range []string{"a", "b", "c"} {
		e := entry(id)
		e.Result.Structured = workflow.DocumentSummary{Summary: "summary " + id}
		if err := store.Append(ctx, session, e); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	got, err := store.List(ctx, session, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	doc, ok := got[0].Result.Structured.(workflow.DocumentSummary)
	if !ok || doc.Summary != "summary c" {
		t.Fatalf("structured result not restored: %#v", got[0].Result.Structured)
	}

	if err := store.Delete(ctx, session, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, session, "b"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionKeyHidesRawSession(t *testing.T) {
	key := sessionKey("user-session")
	if key == redisKeyPrefix+"user-session" {
		t.Fatalf("session id must be hashed, got %s", key)
	}
	if len(key) != len(redisKeyPrefix)+64 {
		t.Fatalf("unexpected key length %d", len(key))
	}
}
