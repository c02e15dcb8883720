package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"hawkkeyed-backend/internal/shared/util"
)

const (
	redisKeyPrefix = "hawkkeyed:history:"
	redisTTL       = 30 * 24 * time.Hour
)

// RedisStore keeps each session's history in a Redis list, newest first.
type RedisStore struct {
	client     *redis.Client
	maxEntries int
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, maxEntries int) (*RedisStore, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStore(client, maxEntries), nil
}

func newRedisStore(client *redis.Client, maxEntries int) *RedisStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RedisStore{client: client, maxEntries: maxEntries}
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(sessionID string) string {
	return redisKeyPrefix + util.HashSessionKey(sessionID)
}

// Append pushes the entry and trims the list in one MULTI/EXEC.
func (s *RedisStore) Append(ctx context.Context, sessionID string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	key := sessionKey(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(s.maxEntries-1))
		pipe.Expire(ctx, key, redisTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}
	raw, err := s.client.LRange(ctx, sessionKey(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("redis list: %w", err)
	}
	return decodeEntries(raw), nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID, id string) (Entry, error) {
	entry, _, err := s.find(ctx, sessionID, id)
	return entry, err
}

func (s *RedisStore) Delete(ctx context.Context, sessionID, id string) error {
	_, raw, err := s.find(ctx, sessionID, id)
	if err != nil {
		return err
	}
	removed, err := s.client.LRem(ctx, sessionKey(sessionID), 1, raw).Result()
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

func (s *RedisStore) find(ctx context.Context, sessionID, id string) (Entry, string, error) {
	raw, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, "", fmt.Errorf("redis list: %w", err)
	}
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		if e.ID == id {
			return e, item, nil
		}
	}
	return Entry{}, "", ErrNotFound
}

// decodeEntries skips items that no longer decode, such as entries
// written by an older schema.
func decodeEntries(raw []string) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

var _ Store = (*RedisStore)(nil)
