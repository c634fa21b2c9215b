package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"orbsync/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey = "orbsync:queue"
	redisFormKey  = "orbsync:forms:"
	redisValueKey = "orbsync:kv:"
)

// RedisStore is the flat fallback backend: the whole queue lives as one
// serialized blob, form snapshots and values under namespaced keys. Queue
// operations are read-modify-write; the mutex keeps them atomic within the
// process, and the engine never issues concurrent queue writes anyway.
type RedisStore struct {
	client *redis.Client
	logger *zerolog.Logger
	mu     sync.Mutex
}

func NewRedisStore(client *redis.Client, logger *zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) loadQueue(ctx context.Context) ([]models.QueueEntry, error) {
	val, err := s.client.Get(ctx, redisQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue blob: %w", err)
	}

	var entries []models.QueueEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode queue blob: %w", err)
	}
	return entries, nil
}

func (s *RedisStore) storeQueue(ctx context.Context, entries []models.QueueEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode queue blob: %w", err)
	}
	if err := s.client.Set(ctx, redisQueueKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write queue blob: %w", err)
	}
	return nil
}

func (s *RedisStore) AddEntry(ctx context.Context, entry *models.QueueEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadQueue(ctx)
	if err != nil {
		return "", err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = timeNow()
	}
	entry.ID = uuid.NewString()

	entries = append(entries, *entry)
	if err := s.storeQueue(ctx, entries); err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (s *RedisStore) ListEntries(ctx context.Context) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadQueue(ctx)
	if err != nil {
		return nil, err
	}
	// Blob order is insertion order; stable sort keeps it for equal timestamps.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *RedisStore) RemoveEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadQueue(ctx)
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return s.storeQueue(ctx, kept)
}

func (s *RedisStore) UpdateRetry(ctx context.Context, id string, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadQueue(ctx)
	if err != nil {
		return err
	}

	updated := false
	for i := range entries {
		if entries[i].ID == id {
			now := timeNow()
			entries[i].RetryCount = retryCount
			entries[i].LastRetryAt = &now
			updated = true
			break
		}
	}
	if !updated {
		return nil
	}
	return s.storeQueue(ctx, entries)
}

func (s *RedisStore) CountEntries(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadQueue(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *RedisStore) ClearEntries(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Del(ctx, redisQueueKey).Err(); err != nil {
		return fmt.Errorf("failed to clear queue blob: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveSnapshot(ctx context.Context, formID string, fields map[string]string) error {
	snap := models.FormSnapshot{FormID: formID, Fields: fields, SavedAt: timeNow()}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode form snapshot: %w", err)
	}
	if err := s.client.Set(ctx, redisFormKey+formID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save form snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSnapshot(ctx context.Context, formID string) (map[string]string, bool, error) {
	val, err := s.client.Get(ctx, redisFormKey+formID).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get form snapshot: %w", err)
	}

	var snap models.FormSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, false, fmt.Errorf("failed to decode form snapshot: %w", err)
	}
	return snap.Fields, true, nil
}

func (s *RedisStore) ClearSnapshot(ctx context.Context, formID string) error {
	if err := s.client.Del(ctx, redisFormKey+formID).Err(); err != nil {
		return fmt.Errorf("failed to clear form snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) SetValue(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, redisValueKey+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func (s *RedisStore) GetValue(ctx context.Context, key, def string) (string, error) {
	val, err := s.client.Get(ctx, redisValueKey+key).Result()
	if err == redis.Nil {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get value: %w", err)
	}
	return val, nil
}

func (s *RedisStore) RemoveValue(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisValueKey+key).Err(); err != nil {
		return fmt.Errorf("failed to remove value: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
