package store

import (
	"context"
	"fmt"
	"time"

	"orbsync/internal/config"
	"orbsync/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var timeNow = time.Now

// NewRedisClient создает клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Store is the durable persistence contract shared by both backends: the
// sync queue, form snapshots and a generic key/value collection. The backend
// is chosen once by Open and stays fixed for the process lifetime.
type Store interface {
	// AddEntry assigns a unique id, persists the entry and returns the id.
	AddEntry(ctx context.Context, entry *models.QueueEntry) (string, error)
	// ListEntries returns all queued entries oldest-first by creation order,
	// ties broken by assigned id order.
	ListEntries(ctx context.Context) ([]models.QueueEntry, error)
	// RemoveEntry deletes one entry. Removing an absent id is not an error.
	RemoveEntry(ctx context.Context, id string) error
	// UpdateRetry sets the retry counter and stamps last_retry_at. No-op for
	// an absent id.
	UpdateRetry(ctx context.Context, id string, retryCount int) error
	CountEntries(ctx context.Context) (int, error)
	ClearEntries(ctx context.Context) error

	SaveSnapshot(ctx context.Context, formID string, fields map[string]string) error
	// GetSnapshot reports ok=false when no snapshot exists for the form.
	GetSnapshot(ctx context.Context, formID string) (map[string]string, bool, error)
	ClearSnapshot(ctx context.Context, formID string) error

	SetValue(ctx context.Context, key, value string) error
	// GetValue returns def when the key is absent.
	GetValue(ctx context.Context, key, def string) (string, error)
	RemoveValue(ctx context.Context, key string) error

	Close() error
}

// Open selects the backend: SQLite when it initializes, otherwise the flat
// Redis fallback. The downgrade is logged but never surfaced as an error —
// callers hold the Store interface and must not care which tier serves them.
func Open(dbPath string, redisClient *redis.Client, logger *zerolog.Logger) (Store, error) {
	var initErr error
	if dbPath != "" {
		s, err := NewSQLiteStore(dbPath, logger)
		if err == nil {
			return s, nil
		}
		initErr = err
		logger.Warn().Err(err).Str("path", dbPath).Msg("SQLite store unavailable, downgrading to Redis fallback")
	}

	if redisClient == nil {
		if initErr != nil {
			return nil, fmt.Errorf("sqlite init failed and no fallback configured: %w", initErr)
		}
		return nil, fmt.Errorf("no storage backend configured")
	}
	return NewRedisStore(redisClient, logger), nil
}
