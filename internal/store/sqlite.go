package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"orbsync/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore is the structured backend: one table per collection, every
// operation a single atomic statement.
type SQLiteStore struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite store initialized")
	return &SQLiteStore{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            endpoint TEXT NOT NULL,
            method TEXT NOT NULL,
            payload TEXT,
            headers TEXT,
            created_at DATETIME NOT NULL,
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_retry_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS form_snapshots (
            form_id TEXT PRIMARY KEY,
            fields TEXT NOT NULL,
            saved_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS key_value (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_created_at ON sync_queue(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (s *SQLiteStore) AddEntry(ctx context.Context, entry *models.QueueEntry) (string, error) {
	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return "", fmt.Errorf("failed to encode headers: %w", err)
	}

	var payload any
	if len(entry.Payload) > 0 {
		payload = string(entry.Payload)
	}

	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (endpoint, method, payload, headers, created_at, retry_count, last_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Endpoint, entry.Method, payload, string(headers), entry.CreatedAt, entry.RetryCount, entry.LastRetryAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to add queue entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = strconv.FormatInt(id, 10)

	return entry.ID, nil
}

func (s *SQLiteStore) ListEntries(ctx context.Context) ([]models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, endpoint, method, payload, headers, created_at, retry_count, last_retry_at
         FROM sync_queue ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var (
			e       models.QueueEntry
			id      int64
			payload sql.NullString
			headers sql.NullString
		)
		if err := rows.Scan(&id, &e.Endpoint, &e.Method, &payload, &headers, &e.CreatedAt, &e.RetryCount, &e.LastRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		if headers.Valid && headers.String != "" && headers.String != "null" {
			if err := json.Unmarshal([]byte(headers.String), &e.Headers); err != nil {
				return nil, fmt.Errorf("failed to decode headers for entry %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) RemoveEntry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRetry(ctx context.Context, id string, retryCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET retry_count = ?, last_retry_at = ? WHERE id = ?`,
		retryCount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update retry count: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountEntries(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) ClearEntries(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, formID string, fields map[string]string) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO form_snapshots (form_id, fields, saved_at) VALUES (?, ?, ?)
         ON CONFLICT(form_id) DO UPDATE SET fields = excluded.fields, saved_at = excluded.saved_at`,
		formID, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save form snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, formID string) (map[string]string, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM form_snapshots WHERE form_id = ?`, formID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get form snapshot: %w", err)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot fields: %w", err)
	}
	return fields, true, nil
}

func (s *SQLiteStore) ClearSnapshot(ctx context.Context, formID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM form_snapshots WHERE form_id = ?`, formID); err != nil {
		return fmt.Errorf("failed to clear form snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO key_value (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetValue(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM key_value WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get value: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) RemoveValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM key_value WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove value: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
