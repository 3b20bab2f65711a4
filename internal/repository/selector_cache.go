package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webclip-dev/webclip/internal/entity"
)

// SelectorStore is the durable backing of the selector cache.
type SelectorStore interface {
	// Get returns the entry for key, or nil on a miss.
	Get(ctx context.Context, key string) (*entity.SelectorEntry, error)
	Put(ctx context.Context, entry entity.SelectorEntry) error
	// MarkSuccess increments the success counter and refreshes last-used.
	MarkSuccess(ctx context.Context, key string, at time.Time) error
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
}

type selectorStore struct {
	db  *DB
	log *slog.Logger
}

func NewSelectorStore(db *DB, log *slog.Logger) SelectorStore {
	if log == nil {
		log = slog.Default()
	}
	return &selectorStore{db: db, log: log}
}

func (s *selectorStore) Get(ctx context.Context, key string) (*entity.SelectorEntry, error) {
	var (
		payload                    string
		successCount, failureCount int
		createdAtMs, lastUsedMs    int64
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT payload, success_count, failure_count, created_at_ms, last_used_ms
		FROM selector_cache WHERE site_key = ?`), key).
		Scan(&payload, &successCount, &failureCount, &createdAtMs, &lastUsedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get selector entry: %w", err)
	}

	var set entity.SelectorSet
	if err := json.Unmarshal([]byte(payload), &set); err != nil {
		return nil, fmt.Errorf("decode selector entry: %w", err)
	}
	return &entity.SelectorEntry{
		Key:          key,
		Selectors:    set,
		SuccessCount: successCount,
		FailureCount: failureCount,
		CreatedAt:    time.UnixMilli(createdAtMs),
		LastUsed:     time.UnixMilli(lastUsedMs),
	}, nil
}

func (s *selectorStore) Put(ctx context.Context, entry entity.SelectorEntry) error {
	payload, err := json.Marshal(entry.Selectors)
	if err != nil {
		return fmt.Errorf("marshal selector entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO selector_cache (site_key, payload, success_count, failure_count, created_at_ms, last_used_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (site_key) DO UPDATE SET
			payload = excluded.payload,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			last_used_ms = excluded.last_used_ms`),
		entry.Key, string(payload), entry.SuccessCount, entry.FailureCount,
		entry.CreatedAt.UnixMilli(), entry.LastUsed.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put selector entry: %w", err)
	}
	s.log.Debug("selector entry stored", "site_key", entry.Key)
	return nil
}

func (s *selectorStore) MarkSuccess(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE selector_cache SET success_count = success_count + 1, last_used_ms = ?
		WHERE site_key = ?`), at.UnixMilli(), key)
	if err != nil {
		return fmt.Errorf("mark selector success: %w", err)
	}
	return nil
}

func (s *selectorStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM selector_cache WHERE site_key = ?`), key)
	if err != nil {
		return fmt.Errorf("delete selector entry: %w", err)
	}
	return nil
}

func (s *selectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM selector_cache`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count selector entries: %w", err)
	}
	return n, nil
}
