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

// CheckpointStore persists the single job snapshot that makes resume across
// process restarts possible.
type CheckpointStore interface {
	Write(ctx context.Context, snapshot entity.Job) error
	// Read returns the last snapshot, or nil when none exists.
	Read(ctx context.Context) (*entity.Job, error)
	Clear(ctx context.Context) error
}

type checkpointStore struct {
	db  *DB
	log *slog.Logger
}

func NewCheckpointStore(db *DB, log *slog.Logger) CheckpointStore {
	if log == nil {
		log = slog.Default()
	}
	return &checkpointStore{db: db, log: log}
}

func (s *checkpointStore) Write(ctx context.Context, snapshot entity.Job) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO job_checkpoint (id, payload, updated_at_ms) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at_ms = excluded.updated_at_ms`),
		string(payload), snapshot.LastUpdate.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	s.log.Debug("checkpoint written", "job_id", snapshot.ID, "stage", snapshot.Stage, "progress", snapshot.Progress)
	return nil
}

func (s *checkpointStore) Read(ctx context.Context) (*entity.Job, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT payload FROM job_checkpoint WHERE id = 1`)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var snapshot entity.Job
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		// A corrupt checkpoint is unrecoverable; report it so the caller
		// clears it and starts clean.
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &snapshot, nil
}

func (s *checkpointStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM job_checkpoint`)
	if err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// Age computes how stale a snapshot is relative to now.
func Age(snapshot *entity.Job, now time.Time) time.Duration {
	if snapshot == nil {
		return 0
	}
	return now.Sub(snapshot.LastUpdate)
}
