package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/entity"
)

// HistoryStore keeps the per-job stats records written at finalization.
type HistoryStore interface {
	Append(ctx context.Context, record entity.HistoryRecord) error
	// List returns records newest-first, at most limit (0 means all).
	List(ctx context.Context, limit int) ([]entity.HistoryRecord, error)
	// Prune keeps the newest keep records and returns how many were removed.
	Prune(ctx context.Context, keep int) (int64, error)
}

type historyStore struct {
	db  *DB
	log *slog.Logger
}

func NewHistoryStore(db *DB, log *slog.Logger) HistoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &historyStore{db: db, log: log}
}

func (s *historyStore) Append(ctx context.Context, record entity.HistoryRecord) error {
	translated := 0
	if record.Translated {
		translated = 1
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO job_history
			(job_id, url, title, format, mode, outcome, error_code,
			 started_at_ms, finished_at_ms, duration_ms, item_count, chunk_count, translated, artifact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`),
		record.JobID.String(), record.URL, record.Title, string(record.Format), string(record.Mode),
		string(record.Outcome), record.ErrorCode,
		record.StartedAt.UnixMilli(), record.FinishedAt.UnixMilli(), record.Duration.Milliseconds(),
		record.ItemCount, record.ChunkCount, translated, record.Artifact,
	)
	if err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	s.log.Debug("history record appended", "job_id", record.JobID, "outcome", record.Outcome)
	return nil
}

func (s *historyStore) List(ctx context.Context, limit int) ([]entity.HistoryRecord, error) {
	query := `
		SELECT job_id, url, title, format, mode, outcome, error_code,
		       started_at_ms, finished_at_ms, duration_ms, item_count, chunk_count, translated, artifact
		FROM job_history ORDER BY finished_at_ms DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.db.Rebind(query+` LIMIT ?`), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []entity.HistoryRecord
	for rows.Next() {
		var (
			rec                               entity.HistoryRecord
			jobID, format, mode, outcome      string
			title, errorCode, artifact        sql.NullString
			startedMs, finishedMs, durationMs int64
			translated                        int
		)
		if err := rows.Scan(&jobID, &rec.URL, &title, &format, &mode, &outcome, &errorCode,
			&startedMs, &finishedMs, &durationMs, &rec.ItemCount, &rec.ChunkCount, &translated, &artifact); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if parsed, err := uuid.Parse(jobID); err == nil {
			rec.JobID = parsed
		}
		rec.Title = title.String
		rec.Format = constants.OutputFormat(format)
		rec.Mode = constants.AcquisitionMode(mode)
		rec.Outcome = constants.JobStage(outcome)
		rec.ErrorCode = errorCode.String
		rec.StartedAt = time.UnixMilli(startedMs)
		rec.FinishedAt = time.UnixMilli(finishedMs)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.Translated = translated != 0
		rec.Artifact = artifact.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}

func (s *historyStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM job_history WHERE job_id NOT IN (
			SELECT job_id FROM job_history ORDER BY finished_at_ms DESC LIMIT ?
		)`), keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("history pruned", "removed", removed, "kept", keep)
	}
	return removed, nil
}
