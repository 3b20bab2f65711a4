package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB with the driver name so stores can adapt placeholders.
type DB struct {
	*sql.DB
	driver string
}

// Open connects to the store selected by dsn and initializes the schema.
// postgres:// and postgresql:// DSNs use pgx; anything else is a SQLite path,
// ":memory:" included.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	}

	logger.Info("opening database", "driver", driver, "dsn", dsn)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY on concurrent checkpoint and cache writes.
		db.SetMaxOpenConns(1)
	}

	wrapped := &DB{DB: db, driver: driver}
	if err := wrapped.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info("database ready", "driver", driver)
	return wrapped, nil
}

func (d *DB) initialize(ctx context.Context) error {
	// one statement per exec: pgx prepares statements and rejects batches
	schema := []string{
		`CREATE TABLE IF NOT EXISTS job_checkpoint (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload TEXT NOT NULL,
			updated_at_ms BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS selector_cache (
			site_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			created_at_ms BIGINT NOT NULL,
			last_used_ms BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_history (
			job_id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT,
			format TEXT NOT NULL,
			mode TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_code TEXT,
			started_at_ms BIGINT NOT NULL,
			finished_at_ms BIGINT NOT NULL,
			duration_ms BIGINT NOT NULL,
			item_count INTEGER NOT NULL DEFAULT 0,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			translated INTEGER NOT NULL DEFAULT 0,
			artifact TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_finished ON job_history(finished_at_ms)`,
	}
	for _, stmt := range schema {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Rebind rewrites ?-style placeholders for the active driver.
func (d *DB) Rebind(query string) string {
	if d.driver != "pgx" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the underlying pool, logging rather than failing.
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := d.DB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
		return
	}
	logger.Info("database closed")
}

// HealthCheck pings the database, bounded by timeout when positive.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.PingContext(ctx)
}
