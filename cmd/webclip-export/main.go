// webclip-export writes the job history as an XLSX workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/webclip-dev/webclip/internal/export"
	"github.com/webclip-dev/webclip/internal/repository"
)

func main() {
	var (
		dsn   = flag.String("db", "webclip.db", "database DSN (SQLite path or postgres:// URL)")
		out   = flag.String("out", "clips-history.xlsx", "output XLSX file path")
		limit = flag.Int("limit", 0, "newest records to export (0 = all)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, *dsn, logger)
	if err != nil {
		logger.Error("failed to open database", "dsn", *dsn, "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	svc := export.NewService(repository.NewHistoryStore(db, logger), logger)
	data, err := svc.HistoryXLSX(ctx, *limit)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	fmt.Printf("History exported to %s\n", *out)
}
