// Package export produces XLSX workbooks from the job history.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/repository"
)

// Service is a tiny façade over the history store that produces XLSX bytes.
type Service struct {
	history repository.HistoryStore
	logger  *slog.Logger
}

func NewService(history repository.HistoryStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{history: history, logger: logger}
}

// HistoryXLSX returns an XLSX workbook (as bytes) of the newest limit history
// records; limit 0 exports everything.
func (s *Service) HistoryXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	recs, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Clips"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Started",
		"URL",
		"Title",
		"Format",
		"Mode",
		"Outcome",
		"Error Code",
		"Duration (s)",
		"Items",
		"Chunks",
		"Translated",
		"Artifact",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		if !r.StartedAt.IsZero() {
			write(1, r.StartedAt.UTC().Format("2006-01-02 15:04:05"))
		} else {
			write(1, "")
		}
		write(2, r.URL)
		write(3, truncate(r.Title, 140))
		write(4, string(r.Format))
		write(5, string(r.Mode))
		write(6, outcomeLabel(r.Outcome))
		write(7, r.ErrorCode)
		write(8, fmt.Sprintf("%.1f", r.Duration.Seconds()))
		write(9, r.ItemCount)
		write(10, r.ChunkCount)
		if r.Translated {
			write(11, "yes")
		} else {
			write(11, "no")
		}
		write(12, r.Artifact)

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 20) // started
	_ = f.SetColWidth(sheet, "B", "B", 48) // url
	_ = f.SetColWidth(sheet, "C", "C", 40) // title
	_ = f.SetColWidth(sheet, "D", "F", 12) // format/mode/outcome
	_ = f.SetColWidth(sheet, "G", "G", 18) // error code
	_ = f.SetColWidth(sheet, "H", "K", 12) // stats
	_ = f.SetColWidth(sheet, "L", "L", 60) // artifact path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// outcomeLabel folds the terminal stage into a friendlier word.
func outcomeLabel(stage constants.JobStage) string {
	switch stage {
	case constants.StageComplete:
		return "complete"
	case constants.StageCancelled:
		return "cancelled"
	case constants.StageError:
		return "error"
	}
	return string(stage)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
