package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/webclip-dev/webclip/constants"
)

// HistoryRecord is the per-job stats row persisted at finalization.
type HistoryRecord struct {
	JobID      uuid.UUID                 `json:"job_id"`
	URL        string                    `json:"url"`
	Title      string                    `json:"title,omitempty"`
	Format     constants.OutputFormat    `json:"format"`
	Mode       constants.AcquisitionMode `json:"mode"`
	Outcome    constants.JobStage        `json:"outcome"` // COMPLETE, CANCELLED or ERROR
	ErrorCode  string                    `json:"error_code,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Duration   time.Duration             `json:"duration"`
	ItemCount  int                       `json:"item_count"`
	ChunkCount int                       `json:"chunk_count"`
	Translated bool                      `json:"translated"`
	Artifact   string                    `json:"artifact,omitempty"`
}
