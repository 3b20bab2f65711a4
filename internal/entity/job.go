package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/webclip-dev/webclip/constants"
)

// ClipRequest carries everything needed to start a clip job.
type ClipRequest struct {
	// URL of the page. Required unless HTML is supplied inline.
	URL string `json:"url"`
	// HTML is pre-captured page markup. When set, no fetch happens.
	HTML string `json:"html,omitempty"`
	// Format selects the document generator.
	Format constants.OutputFormat `json:"format"`
	// Mode selects the content-acquisition strategy. Empty means auto.
	Mode constants.AcquisitionMode `json:"mode,omitempty"`
	// Language is a BCP 47 tag. Empty disables translation.
	Language string `json:"language,omitempty"`
	// IncludeSummary asks for a best-effort abstract.
	IncludeSummary bool `json:"include_summary,omitempty"`
	// TranslateImages extends translation to image alt text and captions.
	TranslateImages bool `json:"translate_images,omitempty"`
}

// JobError is the normalized {code, message} pair recorded on a failed job.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClipResult is the extracted (and possibly translated) page content.
type ClipResult struct {
	Title       string        `json:"title,omitempty"`
	Author      string        `json:"author,omitempty"`
	PublishedAt string        `json:"published_at,omitempty"`
	SiteName    string        `json:"site_name,omitempty"`
	Language    string        `json:"language,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Items       []ContentItem `json:"items"`
	// ArtifactPath is set once generation wrote the output document.
	ArtifactPath string `json:"artifact_path,omitempty"`
	// ChunkCount records how many chunks AI extraction processed (0 when the
	// selector or heuristic path produced the result).
	ChunkCount int `json:"chunk_count,omitempty"`
}

// Job is the single active clip task. At most one Job is non-terminal at any
// time; it is mutated only through the state machine.
type Job struct {
	ID         uuid.UUID          `json:"id"`
	Request    ClipRequest        `json:"request"`
	Stage      constants.JobStage `json:"stage"`
	Status     string             `json:"status"`
	Progress   int                `json:"progress"`
	StartedAt  time.Time          `json:"started_at"`
	LastUpdate time.Time          `json:"last_update"`
	Cancelled  bool               `json:"cancelled"`
	Error      *JobError          `json:"error,omitempty"`
	Result     *ClipResult        `json:"result,omitempty"`
}

// Clone returns a value copy safe to hand to observers. Result and Error are
// shared pointers; observers treat them as read-only.
func (j *Job) Clone() Job {
	return *j
}
