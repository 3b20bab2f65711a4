// Package metrics defines the observability hooks the pipeline emits into.
// Components take a Recorder by injection; NoopRecorder is the default so
// metrics stay optional.
package metrics

import "time"

// Outcome labels recorded per finished job.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Selector cache event labels.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheStore      = "store"
	CacheInvalidate = "invalidate"
)

// LLM call kind labels.
const (
	CallSelectorInference = "selector_inference"
	CallExtraction        = "extraction"
	CallTranslation       = "translation"
	CallSummary           = "summary"
)

// Recorder receives pipeline events. Implementations must tolerate being
// called from multiple goroutines.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveJobDuration(d time.Duration)
	IncJobOutcome(outcome string)
	IncLLMCall(kind string, success bool)
	IncRetry(stage string)
	IncSelectorCache(event string)
	IncArtifact(format string)
	SetJobActive(active bool)
}

// NoopRecorder is the Recorder used when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveJobDuration(time.Duration)           {}
func (NoopRecorder) IncJobOutcome(string)                       {}
func (NoopRecorder) IncLLMCall(string, bool)                    {}
func (NoopRecorder) IncRetry(string)                            {}
func (NoopRecorder) IncSelectorCache(string)                    {}
func (NoopRecorder) IncArtifact(string)                         {}
func (NoopRecorder) SetJobActive(bool)                          {}
