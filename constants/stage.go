package constants

// JobStage is the canonical pipeline stage recorded on a job and its checkpoints.
type JobStage string

// Stable values (these exact strings are persisted in checkpoints).
const (
	StageIdle        JobStage = "IDLE"        // no active job
	StageAnalyzing   JobStage = "ANALYZING"   // request accepted, page being prepared
	StageExtracting  JobStage = "EXTRACTING"  // content acquisition in progress
	StageTranslating JobStage = "TRANSLATING" // optional translation pass
	StageGenerating  JobStage = "GENERATING"  // document generation in progress
	StageComplete    JobStage = "COMPLETE"    // terminal success
	StageCancelled   JobStage = "CANCELLED"   // terminal, user-requested stop
	StageError       JobStage = "ERROR"       // terminal failure
)

// Terminal reports whether the stage ends a job's lifecycle. Idle counts as
// terminal: a machine in Idle accepts the next Start.
func (s JobStage) Terminal() bool {
	switch s {
	case StageIdle, StageComplete, StageCancelled, StageError:
		return true
	}
	return false
}

// Active is the complement of Terminal for readability at call sites.
func (s JobStage) Active() bool {
	return !s.Terminal()
}
