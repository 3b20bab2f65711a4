package constants

import "strings"

// AcquisitionMode selects the content-acquisition strategy for a job.
type AcquisitionMode string

const (
	// ModeAuto tries cached/inferred selectors first and falls back to
	// chunked AI extraction when the selector path fails.
	ModeAuto AcquisitionMode = "auto"
	// ModeSelector uses the selector cache plus one-shot selector inference.
	ModeSelector AcquisitionMode = "selector"
	// ModeAI sends the page content through chunked AI extraction directly.
	ModeAI AcquisitionMode = "ai"
	// ModeHeuristic never calls the AI provider; scoring-based DOM walk only.
	ModeHeuristic AcquisitionMode = "heuristic"
)

var AcquisitionModes = []AcquisitionMode{ModeAuto, ModeSelector, ModeAI, ModeHeuristic}

// CanonicalMode normalizes user input to an AcquisitionMode. Empty input
// resolves to ModeAuto.
func CanonicalMode(input string) (AcquisitionMode, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ModeAuto, true
	}
	synonyms := map[string]AcquisitionMode{
		"full-ai":   ModeAI,
		"llm":       ModeAI,
		"selectors": ModeSelector,
		"no-ai":     ModeHeuristic,
		"readable":  ModeHeuristic,
	}
	if m, ok := synonyms[normalized]; ok {
		return m, true
	}
	for _, m := range AcquisitionModes {
		if normalized == string(m) {
			return m, true
		}
	}
	return "", false
}
