package constants

import "strings"

// OutputFormat identifies a document generator.
type OutputFormat string

const (
	FormatMarkdown OutputFormat = "markdown"
	FormatEPUB     OutputFormat = "epub"
	FormatFB2      OutputFormat = "fb2"
	FormatPDF      OutputFormat = "pdf"
	FormatAudio    OutputFormat = "audio"
)

// OutputFormats holds every format the request surface accepts. Whether a
// generator is actually registered for it is checked separately.
var OutputFormats = []OutputFormat{
	FormatMarkdown,
	FormatEPUB,
	FormatFB2,
	FormatPDF,
	FormatAudio,
}

// CanonicalFormat maps user input (including common aliases) onto an
// OutputFormat. The second return is false when the input is unknown.
func CanonicalFormat(input string) (OutputFormat, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]OutputFormat{
		"md":          FormatMarkdown,
		"mdown":       FormatMarkdown,
		"epub3":       FormatEPUB,
		"fictionbook": FormatFB2,
		"fb2.zip":     FormatFB2,
		"mp3":         FormatAudio,
		"tts":         FormatAudio,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, true
	}

	for _, f := range OutputFormats {
		if normalized == string(f) {
			return f, true
		}
	}
	return "", false
}
