package chunk

import "strings"

// Chunk is one bounded, overlapping slice of oversized input. Start/End are
// byte offsets into the source; Text includes the overlap band shared with
// the next chunk's head.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// SplitOptions tunes the splitter. Zero values fall back to defaults.
type SplitOptions struct {
	// Size is the maximum chunk length in bytes.
	Size int
	// Overlap is the band shared between adjacent chunks.
	Overlap int
	// Tolerance bounds the backward search for a structural boundary.
	Tolerance int
}

const (
	defaultSize      = 60000
	defaultOverlap   = 1000
	defaultTolerance = 2000
)

func (o SplitOptions) withDefaults() SplitOptions {
	if o.Size <= 0 {
		o.Size = defaultSize
	}
	if o.Overlap <= 0 {
		o.Overlap = defaultOverlap
	}
	if o.Overlap >= o.Size {
		o.Overlap = o.Size / 10
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaultTolerance
	}
	return o
}

// Split partitions text into overlapping chunks. Input no longer than the
// chunk size comes back as a single chunk. Before each cut the splitter
// searches backward, within the tolerance, for the nearest closing tag and
// cuts right after it instead of at the raw offset, so an atomic structural
// unit is never bisected. The next window starts Overlap bytes before the
// previous cut.
func Split(text string, opts SplitOptions) []Chunk {
	opts = opts.withDefaults()
	if len(text) <= opts.Size {
		return []Chunk{{Index: 0, Start: 0, End: len(text), Text: text}}
	}

	var chunks []Chunk
	pos := 0
	for pos < len(text) {
		end := pos + opts.Size
		if end >= len(text) {
			end = len(text)
		} else {
			end = boundaryCut(text, pos, end, opts.Tolerance)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: pos,
			End:   end,
			Text:  text[pos:end],
		})
		if end >= len(text) {
			break
		}
		next := end - opts.Overlap
		if next <= pos {
			// Overlap would stall the walk; give up the band for this pair.
			next = end
		}
		pos = next
	}
	return chunks
}

// boundaryCut returns the position right after the nearest closing tag that
// completes within (end-tolerance, end], or end when no such tag exists.
func boundaryCut(text string, start, end, tolerance int) int {
	lo := end - tolerance
	if lo < start+1 {
		lo = start + 1
	}
	if lo >= end {
		return end
	}
	window := text[lo:end]
	for idx := strings.LastIndex(window, "</"); idx >= 0; idx = strings.LastIndex(window[:idx], "</") {
		if gt := strings.IndexByte(window[idx:], '>'); gt >= 0 {
			return lo + idx + gt + 1
		}
	}
	return end
}
