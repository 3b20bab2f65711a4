package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

// Asset is a pre-fetched page resource, keyed in Request.Assets by the image
// src it came from. Generators that embed resources use it; the rest ignore it.
type Asset struct {
	ContentType string
	Data        []byte
}

// Request carries one finished clip into a generator.
type Request struct {
	Result    *entity.ClipResult
	SourceURL string
	// OutputDir receives the artifact; generators create it if needed.
	OutputDir string
	// Assets holds pre-fetched images for formats that embed them. Missing
	// entries degrade to external references or placeholders.
	Assets map[string]Asset
	// OnProgress observes generation progress in percent. May be nil.
	OnProgress func(pct int)
}

// Generator renders a clip result into one output format and returns the path
// of the artifact it wrote.
type Generator interface {
	Format() constants.OutputFormat
	Generate(ctx context.Context, req Request) (string, error)
}

// Registry maps output formats onto their generators. Formats the request
// surface accepts but no generator serves (pdf, audio) fail here at dispatch
// time with a stable error code.
type Registry struct {
	generators map[constants.OutputFormat]Generator
	log        *slog.Logger
}

func NewRegistry(logger *slog.Logger, generators ...Generator) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		generators: make(map[constants.OutputFormat]Generator, len(generators)),
		log:        logger,
	}
	for _, g := range generators {
		r.generators[g.Format()] = g
	}
	return r
}

// Supports reports whether a generator is registered for the format.
func (r *Registry) Supports(format constants.OutputFormat) bool {
	_, ok := r.generators[format]
	return ok
}

// Get returns the generator for the format.
func (r *Registry) Get(format constants.OutputFormat) (Generator, error) {
	g, ok := r.generators[format]
	if !ok {
		return nil, common.NewAppError(common.CodeInvalidRequest,
			fmt.Sprintf("no generator is available for format %q", format), nil)
	}
	return g, nil
}

// Formats lists the registered formats in stable order.
func (r *Registry) Formats() []constants.OutputFormat {
	out := make([]constants.OutputFormat, 0, len(r.generators))
	for f := range r.generators {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// maxSlugLen keeps artifact names comfortably inside filesystem limits.
const maxSlugLen = 64

// artifactName derives a filesystem-safe file name from the clip title.
// Untitled clips fall back to a timestamped name.
func artifactName(title, ext string) string {
	slug := slugify(title)
	if slug == "" {
		slug = "clip-" + time.Now().UTC().Format("20060102-150405")
	}
	return slug + ext
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
