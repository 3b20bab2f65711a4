package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/webclip-dev/webclip/internal/common"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; webclip/1.0; +https://github.com/webclip-dev/webclip)"

// Config for the page fetcher. Zero values take defaults.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64  // hard cap on downloaded page size
	UserAgent string // some sites gate on it
}

// Fetcher downloads pages and binary assets. Page bodies come back as UTF-8
// regardless of the site's declared charset.
type Fetcher struct {
	client *http.Client
	cfg    Config
	log    *slog.Logger
}

func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		log:    logger,
	}
}

// Page downloads pageURL and returns its HTML as UTF-8 plus the final URL
// after redirects. Relative asset URLs must resolve against the final URL,
// not the requested one.
func (f *Fetcher) Page(ctx context.Context, pageURL string) (html string, finalURL string, err error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", common.NewAppError(common.CodeInvalidRequest, "URL is not fetchable: "+err.Error(), err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("%w: fetch page: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	finalURL = pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		f.log.Warn("fetch.page_status", "url", pageURL, "status", resp.StatusCode)
		return "", "", err
	}

	ct := resp.Header.Get("Content-Type")
	if !htmlContentType(ct) {
		return "", "", common.NewAppError(common.CodeInvalidRequest,
			fmt.Sprintf("URL serves %q, not an HTML page", ct), nil)
	}

	// normalize whatever charset the site declares into UTF-8
	reader, err := charset.NewReader(io.LimitReader(resp.Body, f.cfg.MaxBytes+1), ct)
	if err != nil {
		return "", "", fmt.Errorf("prepare charset reader: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		return "", "", fmt.Errorf("%w: read page body: %v", common.ErrTransient, err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return "", "", common.NewAppError(common.CodeInvalidRequest,
			fmt.Sprintf("page exceeds the %d byte limit", f.cfg.MaxBytes), nil)
	}

	f.log.Info("fetch.page_ok",
		"url", pageURL,
		"final_url", finalURL,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return string(body), finalURL, nil
}

// Binary downloads an asset (images, mostly) and returns its bytes and
// content type. The same size cap applies.
func (f *Fetcher) Binary(ctx context.Context, assetURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build asset request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("%w: fetch asset: %v", common.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read asset body: %v", common.ErrTransient, err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, "", fmt.Errorf("asset exceeds the %d byte limit", f.cfg.MaxBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// classifyStatus maps a page status onto the error taxonomy: 5xx and 429 are
// transient (the retry executor may try again), other non-2xx are final.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 500 || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: site returned status %d", common.ErrTransient, status)
	default:
		return common.NewAppError(common.CodeUpstreamError,
			fmt.Sprintf("site returned status %d", status), nil)
	}
}

func htmlContentType(ct string) bool {
	if ct == "" {
		// no declaration; assume HTML and let extraction decide
		return true
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	switch mt {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	}
	return false
}
