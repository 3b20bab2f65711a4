package selectors

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/repository"
)

// Cache is the learned-selector layer in front of the durable store. Entries
// never expire on their own; they are invalidated the moment an extraction
// built on them fails. Storage trouble never breaks a job: a failed read is a
// miss, a failed write is a log line.
type Cache struct {
	store repository.SelectorStore
	log   *slog.Logger
	now   func() time.Time
}

func NewCache(store repository.SelectorStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, log: logger, now: time.Now}
}

// NormalizeKey reduces a page URL to its site identity: lowercase host with
// any "www." prefix and port stripped. Scheme, path, and query never
// participate, so every page of a site shares one cache entry.
func NormalizeKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		// not parseable as a URL; treat the raw input as a host
		return normalizeHost(strings.TrimSpace(rawURL))
	}
	return normalizeHost(u.Host)
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}

// Lookup returns the cached selector set for the page's site, or nil on a
// miss. Read failures degrade to a miss so the caller falls through to
// inference.
func (c *Cache) Lookup(ctx context.Context, pageURL string) *entity.SelectorEntry {
	key := NormalizeKey(pageURL)
	if key == "" {
		return nil
	}
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("selectors.lookup_failed", "site_key", key, "error", err)
		return nil
	}
	if entry == nil {
		c.log.Debug("selectors.miss", "site_key", key)
		return nil
	}
	c.log.Debug("selectors.hit", "site_key", key, "success_count", entry.SuccessCount)
	return entry
}

// Store records a freshly inferred selector set for the page's site,
// replacing whatever was there.
func (c *Cache) Store(ctx context.Context, pageURL string, set entity.SelectorSet) {
	key := NormalizeKey(pageURL)
	if key == "" || set.Empty() {
		return
	}
	now := c.now()
	err := c.store.Put(ctx, entity.SelectorEntry{
		Key:       key,
		Selectors: set,
		CreatedAt: now,
		LastUsed:  now,
	})
	if err != nil {
		c.log.Warn("selectors.store_failed", "site_key", key, "error", err)
		return
	}
	c.log.Info("selectors.stored", "site_key", key, "container", set.Container)
}

// MarkSuccess bumps the entry's success counter after an extraction built on
// it produced content.
func (c *Cache) MarkSuccess(ctx context.Context, pageURL string) {
	key := NormalizeKey(pageURL)
	if key == "" {
		return
	}
	if err := c.store.MarkSuccess(ctx, key, c.now()); err != nil {
		c.log.Warn("selectors.mark_success_failed", "site_key", key, "error", err)
	}
}

// Invalidate drops the entry for the page's site. Called when selectors that
// used to work produced an empty or failed extraction; the next job against
// this site re-infers from scratch.
func (c *Cache) Invalidate(ctx context.Context, pageURL string) {
	key := NormalizeKey(pageURL)
	if key == "" {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn("selectors.invalidate_failed", "site_key", key, "error", err)
		return
	}
	c.log.Info("selectors.invalidated", "site_key", key)
}

// Size reports how many sites have cached selectors; -1 when the store cannot
// say.
func (c *Cache) Size(ctx context.Context) int {
	n, err := c.store.Count(ctx)
	if err != nil {
		c.log.Warn("selectors.count_failed", "error", err)
		return -1
	}
	return n
}
