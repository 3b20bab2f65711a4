package selectors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclip-dev/webclip/internal/entity"
)

// memStore keeps entries in a map and can be told to fail, so the cache's
// degrade-to-miss behavior is observable without a database.
type memStore struct {
	entries map[string]*entity.SelectorEntry
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]*entity.SelectorEntry{}}
}

func (m *memStore) Get(_ context.Context, key string) (*entity.SelectorEntry, error) {
	if m.failAll {
		return nil, errors.New("store down")
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) Put(_ context.Context, entry entity.SelectorEntry) error {
	if m.failAll {
		return errors.New("store down")
	}
	cp := entry
	m.entries[entry.Key] = &cp
	return nil
}

func (m *memStore) MarkSuccess(_ context.Context, key string, at time.Time) error {
	if m.failAll {
		return errors.New("store down")
	}
	if e, ok := m.entries[key]; ok {
		e.SuccessCount++
		e.LastUsed = at
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	if m.failAll {
		return errors.New("store down")
	}
	delete(m.entries, key)
	return nil
}

func (m *memStore) Count(_ context.Context) (int, error) {
	if m.failAll {
		return 0, errors.New("store down")
	}
	return len(m.entries), nil
}

func TestNormalizeKeyCollapsesSiteVariants(t *testing.T) {
	// every spelling of the same site maps to one key
	for _, raw := range []string{
		"https://www.example.com/articles/1",
		"http://example.com/other?id=2",
		"https://EXAMPLE.COM:8443/path",
		"https://www.example.com",
	} {
		assert.Equal(t, "example.com", NormalizeKey(raw), "input %q", raw)
	}

	assert.Equal(t, "blog.example.com", NormalizeKey("https://blog.example.com/post"),
		"subdomains other than www stay distinct")
	assert.Equal(t, "example.com", NormalizeKey("example.com"), "bare host accepted")
}

func TestCacheStoreThenLookupSameSite(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, nil)
	ctx := context.Background()

	set := entity.SelectorSet{Container: "article.post", Exclude: []string{".ads"}}
	cache.Store(ctx, "https://www.example.com/a/1", set)

	got := cache.Lookup(ctx, "http://example.com/a/2")
	require.NotNil(t, got, "different page, same site, must hit")
	assert.Equal(t, "article.post", got.Selectors.Container)
	assert.Equal(t, []string{".ads"}, got.Selectors.Exclude)
	assert.Equal(t, 1, cache.Size(ctx))
}

func TestCacheEntriesHaveNoExpiry(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, nil)
	ctx := context.Background()

	cache.now = func() time.Time { return time.Now().Add(-14 * 24 * time.Hour) }
	cache.Store(ctx, "https://example.com/old", entity.SelectorSet{Container: "main"})

	cache.now = time.Now
	got := cache.Lookup(ctx, "https://example.com/new")
	require.NotNil(t, got, "a two-week-old entry is still served; only failure invalidates")
	assert.Equal(t, "main", got.Selectors.Container)
}

func TestCacheInvalidateRemovesOnlyThatSite(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, nil)
	ctx := context.Background()

	cache.Store(ctx, "https://alpha.test/a", entity.SelectorSet{Container: "#a"})
	cache.Store(ctx, "https://beta.test/b", entity.SelectorSet{Container: "#b"})
	require.Equal(t, 2, cache.Size(ctx))

	cache.Invalidate(ctx, "https://www.alpha.test/whatever")

	assert.Nil(t, cache.Lookup(ctx, "https://alpha.test/a"))
	assert.NotNil(t, cache.Lookup(ctx, "https://beta.test/b"))
	assert.Equal(t, 1, cache.Size(ctx))
}

func TestCacheMarkSuccessBumpsCounter(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, nil)
	ctx := context.Background()

	cache.Store(ctx, "https://example.com/a", entity.SelectorSet{Container: "main"})
	cache.MarkSuccess(ctx, "https://example.com/b")
	cache.MarkSuccess(ctx, "https://example.com/c")

	got := cache.Lookup(ctx, "https://example.com/d")
	require.NotNil(t, got)
	assert.Equal(t, 2, got.SuccessCount)
}

func TestCacheDegradesWhenStoreFails(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, nil)
	ctx := context.Background()

	cache.Store(ctx, "https://example.com/a", entity.SelectorSet{Container: "main"})
	store.failAll = true

	// reads become misses, writes become no-ops; nothing panics or errors out
	assert.Nil(t, cache.Lookup(ctx, "https://example.com/a"))
	cache.Store(ctx, "https://example.com/b", entity.SelectorSet{Container: "div"})
	cache.MarkSuccess(ctx, "https://example.com/a")
	cache.Invalidate(ctx, "https://example.com/a")
	assert.Equal(t, -1, cache.Size(ctx))

	store.failAll = false
	require.NotNil(t, cache.Lookup(ctx, "https://example.com/a"),
		"entry survived the failed invalidate; reactive deletion is best-effort")
}

func TestCacheIgnoresUnusableInputs(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, nil)
	ctx := context.Background()

	cache.Store(ctx, "", entity.SelectorSet{Container: "main"})
	cache.Store(ctx, "https://example.com/a", entity.SelectorSet{}) // empty set
	assert.Equal(t, 0, cache.Size(ctx))
	assert.Nil(t, cache.Lookup(ctx, ""))
}
