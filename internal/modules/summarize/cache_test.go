package summarize

import (
	"context"
	"testing"
	"time"

	"github.com/shopsense/core/internal/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *kvstore.MemoryStore) {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	return NewCache(kv, ttl, nil), kv
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("www.example.com", "B0TEST123", "en")

	assert.Len(t, base, 64)
	assert.Equal(t, base, Fingerprint("www.example.com", "B0TEST123", "en"))

	assert.NotEqual(t, base, Fingerprint("www.other.com", "B0TEST123", "en"))
	assert.NotEqual(t, base, Fingerprint("www.example.com", "B0OTHER00", "en"))
	assert.NotEqual(t, base, Fingerprint("www.example.com", "B0TEST123", "de"))
}

func TestCacheSetGet(t *testing.T) {
	cache, _ := newTestCache(t, 24*time.Hour)
	ctx := context.Background()

	fp := Fingerprint("www.example.com", "sku-1", "en")
	cache.Set(ctx, fp, CacheEntry{Summary: "- durable\n- well reviewed", APIUsed: APISummarizer, Lang: "en"})

	entry, ok := cache.Get(ctx, fp)
	require.True(t, ok)
	assert.Equal(t, "- durable\n- well reviewed", entry.Summary)
	assert.Equal(t, APISummarizer, entry.APIUsed)
	assert.Equal(t, "en", entry.Lang)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t, 24*time.Hour)

	_, ok := cache.Get(context.Background(), Fingerprint("www.example.com", "unknown", "en"))
	assert.False(t, ok)
}

func TestCacheExpiryEvictsLazily(t *testing.T) {
	cache, kv := newTestCache(t, 24*time.Hour)
	ctx := context.Background()

	now := time.Now()
	cache.SetNowFunc(func() time.Time { return now })

	fp := Fingerprint("www.example.com", "sku-1", "en")
	cache.Set(ctx, fp, CacheEntry{Summary: "stale soon"})
	require.Equal(t, 1, kv.Len())

	// Just inside the TTL the entry is still served.
	cache.SetNowFunc(func() time.Time { return now.Add(24*time.Hour - time.Second) })
	_, ok := cache.Get(ctx, fp)
	assert.True(t, ok)

	// At the TTL boundary the entry is reported absent and evicted.
	cache.SetNowFunc(func() time.Time { return now.Add(24 * time.Hour) })
	_, ok = cache.Get(ctx, fp)
	assert.False(t, ok)
	assert.Equal(t, 0, kv.Len())
}

func TestCacheOverwriteRefreshesTimestamp(t *testing.T) {
	cache, _ := newTestCache(t, 24*time.Hour)
	ctx := context.Background()

	now := time.Now()
	cache.SetNowFunc(func() time.Time { return now })

	fp := Fingerprint("www.example.com", "sku-1", "en")
	cache.Set(ctx, fp, CacheEntry{Summary: "first"})

	// A rewrite 23h later restarts the 24h window.
	cache.SetNowFunc(func() time.Time { return now.Add(23 * time.Hour) })
	cache.Set(ctx, fp, CacheEntry{Summary: "second"})

	cache.SetNowFunc(func() time.Time { return now.Add(46 * time.Hour) })
	entry, ok := cache.Get(ctx, fp)
	require.True(t, ok)
	assert.Equal(t, "second", entry.Summary)

	cache.SetNowFunc(func() time.Time { return now.Add(48 * time.Hour) })
	_, ok = cache.Get(ctx, fp)
	assert.False(t, ok)
}

func TestCacheCorruptEntryEvicted(t *testing.T) {
	cache, kv := newTestCache(t, 24*time.Hour)
	ctx := context.Background()

	fp := Fingerprint("www.example.com", "sku-1", "en")
	require.NoError(t, kv.Set(ctx, "ai_summary_"+fp, "{not json", 0))

	_, ok := cache.Get(ctx, fp)
	assert.False(t, ok)
	assert.Equal(t, 0, kv.Len())
}

func TestCacheClear(t *testing.T) {
	cache, kv := newTestCache(t, 24*time.Hour)
	ctx := context.Background()

	cache.Set(ctx, Fingerprint("a.com", "1", "en"), CacheEntry{Summary: "a"})
	cache.Set(ctx, Fingerprint("b.com", "2", "en"), CacheEntry{Summary: "b"})
	// Unrelated keys survive a cache clear.
	require.NoError(t, kv.Set(ctx, "ai_telemetry_x", "{}", 0))

	require.NoError(t, cache.Clear(ctx))
	assert.Equal(t, 1, kv.Len())
}
