package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopsense/core/internal/pkg/kvstore"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "ai_summary_"

// CacheEntry is a stored summary and its generation metadata.
type CacheEntry struct {
	Summary    string    `json:"summary"`
	APIUsed    APIUsed   `json:"api_used"`
	Lang       string    `json:"lang"`
	TTFBMs     int64     `json:"ttfb_ms"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Cache is the time-bounded summary store. Entries older than the TTL
// are treated as absent and lazily evicted on read; there is no
// background sweep. Storage errors never propagate: a failed read
// behaves like a miss, a failed write is logged.
type Cache struct {
	kv     kvstore.Store
	ttl    time.Duration
	logger *zap.Logger
	nowFn  func() time.Time
}

func NewCache(kv kvstore.Store, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{kv: kv, ttl: ttl, logger: logger, nowFn: time.Now}
}

// SetNowFunc overrides the clock. Test hook.
func (c *Cache) SetNowFunc(fn func() time.Time) { c.nowFn = fn }

// Fingerprint derives the cache key from host, product identifier and
// resolved language.
func Fingerprint(host, productKey, lang string) string {
	h := sha256.Sum256([]byte(host + "::" + productKey + "::" + lang))
	return fmt.Sprintf("%x", h)
}

// Get returns the live entry for the fingerprint, if any. An expired
// entry is deleted and reported absent.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*CacheEntry, bool) {
	key := cacheKeyPrefix + fingerprint
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		c.warn("cache read failed", fingerprint, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.warn("cache entry corrupt, evicting", fingerprint, err)
		_ = c.kv.Delete(ctx, key)
		return nil, false
	}

	if c.nowFn().Sub(entry.CreatedAt) >= c.ttl {
		if err := c.kv.Delete(ctx, key); err != nil {
			c.warn("cache eviction failed", fingerprint, err)
		}
		return nil, false
	}
	return &entry, true
}

// Set stores the entry, overwriting any prior one with a fresh
// timestamp. The store-side TTL is a safety net; the explicit CreatedAt
// check in Get governs.
func (c *Cache) Set(ctx context.Context, fingerprint string, entry CacheEntry) {
	entry.CreatedAt = c.nowFn()
	data, err := json.Marshal(entry)
	if err != nil {
		c.warn("cache entry marshal failed", fingerprint, err)
		return
	}
	if err := c.kv.Set(ctx, cacheKeyPrefix+fingerprint, string(data), c.ttl); err != nil {
		c.warn("cache write failed", fingerprint, err)
	}
}

// Clear deletes all cached summaries.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.kv.Keys(ctx, cacheKeyPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) warn(msg, fingerprint string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}
