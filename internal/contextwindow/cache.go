package contextwindow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	selKeyPrefix = "ctxsel:"
	selIndexKey  = "ctxsel:index"

	// keyTailWindow bounds how much history feeds the cache key. A short
	// tail keeps keys cheap and naturally invalidates as the conversation
	// grows; edits to older messages are covered by the TTL only.
	keyTailWindow = 5
)

// CacheEntry is a memoized selection result. Entries are immutable once
// written; a rebuild simply overwrites the slot.
type CacheEntry struct {
	Context    []PromptMessage `json:"context"`
	CreatedAt  int64           `json:"created_at"`
	TokenCount int             `json:"token_count"`
}

// SelectionCache memoizes selection results in Redis with a short TTL and a
// bounded entry count. A sorted-set index keyed by creation time supports
// oldest-first sweeps. Every Redis failure degrades to a cache miss; the
// cache never blocks or fails a request.
type SelectionCache struct {
	client redis.Cmdable

	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
}

// NewSelectionCache creates a cache with the given TTL and entry ceiling.
func NewSelectionCache(client redis.Cmdable, ttl time.Duration, maxEntries int) *SelectionCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &SelectionCache{client: client, ttl: ttl, maxEntries: maxEntries}
}

// SelectionKey derives a stable digest from the last keyTailWindow message
// ids plus the normalized query text.
func SelectionKey(messages []Message, query string) string {
	start := len(messages) - keyTailWindow
	if start < 0 {
		start = 0
	}

	h := sha256.New()
	for _, msg := range messages[start:] {
		io.WriteString(h, msg.ID)
		h.Write([]byte{0})
	}
	io.WriteString(h, strings.ToLower(strings.TrimSpace(query)))
	return hex.EncodeToString(h.Sum(nil))
}

// TTL returns the current time-to-live.
func (c *SelectionCache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// SetTTL adjusts the time-to-live for subsequent writes.
func (c *SelectionCache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// Get returns the entry for key, or false on miss or any Redis error.
func (c *SelectionCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	data, err := c.client.Get(ctx, selKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("context cache: get failed, treating as miss", "error", err)
		}
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// Put stores an entry and enforces the entry ceiling: expired entries are
// purged first, then the oldest by creation time.
func (c *SelectionCache) Put(ctx context.Context, key string, entry CacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	ttl := c.TTL()
	pipe := c.client.Pipeline()
	pipe.Set(ctx, selKeyPrefix+key, data, ttl)
	pipe.ZAdd(ctx, selIndexKey, redis.Z{Score: float64(entry.CreatedAt), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("context cache: put failed", "error", err)
		return
	}

	count, err := c.client.ZCard(ctx, selIndexKey).Result()
	if err != nil || count <= int64(c.maxEntries) {
		return
	}

	c.EvictExpired(ctx)

	count, err = c.client.ZCard(ctx, selIndexKey).Result()
	if err != nil || count <= int64(c.maxEntries) {
		return
	}
	c.evictOldest(ctx, int(count)-c.maxEntries)
}

// EvictExpired removes index entries whose creation time is past the TTL.
// The values themselves expire on their own; this keeps the index honest.
func (c *SelectionCache) EvictExpired(ctx context.Context) {
	cutoff := time.Now().Add(-c.TTL()).Unix()
	max := fmt.Sprintf("%d", cutoff)

	keys, err := c.client.ZRangeByScore(ctx, selIndexKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	c.remove(ctx, keys)
}

func (c *SelectionCache) evictOldest(ctx context.Context, n int) {
	keys, err := c.client.ZRange(ctx, selIndexKey, 0, int64(n-1)).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	c.remove(ctx, keys)
}

func (c *SelectionCache) remove(ctx context.Context, keys []string) {
	pipe := c.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, selKeyPrefix+key)
		pipe.ZRem(ctx, selIndexKey, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("context cache: eviction failed", "error", err)
	}
}

// Len returns the indexed entry count, or 0 on error.
func (c *SelectionCache) Len(ctx context.Context) int {
	count, err := c.client.ZCard(ctx, selIndexKey).Result()
	if err != nil {
		return 0
	}
	return int(count)
}

// Clear drops every cached selection.
func (c *SelectionCache) Clear(ctx context.Context) {
	keys, err := c.client.ZRange(ctx, selIndexKey, 0, -1).Result()
	if err != nil {
		return
	}
	c.remove(ctx, keys)
	c.client.Del(ctx, selIndexKey)
}
