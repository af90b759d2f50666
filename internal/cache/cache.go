// Package cache wraps Redis as a best-effort key-value cache. Every failure
// degrades to a miss or a no-op; a broken cache must never fail a request.
package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chaintalk-ai/chaintalk/internal/metrics"
)

// Manager is the shared response/price cache used by the orchestration layer.
type Manager struct {
	client redis.Cmdable

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errors atomic.Int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// New creates a cache manager over an established Redis client.
func New(client redis.Cmdable) *Manager {
	return &Manager{client: client}
}

// Get returns the cached value and whether it was present.
func (m *Manager) Get(ctx context.Context, key string) (string, bool) {
	val, err := m.client.Get(ctx, key).Result()
	if err == redis.Nil {
		m.misses.Add(1)
		metrics.ResponseCacheEventsTotal.WithLabelValues("miss").Inc()
		return "", false
	}
	if err != nil {
		m.errors.Add(1)
		metrics.ResponseCacheEventsTotal.WithLabelValues("error").Inc()
		slog.Warn("cache: get failed", "key", key, "error", err)
		return "", false
	}

	m.hits.Add(1)
	metrics.ResponseCacheEventsTotal.WithLabelValues("hit").Inc()
	return val, true
}

// Set stores a value with an expiry. Returns false if the write failed.
func (m *Manager) Set(ctx context.Context, key, value string, expire time.Duration) bool {
	if err := m.client.SetEx(ctx, key, value, expire).Err(); err != nil {
		m.errors.Add(1)
		metrics.ResponseCacheEventsTotal.WithLabelValues("error").Inc()
		slog.Warn("cache: set failed", "key", key, "error", err)
		return false
	}
	m.sets.Add(1)
	metrics.ResponseCacheEventsTotal.WithLabelValues("set").Inc()
	return true
}

// Delete removes a key. Returns true when a key was actually removed.
func (m *Manager) Delete(ctx context.Context, key string) bool {
	n, err := m.client.Del(ctx, key).Result()
	if err != nil {
		m.errors.Add(1)
		slog.Warn("cache: delete failed", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Exists reports whether a key is present.
func (m *Manager) Exists(ctx context.Context, key string) bool {
	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		m.errors.Add(1)
		return false
	}
	return n > 0
}

// Increment atomically bumps a counter, setting its expiry on first use.
func (m *Manager) Increment(ctx context.Context, key string, expire time.Duration) (int64, bool) {
	pipe := m.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expire)
	if _, err := pipe.Exec(ctx); err != nil {
		m.errors.Add(1)
		slog.Warn("cache: increment failed", "key", key, "error", err)
		return 0, false
	}
	return incr.Val(), true
}

// Stats returns the current counter snapshot.
func (m *Manager) Stats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Sets:   m.sets.Load(),
		Errors: m.errors.Load(),
	}
}

// Healthy pings the underlying Redis connection.
func (m *Manager) Healthy(ctx context.Context) bool {
	return m.client.Ping(ctx).Err() == nil
}
