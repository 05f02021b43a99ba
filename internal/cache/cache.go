// Package cache is the process-wide key/value store with TTL and explicit
// invalidation. Redis is the primary backend; when redis is unconfigured or
// a call fails, the manager degrades to an in-process map so a cache outage
// surfaces as misses, never as request failures.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"vita-api/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type entry struct {
	value     []byte
	expiresAt time.Time
	version   uint64
}

type Manager struct {
	redis *redis.Client // nil means memory-only
	log   *zap.SugaredLogger

	mu      sync.RWMutex
	entries map[string]entry

	now func() time.Time

	sweepPeriod time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

func New(redisClient *redis.Client, log *zap.SugaredLogger, sweepPeriod time.Duration) *Manager {
	m := &Manager{
		redis:       redisClient,
		log:         log,
		entries:     map[string]entry{},
		now:         time.Now,
		sweepPeriod: sweepPeriod,
		done:        make(chan struct{}),
	}
	if sweepPeriod > 0 {
		go m.sweepLoop()
	}
	return m
}

// Get returns the cached value for key. TTL is evaluated at read time, so an
// entry past its expiry is reported as absent even before the sweep runs.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	if m.redis != nil {
		val, err := m.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			metrics.CacheHits.WithLabelValues("redis").Inc()
			return val, true
		case err == redis.Nil:
			metrics.CacheMisses.WithLabelValues("redis").Inc()
		default:
			m.log.Warnw("Redis get failed, degrading to memory", "key", key, "error", err)
			metrics.CacheMisses.WithLabelValues("redis").Inc()
		}
	}

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expiresAt) {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("memory").Inc()
	return e.value, true
}

func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if m.redis != nil {
		if err := m.redis.Set(ctx, key, value, ttl).Err(); err == nil {
			return
		} else {
			m.log.Warnw("Redis set failed, degrading to memory", "key", key, "error", err)
		}
	}

	m.mu.Lock()
	old := m.entries[key]
	m.entries[key] = entry{
		value:     value,
		expiresAt: m.now().Add(ttl),
		version:   old.version + 1,
	}
	m.mu.Unlock()
}

// Invalidate removes keys from every backend. Entity writers call this
// synchronously before their write is considered complete, so derived views
// never outlive the row they were computed from.
func (m *Manager) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if m.redis != nil {
		if err := m.redis.Del(ctx, keys...).Err(); err != nil {
			m.log.Warnw("Redis delete failed", "keys", keys, "error", err)
		}
	}
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
}

func (m *Manager) InvalidatePrefix(ctx context.Context, prefix string) {
	if m.redis != nil {
		iter := m.redis.Scan(ctx, 0, prefix+"*", 0).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			m.log.Warnw("Redis scan failed", "prefix", prefix, "error", err)
		}
		if len(keys) > 0 {
			if err := m.redis.Del(ctx, keys...).Err(); err != nil {
				m.log.Warnw("Redis delete failed", "prefix", prefix, "error", err)
			}
		}
	}

	m.mu.Lock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

// GetJSON unmarshals a cached value into out. Undecodable entries are
// dropped and reported as misses.
func (m *Manager) GetJSON(ctx context.Context, key string, out any) bool {
	raw, ok := m.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		m.log.Errorw("Error unmarshalling cache entry, dropping", "key", key, "error", err)
		m.Invalidate(ctx, key)
		return false
	}
	return true
}

func (m *Manager) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		m.log.Errorw("Error marshalling cache value", "key", key, "error", err)
		return
	}
	m.Set(ctx, key, raw, ttl)
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep reclaims memory from expired entries. Correctness never depends on
// it, reads already treat expired entries as absent.
func (m *Manager) sweep() {
	now := m.now()
	m.mu.Lock()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}
