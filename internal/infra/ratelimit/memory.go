package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

const shardCount = 32

var errTooManyKeys = errors.New("rate limiter capacity exceeded")

// MemoryLimiter enforces the same sliding window as the shared store
// against process-local state. Keys are spread over sharded maps so
// unrelated keys do not serialize behind one lock.
type MemoryLimiter struct {
	now      func() time.Time
	perShard int
	shards   [shardCount]*memoryShard

	stop     chan struct{}
	stopOnce sync.Once
}

type memoryShard struct {
	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	entries      []int64
	windowMillis int64
}

type MemoryLimiterConfig struct {
	Now        func() time.Time
	MaxKeys    int
	SweepEvery time.Duration
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	perShard := cfg.MaxKeys / shardCount
	if perShard < 1 {
		perShard = 1
	}
	m := &MemoryLimiter{
		now:      cfg.Now,
		perShard: perShard,
		stop:     make(chan struct{}),
	}
	for i := range m.shards {
		m.shards[i] = &memoryShard{windows: make(map[string]*localWindow)}
	}
	if cfg.SweepEvery > 0 {
		go m.janitor(cfg.SweepEvery)
	}
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if window <= 0 {
		window = time.Second
	}
	now := m.now()
	nowMillis := now.UnixMilli()
	windowMillis := window.Milliseconds()

	shard := m.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	win, ok := shard.windows[key]
	if ok {
		win.entries = pruneEntries(win.entries, nowMillis-windowMillis)
		win.windowMillis = windowMillis
	} else {
		if len(shard.windows) >= m.perShard {
			shard.sweep(nowMillis)
		}
		if len(shard.windows) >= m.perShard {
			return domain.RateLimitDecision{}, errTooManyKeys
		}
		win = &localWindow{windowMillis: windowMillis}
		shard.windows[key] = win
	}

	if len(win.entries) >= limit {
		return domain.RateLimitDecision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    now.Add(window),
			RetryAfter: window,
		}, nil
	}

	win.entries = append(win.entries, nowMillis)
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(win.entries),
		ResetAt:   now.Add(window),
	}, nil
}

// Sweep drops expired entries and empty windows across all shards.
func (m *MemoryLimiter) Sweep() {
	nowMillis := m.now().UnixMilli()
	for _, shard := range m.shards {
		shard.mu.Lock()
		shard.sweep(nowMillis)
		shard.mu.Unlock()
	}
}

// Close stops the background sweeper. The limiter remains usable.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryLimiter) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemoryLimiter) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

func (s *memoryShard) sweep(nowMillis int64) {
	for key, win := range s.windows {
		win.entries = pruneEntries(win.entries, nowMillis-win.windowMillis)
		if len(win.entries) == 0 {
			delete(s.windows, key)
		}
	}
}

func pruneEntries(entries []int64, cutoff int64) []int64 {
	kept := entries[:0]
	for _, ts := range entries {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	return kept
}
