package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientThrottle is a per-client token bucket mounted in front of the
// gateway. It is deliberately coarse: its job is to keep anonymous
// floods away from the principal resolver, not to enforce the per-route
// quota, which the gateway's sliding window owns.
type clientThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newClientThrottle(rps float64, burst int, sweepEvery time.Duration) *clientThrottle {
	t := &clientThrottle{
		entries: make(map[string]*throttleEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		stop:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go t.janitor(sweepEvery)
	}
	return t
}

func (t *clientThrottle) allow(clientAddr string) bool {
	now := time.Now()

	t.mu.Lock()
	entry, ok := t.entries[clientAddr]
	if !ok {
		entry = &throttleEntry{lim: rate.NewLimiter(t.rps, t.burst)}
		t.entries[clientAddr] = entry
	}
	entry.lastSeen = now
	t.mu.Unlock()

	return entry.lim.Allow()
}

func (t *clientThrottle) sweep() {
	cutoff := time.Now().Add(-t.idleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, entry := range t.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(t.entries, key)
		}
	}
}

func (t *clientThrottle) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *clientThrottle) close() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *clientThrottle) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			writeErrorCode(c, http.StatusTooManyRequests, "THROTTLED", "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
