// Package ratelimit implements a per-client fixed-window request limiter.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// StaleAfter removes clients idle for longer than this.
	StaleAfter time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 600,
		CleanupInterval:   5 * time.Minute,
		StaleAfter:        10 * time.Minute,
	}
}

type client struct {
	windowStart time.Time
	lastSeen    time.Time
	requests    int
}

// Limiter allows RequestsPerMinute requests per client per minute window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   int
	stale   time.Duration
	now     func() time.Time

	allowed atomic.Int64
	limited atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts its cleanup loop. Call Stop to
// release it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	l := &Limiter{
		clients: make(map[string]*client),
		limit:   cfg.RequestsPerMinute,
		stale:   cfg.StaleAfter,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop(cfg.CleanupInterval)
	return l
}

// Allow records a request from key and reports whether it is within limits,
// plus how long until the client's window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok || now.Sub(c.windowStart) >= window {
		c = &client{windowStart: now}
		l.clients[key] = c
	}
	c.lastSeen = now
	c.requests++

	reset := c.windowStart.Add(window).Sub(now)
	if c.requests > l.limit {
		l.limited.Add(1)
		return false, reset
	}
	l.allowed.Add(1)
	return true, reset
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.cleanup(); n > 0 {
				slog.Debug("Rate limiter entries expired", "component", "rate_limit", "removed", n)
			}
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.stale)
	removed := 0
	for k, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, k)
			removed++
		}
	}
	return removed
}

// Stop ends the cleanup loop. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	Allowed int64 `json:"allowed"`
	Limited int64 `json:"limited"`
	Clients int   `json:"clients"`
}

// Metrics returns a snapshot of the limiter counters.
func (l *Limiter) Metrics() Metrics {
	l.mu.Lock()
	n := len(l.clients)
	l.mu.Unlock()
	return Metrics{Allowed: l.allowed.Load(), Limited: l.limited.Load(), Clients: n}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
// keyFunc maps a request to its client key, usually the client IP.
func (l *Limiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			ok, reset := l.Allow(key)
			if !ok {
				secs := int(math.Ceil(reset.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"component", "rate_limit", "client_ip", key, "path", r.URL.Path)
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
