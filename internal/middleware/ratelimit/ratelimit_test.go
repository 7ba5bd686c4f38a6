package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, limit int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(Config{RequestsPerMinute: limit, CleanupInterval: time.Hour, StaleAfter: 5 * time.Minute})
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestAllowWithinWindow(t *testing.T) {
	l, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("10.0.0.1")
		assert.True(t, ok, "request %d", i+1)
	}
	ok, reset := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, reset)

	// other clients have their own budget
	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok, "new window")

	m := l.Metrics()
	assert.EqualValues(t, 5, m.Allowed)
	assert.EqualValues(t, 1, m.Limited)
	assert.Equal(t, 2, m.Clients)
}

func TestCleanupRemovesStaleClients(t *testing.T) {
	l, clock := newTestLimiter(t, 10)
	l.Allow("a")
	clock.Advance(3 * time.Minute)
	l.Allow("b")
	clock.Advance(3 * time.Minute)

	assert.Equal(t, 1, l.cleanup())
	assert.Equal(t, 1, l.Metrics().Clients)
}

func TestMiddlewareSetsRetryAfter(t *testing.T) {
	l, clock := newTestLimiter(t, 1)
	h := l.Middleware(func(r *http.Request) string { return "k" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/views", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	clock.Advance(20 * time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/views", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "40", rec.Header().Get("Retry-After"))
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(Config{})
	l.Stop()
	l.Stop()
}
