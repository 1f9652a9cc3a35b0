package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenReject(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 1, Burst: 3})
	defer rl.Stop()
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "clients have separate buckets")

	frozen = frozen.Add(time.Second)
	assert.True(t, rl.Allow("1.2.3.4"), "one token refilled")

	m := rl.GetMetrics()
	assert.Equal(t, int64(1), m.TotalHits)
	assert.Equal(t, int64(2), m.ClientCount)
}

func TestLimiter_CleanupForgetsIdleClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	defer rl.Stop()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(30 * time.Second)
	rl.Allow("b")
	now = now.Add(45 * time.Second)

	rl.cleanupStaleEntries()
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_Middleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerSecond: 0.5, Burst: 1})
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return r.RemoteAddr }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}
