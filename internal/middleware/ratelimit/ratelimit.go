// Package ratelimit throttles requests per client with a token bucket.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per client key
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	hits    int64
	now     func() time.Time
}

type clientInfo struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	IdleTTL           time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}

	rl := &Limiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
		limit:       rate.Limit(config.RequestsPerSecond),
		burst:       config.Burst,
		idleTTL:     config.IdleTTL,
		now:         time.Now,
	}
	go rl.startCleanup(config.CleanupInterval)
	return rl
}

// Allow reports whether the client identified by key may proceed now.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	client, ok := rl.clients[key]
	if !ok {
		client = &clientInfo{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now
	rl.mu.Unlock()

	if client.limiter.AllowN(now, 1) {
		return true
	}
	atomic.AddInt64(&rl.hits, 1)
	return false
}

// retryAfter is the time for one token to refill, rounded up to seconds.
func (rl *Limiter) retryAfter() int {
	secs := int(math.Ceil(1 / float64(rl.limit)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (rl *Limiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries forgets clients idle for longer than the idle TTL
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.hits),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware rejects requests over the limit. onLimit renders the
// rejection; nil falls back to a plain 429.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractKey(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
