package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerSecond float64
	Burst             int
	// IdleTTL evicts limiters of clients not seen for this long
	IdleTTL time.Duration
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
		IdleTTL:           10 * time.Minute,
	}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key
type RateLimiter struct {
	config  Config
	now     func() time.Time
	clients map[string]*clientLimiter
	mutex   sync.Mutex
}

// NewRateLimiter creates an in-memory rate limiter
func NewRateLimiter(config Config) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultConfig().IdleTTL
	}
	return &RateLimiter{
		config:  config,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow consumes one token for key
func (rl *RateLimiter) Allow(key string) *Result {
	now := rl.now()

	rl.mutex.Lock()
	cl, exists := rl.clients[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	rl.mutex.Unlock()

	allowed := cl.limiter.AllowN(now, 1)
	tokens := cl.limiter.TokensAt(now)

	result := &Result{
		Allowed:   allowed,
		Limit:     rl.config.Burst,
		Remaining: max(0, int(math.Floor(tokens))),
		ResetAt:   now.Add(rl.refillTime(float64(rl.config.Burst) - tokens)),
	}
	if !allowed {
		result.RetryAfter = rl.refillTime(1 - tokens)
	}
	return result
}

// refillTime is how long the bucket needs to gain n tokens
func (rl *RateLimiter) refillTime(n float64) time.Duration {
	if n <= 0 || rl.config.RequestsPerSecond <= 0 {
		return 0
	}
	return time.Duration(n / rl.config.RequestsPerSecond * float64(time.Second))
}

// Cleanup evicts clients idle for longer than IdleTTL and returns how many were removed
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.now().Add(-rl.config.IdleTTL)

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Run evicts idle clients every IdleTTL until ctx is cancelled
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.config.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := rl.Cleanup(); removed > 0 {
				slog.Debug("Evicted idle rate limiters", "count", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mutex.Lock()
	clients := len(rl.clients)
	rl.mutex.Unlock()

	return map[string]interface{}{
		"clients":             clients,
		"requests_per_second": rl.config.RequestsPerSecond,
		"burst":               rl.config.Burst,
	}
}
