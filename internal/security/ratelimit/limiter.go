package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/biportal/internal/infrastructure/redis"
)

// Limiter throttles login attempts per source key (client IP).
type Limiter interface {
	Allow(key string) bool
	Stop()
}

// WindowLimiter is an in-memory sliding-window limiter for
// single-instance deployments.
type WindowLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	cleanup *time.Ticker
	done    chan struct{}
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

// NewWindowLimiter creates an in-memory limiter
func NewWindowLimiter(maxRequests int, window time.Duration) *WindowLimiter {
	limiter := &WindowLimiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		cleanup: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	go limiter.cleanupOldBuckets()
	return limiter
}

// Allow reports whether another request from key fits in the window
func (l *WindowLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{requests: []time.Time{}}
		l.buckets[key] = b
	}

	cutoff := now.Add(-l.window)
	var reqs []time.Time
	for _, t := range b.requests {
		if t.After(cutoff) {
			reqs = append(reqs, t)
		}
	}
	b.requests = reqs
	b.lastSeen = now

	if len(b.requests) >= l.maxReqs {
		return false
	}

	b.requests = append(b.requests, now)
	return true
}

// Stop terminates the background cleanup
func (l *WindowLimiter) Stop() {
	l.cleanup.Stop()
	close(l.done)
}

func (l *WindowLimiter) cleanupOldBuckets() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-2 * l.window)
			for key, b := range l.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// RedisLimiter is a fixed-window limiter backed by shared Redis
// counters so multiple portal instances see the same attempt counts.
type RedisLimiter struct {
	client  *redis.Client
	maxReqs int
	window  time.Duration
	logger  *slog.Logger
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(client *redis.Client, maxRequests int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		client:  client,
		maxReqs: maxRequests,
		window:  window,
		logger:  logger,
	}
}

// Allow increments the shared counter for key. If Redis is down the
// limiter fails open: login availability outranks throttling.
func (l *RedisLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := l.client.IncrWithWindow(ctx, fmt.Sprintf("ratelimit:login:%s", key), l.window)
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	return count <= int64(l.maxReqs)
}

// Stop is a no-op for the Redis limiter
func (l *RedisLimiter) Stop() {}
