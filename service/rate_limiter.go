package service

import (
	"context"
	"sync"
	"time"

	"lockbank/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures one operation class's token bucket shape.
type RateLimiterConfig struct {
	Capacity int        // bucket capacity C
	Refill   rate.Limit // refill rate R in tokens per second
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter is token-bucket admission control per (subject, operation
// class). Refill is computed lazily by the limiter from elapsed wall-clock
// time; no background timer is involved in admission. Buckets are derived
// state: an evicted bucket is recreated full, which only ever errs in the
// caller's favor.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	classes map[models.OperationClass]RateLimiterConfig
	idleTTL time.Duration
}

// NewRateLimiter creates a rate limiter with per-class bucket shapes
func NewRateLimiter(classes map[models.OperationClass]RateLimiterConfig, idleTTL time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		classes: classes,
		idleTTL: idleTTL,
	}
}

// Allow takes cost tokens from the (subject, class) bucket. On deficit it
// returns *models.RateLimitedError carrying the wait computed from the
// deficit and refill rate; the reservation is cancelled so the failed
// attempt does not consume tokens.
func (rl *TokenBucketLimiter) Allow(subject string, class models.OperationClass, cost int) error {
	cfg, ok := rl.classes[class]
	if !ok {
		// Unconfigured classes are not limited
		return nil
	}

	b := rl.getBucket(subject, class, cfg)

	reservation := b.limiter.ReserveN(time.Now(), cost)
	if !reservation.OK() {
		// Cost exceeds bucket capacity; can never succeed
		return &models.RateLimitedError{RetryAfter: time.Duration(float64(cost) / float64(cfg.Refill) * float64(time.Second))}
	}

	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return &models.RateLimitedError{RetryAfter: delay}
	}

	return nil
}

func (rl *TokenBucketLimiter) getBucket(subject string, class models.OperationClass, cfg RateLimiterConfig) *bucket {
	key := subject + "/" + string(class)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(cfg.Refill, cfg.Capacity)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b
}

// StartCleanup evicts idle buckets periodically until ctx is cancelled
func (rl *TokenBucketLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *TokenBucketLimiter) evictIdle() {
	cutoff := time.Now().Add(-rl.idleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			evicted++
		}
	}
	if evicted > 0 {
		log.WithField("evicted", evicted).Debug("Evicted idle rate limit buckets")
	}
}
