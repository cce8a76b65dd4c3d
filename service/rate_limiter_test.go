package service

import (
	"testing"
	"time"

	"lockbank/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testLimiterClasses() map[models.OperationClass]RateLimiterConfig {
	return map[models.OperationClass]RateLimiterConfig{
		models.ClassMutation:   {Capacity: 10, Refill: 2},
		models.ClassTransfer:   {Capacity: 5, Refill: 1},
		models.ClassConversion: {Capacity: 5, Refill: rate.Limit(0.5)},
	}
}

func TestRateLimiter_AllowsUpToCapacity(t *testing.T) {
	rl := NewRateLimiter(testLimiterClasses(), time.Minute)

	for i := 0; i < 5; i++ {
		assert.NoError(t, rl.Allow("acct:1", models.ClassTransfer, 1), "request %d should pass", i+1)
	}

	err := rl.Allow("acct:1", models.ClassTransfer, 1)
	var limited *models.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))
}

func TestRateLimiter_SubjectsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testLimiterClasses(), time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Allow("acct:1", models.ClassTransfer, 1))
	}
	require.Error(t, rl.Allow("acct:1", models.ClassTransfer, 1))

	// A different subject still has a full bucket
	assert.NoError(t, rl.Allow("acct:2", models.ClassTransfer, 1))
}

func TestRateLimiter_ClassesAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testLimiterClasses(), time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Allow("acct:1", models.ClassConversion, 1))
	}
	require.Error(t, rl.Allow("acct:1", models.ClassConversion, 1))

	// Exhausting conversions leaves the mutation bucket untouched
	assert.NoError(t, rl.Allow("acct:1", models.ClassMutation, 1))
}

func TestRateLimiter_DeniedRequestConsumesNoTokens(t *testing.T) {
	rl := NewRateLimiter(map[models.OperationClass]RateLimiterConfig{
		models.ClassTransfer: {Capacity: 1, Refill: rate.Limit(0.001)},
	}, time.Minute)

	require.NoError(t, rl.Allow("acct:1", models.ClassTransfer, 1))

	// With a near-zero refill the retry hint must stay stable across denied
	// attempts; if denials consumed tokens it would grow
	err := rl.Allow("acct:1", models.ClassTransfer, 1)
	var first *models.RateLimitedError
	require.ErrorAs(t, err, &first)

	err = rl.Allow("acct:1", models.ClassTransfer, 1)
	var second *models.RateLimitedError
	require.ErrorAs(t, err, &second)

	assert.InDelta(t, first.RetryAfter.Seconds(), second.RetryAfter.Seconds(), 1.0)
}

func TestRateLimiter_RefillRestoresAdmission(t *testing.T) {
	rl := NewRateLimiter(map[models.OperationClass]RateLimiterConfig{
		models.ClassMutation: {Capacity: 1, Refill: 100},
	}, time.Minute)

	require.NoError(t, rl.Allow("acct:1", models.ClassMutation, 1))
	// At 100 tokens/s the bucket refills within ~10ms
	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, rl.Allow("acct:1", models.ClassMutation, 1))
}

func TestRateLimiter_UnconfiguredClassIsUnlimited(t *testing.T) {
	rl := NewRateLimiter(map[models.OperationClass]RateLimiterConfig{}, time.Minute)

	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Allow("acct:1", models.ClassMutation, 1))
	}
}

func TestRateLimiter_CostAboveCapacityNeverSucceeds(t *testing.T) {
	rl := NewRateLimiter(testLimiterClasses(), time.Minute)

	err := rl.Allow("acct:1", models.ClassTransfer, 50)
	var limited *models.RateLimitedError
	require.ErrorAs(t, err, &limited)
}

func TestRateLimiter_EvictIdleRemovesStaleBuckets(t *testing.T) {
	rl := NewRateLimiter(testLimiterClasses(), 10*time.Millisecond)

	require.NoError(t, rl.Allow("acct:1", models.ClassTransfer, 1))
	rl.mu.Lock()
	require.Len(t, rl.buckets, 1)
	rl.mu.Unlock()

	time.Sleep(25 * time.Millisecond)
	rl.evictIdle()

	rl.mu.Lock()
	assert.Empty(t, rl.buckets)
	rl.mu.Unlock()
}
