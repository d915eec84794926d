package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBucket 單機版, 每個 key 一個 bucket, 在 Allow 時才補 token
type TokenBucket struct {
	LimiterConfig
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     func() time.Time
}

func NewTokenBucket(config LimiterConfig) *TokenBucket {
	return &TokenBucket{
		LimiterConfig: config,
		buckets:       make(map[string]*bucketState),
		now:           time.Now,
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucketState{tokens: float64(t.Capacity), lastRefill: now}
		t.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(t.Capacity), b.tokens+elapsed*t.RatePS)
		b.lastRefill = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
