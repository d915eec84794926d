package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type LimiterConfig struct {
	// Capacity bucket 大小或每個視窗允許的請求數
	Capacity int
	// RatePS token/秒, 只有 token bucket 使用
	RatePS float64
	// Window 視窗長度, 只有 sliding window 使用
	Window time.Duration
}

func GetDefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Capacity: 100,
		RatePS:   1,
		Window:   time.Second,
	}
}

// Limiter 以 key 區分不同來源 (user, ip)
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type RateLimitType string

var (
	TokenBucketType = RateLimitType("token_bucket")
	SlideWindowType = RateLimitType("slide_window")
	RedisBucket     = RateLimitType("redis_bucket")
)

// NewLimiter redis bucket 需要 client, 其他類型 client 可為 nil
func NewLimiter(rateLimitType RateLimitType, config LimiterConfig, client redis.Scripter) (Limiter, error) {
	switch rateLimitType {
	case TokenBucketType:
		return NewTokenBucket(config), nil
	case SlideWindowType:
		return NewSlideWindow(config), nil
	case RedisBucket:
		if client == nil {
			return nil, fmt.Errorf("rate limit type %s requires redis client", rateLimitType)
		}
		return NewRsTokenBucket(client, config), nil
	default:
		return nil, fmt.Errorf("invalid rate limit type %q", rateLimitType)
	}
}
