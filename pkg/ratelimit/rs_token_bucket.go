package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1])
local lastRefill = tonumber(bucket[2])

if tokens == nil then
	tokens = capacity
	lastRefill = now
end

local elapsed = math.max(0, now - lastRefill) / 1000000000
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('EXPIRE', key, 60)
return allowed
`)

// RsTokenBucket 多個 instance 共用的 token bucket, 狀態放在 redis hash
type RsTokenBucket struct {
	LimiterConfig
	client redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRsTokenBucket(client redis.Scripter, config LimiterConfig) *RsTokenBucket {
	return &RsTokenBucket{
		LimiterConfig: config,
		client:        client,
		prefix:        "ratelimit:",
		now:           time.Now,
	}
}

// Allow redis 失敗時放行, 限流不應該擋住正常下單
func (r *RsTokenBucket) Allow(ctx context.Context, key string) bool {
	result, err := tokenBucketScript.Run(ctx, r.client,
		[]string{r.prefix + key},
		r.Capacity,
		r.RatePS,
		r.now().UnixNano(),
	).Int64()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limiter unavailable, allowing request")
		return true
	}
	return result == 1
}
