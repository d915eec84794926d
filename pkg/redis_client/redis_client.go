package redis_client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	_instances = sync.Map{}
	_mu        sync.Mutex
)

// GetRedisClient 同一個 address 共用同一個 client
func GetRedisClient(address string, options ...Option) (*redis.Client, error) {
	if client, ok := _instances.Load(address); ok {
		return client.(*redis.Client), nil
	}

	_mu.Lock()
	defer _mu.Unlock()
	if client, ok := _instances.Load(address); ok {
		return client.(*redis.Client), nil
	}

	client, err := createRedisClient(address, options...)
	if err != nil {
		return nil, err
	}
	_instances.Store(address, client)
	return client, nil
}

func createRedisClient(address string, options ...Option) (*redis.Client, error) {
	if address == "" {
		return nil, errors.New("redis address is empty")
	}
	opts := &redis.Options{
		Addr: address,
	}

	for _, option := range options {
		option(opts)
	}

	return redis.NewClient(opts), nil
}

// Ping 啟動時確認連線
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// CloseAll 關閉所有 client, shutdown 時呼叫
func CloseAll() error {
	var errs []error
	_instances.Range(func(key, value any) bool {
		if err := value.(*redis.Client).Close(); err != nil {
			errs = append(errs, err)
		}
		_instances.Delete(key)
		return true
	})
	return errors.Join(errs...)
}

type Option func(*redis.Options)

func WithPassword(password string) Option {
	return func(o *redis.Options) {
		o.Password = password
	}
}

func WithDB(db int) Option {
	return func(o *redis.Options) {
		o.DB = db
	}
}

func WithPoolSize(poolSize int) Option {
	return func(o *redis.Options) {
		o.PoolSize = poolSize
	}
}
