package config

import (
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	ErrNoBrokers = errors.New("kafka brokers is empty")
	ErrNoTopic   = errors.New("kafka topic is empty")
)

// Config represents the configuration for Kafka producer
type Config struct {
	// Broker 配置
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	// 生產者配置
	RequiredAcks int           `yaml:"required_acks"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// 重試
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	RetryFactor   int           `yaml:"retry_factor"`

	// 分區策略, 沒設定用 LeastBytes
	Balancer kafka.Balancer `yaml:"-"`
}

func (c *Config) GetBalancer() kafka.Balancer {
	if c.Balancer != nil {
		return c.Balancer
	}
	return &kafka.LeastBytes{}
}

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.Topic == "" {
		return ErrNoTopic
	}
	return nil
}

// DefaultConfig returns a Config with default settings
func DefaultConfig() *Config {
	return &Config{
		RequiredAcks:  -1, // 等待所有副本確認
		BatchSize:     100,
		BatchTimeout:  10 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    200 * time.Millisecond,
		RetryFactor:   2,
	}
}
