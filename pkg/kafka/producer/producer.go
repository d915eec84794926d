package producer

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/RoyceAzure/lab/storefront/pkg/kafka/config"
	"github.com/RoyceAzure/lab/storefront/pkg/kafka/errors"
	"github.com/RoyceAzure/lab/storefront/pkg/kafka/message"
)

// Producer interface defines the methods that a Kafka producer must implement
type Producer interface {
	// Produce sends messages to Kafka
	Produce(ctx context.Context, msgs []message.Message) error
	// Close closes the producer
	Close() error
}

// Writer kafka.Writer 的最小介面, 測試時可替換
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaProducer implements the Producer interface
type kafkaProducer struct {
	writer Writer
	cfg    *config.Config
	closed atomic.Bool
	sleep  func(time.Duration)
}

// New creates a new Kafka producer
func New(cfg *config.Config) (Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     cfg.GetBalancer(),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Async:        false,
		// 重試由 Produce 控制
		MaxAttempts: 1,

		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network string, address string) (net.Conn, error) {
				dialer := &kafka.Dialer{
					Timeout:   10 * time.Second,
					DualStack: true,
					KeepAlive: 30 * time.Second,
				}
				return dialer.DialContext(ctx, network, address)
			},
		},

		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Str("topic", cfg.Topic).Msgf("kafka producer error: "+msg, args...)
		}),

		Compression: kafka.Snappy,
	}

	return NewWithWriter(writer, cfg), nil
}

func NewWithWriter(writer Writer, cfg *config.Config) Producer {
	return &kafkaProducer{
		writer: writer,
		cfg:    cfg,
		sleep:  time.Sleep,
	}
}

// Produce 同步發送, 會 block 到所有消息都寫入或重試用完
func (p *kafkaProducer) Produce(ctx context.Context, msgs []message.Message) error {
	if p.closed.Load() {
		return errors.NewKafkaError("Produce", p.cfg.Topic, errors.ErrProducerClosed)
	}

	if len(msgs) == 0 {
		return nil
	}

	kafkaMsgs := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		kafkaMsgs[i] = msg.ToKafkaMessage()
	}

	delay := p.cfg.RetryDelay
	var err error
	for attempt := 0; attempt <= p.cfg.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return errors.NewKafkaError("Produce", p.cfg.Topic, ctx.Err())
		}

		err = p.writer.WriteMessages(ctx, kafkaMsgs...)
		if err == nil {
			return nil
		}

		if !errors.IsTemporaryError(err) || attempt == p.cfg.RetryAttempts {
			break
		}
		p.sleep(delay)
		if p.cfg.RetryFactor > 1 {
			delay *= time.Duration(p.cfg.RetryFactor)
		}
	}

	return errors.NewKafkaError("Produce", p.cfg.Topic, err)
}

// Close implements the Producer interface
func (p *kafkaProducer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
