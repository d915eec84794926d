package logger

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	"github.com/RoyceAzure/lab/storefront/pkg/kafka/message"
	"github.com/RoyceAzure/lab/storefront/pkg/kafka/producer"
)

// KafkaWriter 把 zerolog 的輸出送到 kafka topic
type KafkaWriter struct {
	p       producer.Producer
	logId   atomic.Uint64
	timeout time.Duration
}

func NewKafkaWriter(p producer.Producer) *KafkaWriter {
	return &KafkaWriter{p: p, timeout: 5 * time.Second}
}

func (kw *KafkaWriter) Write(p []byte) (n int, err error) {
	if kw == nil || kw.p == nil {
		return 0, errors.New("kafka writer is not init")
	}

	// key 使用遞增序號, 讓 log 平均分配到各分區
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, kw.logId.Add(1))

	// zerolog 會重用 buffer
	value := make([]byte, len(p))
	copy(value, p)

	ctx, cancel := context.WithTimeout(context.Background(), kw.timeout)
	defer cancel()
	if err := kw.p.Produce(ctx, []message.Message{{Key: key, Value: value, Time: time.Now()}}); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (kw *KafkaWriter) Close() error {
	return kw.p.Close()
}
