package message

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Header 代表 Kafka 消息的標頭
type Header struct {
	Key   string
	Value []byte
}

// Message 代表一個要送出的 Kafka 消息
// 相同 Key 會被分到同一個分區, 用來保證同一筆訂單事件的順序
type Message struct {
	Key     []byte
	Value   []byte
	Headers []Header
	Time    time.Time
}

// ToKafkaMessage converts our Message to kafka-go Message
// topic 由 writer 決定, 這裡不設定
func (m *Message) ToKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, len(m.Headers))
	for i, h := range m.Headers {
		headers[i] = kafka.Header{
			Key:   h.Key,
			Value: h.Value,
		}
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
		Time:    m.Time,
	}
}

func (m *Message) Header(key string) ([]byte, bool) {
	for _, h := range m.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}
