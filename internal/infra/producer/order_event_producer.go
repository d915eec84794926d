package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/pkg/kafka/message"
	"github.com/RoyceAzure/lab/storefront/pkg/kafka/producer"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=order_event_producer.go -destination=mock/mock_publisher.go -package=mock_producer

type OrderEventType string

const (
	OrderCreated       OrderEventType = "order.created"
	OrderStatusChanged OrderEventType = "order.status_changed"
)

type OrderEvent struct {
	EventType      OrderEventType    `json:"event_type"`
	OrderID        string            `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	UserID         int               `json:"user_id"`
	Status         model.OrderStatus `json:"status"`
	PreviousStatus model.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	Actor          string            `json:"actor"`
	Override       bool              `json:"override,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func NewOrderEvent(eventType OrderEventType, order *model.Order, previous model.OrderStatus, actor string, override bool) OrderEvent {
	return OrderEvent{
		EventType:      eventType,
		OrderID:        order.OrderID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		TotalAmount:    order.TotalAmount,
		Actor:          actor,
		Override:       override,
		OccurredAt:     time.Now().UTC(),
	}
}

// IOrderEventPublisher 訂單事件發佈, 只在 transaction commit 之後呼叫
type IOrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type OrderEventProducer struct {
	p producer.Producer
}

func NewOrderEventProducer(p producer.Producer) *OrderEventProducer {
	if p == nil {
		panic("producer cannot be nil")
	}
	return &OrderEventProducer{p: p}
}

// PublishOrderEvent key 使用 order id, 同一張訂單的事件會進同一個分區
func (o *OrderEventProducer) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return o.p.Produce(ctx, []message.Message{{
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []message.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.OccurredAt,
	}})
}

func (o *OrderEventProducer) Close() error {
	return o.p.Close()
}

// NoopPublisher 沒有設定 kafka 時使用
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error { return nil }
