package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"webshop-service/internal/entity"
)

const (
	OrderCreated = "created"
	OrderStatus  = "status"
	OrderDeleted = "deleted"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type OrderEvent struct {
	EventID    string        `json:"event_id"`
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Order      *entity.Order `json:"order"`
}

type Publisher struct {
	writer MessageWriter
	now    func() time.Time
}

func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer, now: func() time.Time { return time.Now().UTC() }}
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, order *entity.Order, event string) error {
	occurred := p.now()
	orderJSON, err := json.Marshal(OrderEvent{
		EventID:    uuid.NewString(),
		Type:       event,
		OccurredAt: occurred,
		Order:      order,
	})
	if err != nil {
		return err
	}

	// order-created-1, order-status-1 or order-deleted-1
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order-%s-%d", event, order.ID)),
		Value: orderJSON,
		Time:  occurred,
	}

	return p.writer.WriteMessages(ctx, msg)
}
