package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"

	"github.com/segmentio/kafka-go"
)

const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is the message published on the order-events topic for
// downstream consumers (canteen dashboards, notification workers).
type OrderEvent struct {
	Type      string                `json:"type"`
	OrderID   string                `json:"order_id"`
	CanteenID string                `json:"canteen_id"`
	Order     models.OrderWithItems `json:"order"`
	Timestamp time.Time             `json:"timestamp"`
}

type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Logger: log}
}

func (p *Producer) publish(event OrderEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(event.OrderID),
			Value: msgBytes,
		},
	)
	if err != nil {
		return err
	}
	p.Logger.LogKafka("PUBLISH", p.Writer.Topic, fmt.Sprintf("%s for order %s", event.Type, event.OrderID))
	return nil
}

// PublishOrderPlaced announces a newly paid order to the canteen's channel.
func (p *Producer) PublishOrderPlaced(order models.OrderWithItems) error {
	return p.publish(OrderEvent{
		Type:      EventOrderPlaced,
		OrderID:   order.OrderID,
		CanteenID: order.CanteenID,
		Order:     order,
		Timestamp: time.Now(),
	})
}

func (p *Producer) PublishOrderCancelled(order models.Order) error {
	return p.publish(OrderEvent{
		Type:      EventOrderCancelled,
		OrderID:   order.OrderID,
		CanteenID: order.CanteenID,
		Order:     models.OrderWithItems{Order: order},
		Timestamp: time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
