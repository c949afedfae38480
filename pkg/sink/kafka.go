package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/models"
	"github.com/hoangteo0103/ticket-reservations/pkg/storage"
	"github.com/segmentio/kafka-go"
)

// Producer is the subset of *kafka.Writer used by KafkaSink.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TicketIssuedEvent is published once per finalized ticket.
type TicketIssuedEvent struct {
	Type   string        `json:"type"`
	Ticket models.Ticket `json:"ticket"`
}

const TicketIssuedEventType = "TicketIssued"

// KafkaSink publishes finalized tickets to a topic, keyed by order id so all
// tickets of one order land on the same partition.
type KafkaSink struct {
	producer Producer
}

// NewKafkaSink creates a KafkaSink.
func NewKafkaSink(producer Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

// NewKafkaWriter builds the writer for the tickets topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
}

// Make sure we conform to the interface
var _ storage.TicketSink = (*KafkaSink)(nil)

func (k *KafkaSink) SaveTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(tickets))
	for _, t := range tickets {
		payload, err := json.Marshal(TicketIssuedEvent{Type: TicketIssuedEventType, Ticket: t})
		if err != nil {
			return fmt.Errorf("failed to marshal ticket %s: %w", t.TokenID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(t.OrderID), Value: payload})
	}
	if err := k.producer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish tickets to kafka: %w", err)
	}
	return nil
}

// Close closes the underlying producer.
func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
