package events

import (
	"context"
	"encoding/json"
	"time"

	"billpay-be/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	TypePaymentPending   = "payment.pending"
	TypePaymentCompleted = "payment.completed"
	TypePaymentFailed    = "payment.failed"
)

// PaymentEvent is published on every payment lifecycle change. Consumers
// such as the reconciliation job key on PaymentID.
type PaymentEvent struct {
	Type       string          `json:"type"`
	PaymentID  string          `json:"payment_id"`
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt PaymentEvent) error
	Close() error
}

// New returns a Kafka publisher, or a no-op one when no brokers are set.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		logger.L().Info("Kafka brokers not configured; payment events disabled")
		return NoopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	logger.L().Info("Kafka payment event producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt PaymentEvent) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	// Keyed by payment id so one payment's events stay on one partition.
	msg := kafka.Message{
		Key:   []byte(evt.PaymentID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}

	log := logger.FromCtx(ctx).With(
		zap.String("topic", p.topic),
		zap.String("event_type", evt.Type),
		zap.String("payment_id", evt.PaymentID),
	)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error("Failed to publish payment event", zap.Error(err))
		return err
	}

	log.Debug("Published payment event")
	return nil
}

func (p *KafkaPublisher) Close() error {
	err := p.writer.Close()
	logger.L().Info("Kafka producer closed")
	return err
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, evt PaymentEvent) error {
	logger.FromCtx(ctx).Debug("Payment event dropped (no broker)",
		zap.String("event_type", evt.Type),
		zap.String("payment_id", evt.PaymentID),
	)
	return nil
}

func (NoopPublisher) Close() error { return nil }
