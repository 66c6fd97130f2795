package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	writerBatchSize    = 100
	writerBatchTimeout = 100 * time.Millisecond
)

// StatusChange is the message published whenever a payment changes status.
type StatusChange struct {
	PaymentID         uint64    `json:"payment_id"`
	RequesterID       int64     `json:"requester_id"`
	Amount            string    `json:"amount"`
	Purpose           string    `json:"purpose"`
	OldStatus         string    `json:"old_status"`
	NewStatus         string    `json:"new_status"`
	ProviderRequestID string    `json:"provider_request_id,omitempty"`
	ProviderPaymentID string    `json:"provider_payment_id,omitempty"`
	Origin            string    `json:"origin"`
	OccurredAt        time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishStatusChange(ctx context.Context, change *StatusChange) error
	Close() error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStatusChange(context.Context, *StatusChange) error { return nil }

func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              writerBatchSize,
		BatchTimeout:           writerBatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// PublishStatusChange writes one message keyed by payment id so changes of a payment stay ordered.
func (p *KafkaPublisher) PublishStatusChange(ctx context.Context, change *StatusChange) error {
	value, err := json.Marshal(change)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(change.PaymentID, 10)),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
