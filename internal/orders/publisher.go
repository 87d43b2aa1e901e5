package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"upsell/pkg/logger"

	"github.com/IBM/sarama"
)

// Publisher announces persisted orders to downstream consumers
type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, order *Order) error
	Close() error
}

// KafkaConfig contains configuration for the order event producer
type KafkaConfig struct {
	Brokers          []string
	Topic            string
	ClientID         string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	Compression      sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "upsell.orders",
		ClientID:         "upsell-orders",
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll,
		Compression:      sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// newProducerConfig maps KafkaConfig onto a sarama sync producer config
func newProducerConfig(cfg KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = cfg.RequiredAcks
	sc.Producer.Compression = cfg.Compression
	sc.Producer.Retry.Max = cfg.RetryMax
	sc.Producer.Timeout = cfg.Timeout
	sc.Producer.Idempotent = cfg.IdempotentWrites
	sc.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	if cfg.IdempotentWrites {
		sc.Net.MaxOpenRequests = 1
	}

	// orders of one session land on one partition
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	return sc
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaPublisher connects a sync producer to the configured brokers
func NewKafkaPublisher(cfg KafkaConfig, log *logger.Logger) (Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return newKafkaPublisher(producer, cfg.Topic, log), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string, log *logger.Logger) *kafkaPublisher {
	if log == nil {
		log = logger.GetDefault()
	}
	return &kafkaPublisher{producer: producer, topic: topic, log: log.WithComponent("orders.publisher")}
}

func (p *kafkaPublisher) PublishOrderSubmitted(ctx context.Context, order *Order) error {
	event := OrderSubmittedEvent{
		EventType:    EventTypeOrderSubmitted,
		OrderID:      order.ID.String(),
		SubmissionID: order.SubmissionID,
		SessionID:    order.SessionID,
		Agent:        order.Agent,
		Total:        order.Total,
		Lines:        order.Lines,
		SubmittedAt:  order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(order.SessionID),
		Value:     sarama.ByteEncoder(payload),
		Headers:   p.createHeaders(order),
		Timestamp: order.CreatedAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send order event to Kafka: %w", err)
	}

	p.log.DebugWithContext(ctx, "Order event published", map[string]interface{}{
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
		"order_id":  event.OrderID,
	})
	return nil
}

func (p *kafkaPublisher) createHeaders(order *Order) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(EventTypeOrderSubmitted)},
		{Key: []byte("order_id"), Value: []byte(order.ID.String())},
		{Key: []byte("submission_id"), Value: []byte(order.SubmissionID)},
		{Key: []byte("session_id"), Value: []byte(order.SessionID)},
		{Key: []byte("version"), Value: []byte("1.0")},
		{Key: []byte("producer"), Value: []byte("upsell-orders")},
		{Key: []byte("created_at"), Value: []byte(order.CreatedAt.Format(time.RFC3339))},
	}
}

func (p *kafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	p.log.Info("Kafka order producer closed", slog.String("topic", p.topic))
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher is used when Kafka is disabled
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishOrderSubmitted(context.Context, *Order) error { return nil }

func (noopPublisher) Close() error { return nil }
