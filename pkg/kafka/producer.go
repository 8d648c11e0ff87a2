package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/config"
)

// Headers set on every published message.
const (
	HeaderEventType   = "event-type"
	HeaderContentType = "content-type"
)

// Event is one studio event to publish. Key names the event type: it picks
// the partition and is copied into the event-type header.
type Event struct {
	Key   string
	Value any
}

// Producer writes JSON-encoded studio events to one topic.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
	logger  *slog.Logger
	now     func() time.Time
}

// NewProducer creates a Producer for topic. Messages are snappy-compressed
// and the topic is created on first write when the broker allows it.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer:  w,
		brokers: cfg.Brokers,
		logger:  slog.Default().With("component", "kafka-producer", "topic", topic),
		now:     time.Now,
	}
}

// PublishBatch writes events in one call. Events that cannot be encoded
// are logged and left out rather than failing the rest of the batch.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	ts := p.now()
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := toMessage(event, ts)
		if err != nil {
			p.logger.Warn("skipping unencodable event", "key", event.Key, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publishing %d events to %s: %w", len(messages), p.writer.Topic, err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func toMessage(event Event, ts time.Time) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling event value: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  ts,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Key)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}, nil
}

// Ping checks that a broker is reachable.
func (p *Producer) Ping(ctx context.Context) error {
	return Ping(ctx, p.brokers)
}

// Topic returns the topic the producer writes to.
func (p *Producer) Topic() string {
	return p.writer.Topic
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
