// Package kafka carries studio analytics events over segmentio/kafka-go.
// The producer publishes JSON events with an event-type header; the
// consumer hands each record to a MessageHandler and commits it once
// handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/config"
)

const (
	minFetchBackoff = 100 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
)

// Message is one consumed record.
type Message struct {
	Key       []byte
	Value     []byte
	EventType string
	Partition int
	Offset    int64
	Time      time.Time
}

// MessageHandler processes one record. A returned error leaves the record
// uncommitted.
type MessageHandler func(ctx context.Context, msg Message) error

// ConsumerStats counts records since start.
type ConsumerStats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Consumer reads a topic as part of a consumer group.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	logger    *slog.Logger
	processed atomic.Int64
	failed    atomic.Int64
}

// NewConsumer creates a Consumer for topic. A new group starts from the
// oldest retained event so aggregates are rebuilt after a restart.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled. Fetch errors back off
// exponentially; handler errors are counted and the record is skipped.
func (c *Consumer) Start(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("kafka consumer started without a handler")
	}
	defer c.reader.Close()
	c.logger.Info("consumer started", "group", c.reader.Config().GroupID)

	backoff := minFetchBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "processed", c.processed.Load(), "failed", c.failed.Load())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}
		backoff = minFetchBackoff

		m := fromKafka(msg)
		if err := c.handler(ctx, m); err != nil {
			c.failed.Add(1)
			c.logger.Error("failed to process message",
				"partition", m.Partition,
				"offset", m.Offset,
				"event_type", m.EventType,
				"error", err,
			)
			continue
		}
		c.processed.Add(1)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message", "partition", m.Partition, "offset", m.Offset, "error", err)
		}
	}
}

// Stats returns processed and failed counts.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Processed: c.processed.Load(), Failed: c.failed.Load()}
}

// Close closes the reader. Start closes it too on return.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func fromKafka(msg kafka.Message) Message {
	m := Message{
		Key:       msg.Key,
		Value:     msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
	for _, h := range msg.Headers {
		if h.Key == HeaderEventType {
			m.EventType = string(h.Value)
			break
		}
	}
	if m.EventType == "" {
		m.EventType = string(msg.Key)
	}
	return m
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

// Ping dials the brokers in order and returns nil on the first one that
// answers a metadata request.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}
