// Package stream publishes relay outcomes to Kafka for out-of-band
// auditing. It is optional: without configured brokers every call is a
// no-op, and publish failures never affect relaying.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is the audit envelope, one per handled inbound message.
type Event struct {
	TraceID         string    `json:"trace_id"`
	Outcome         string    `json:"outcome"`
	SourceChatID    int64     `json:"source_chat_id"`
	SourceMessageID int64     `json:"source_message_id"`
	ThreadID        int64     `json:"thread_id"`
	Edit            bool      `json:"edit"`
	Timestamp       time.Time `json:"timestamp"`
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes audit events to a Kafka topic.
type Publisher struct {
	writer kafkaWriter
}

// NewPublisher connects a publisher to brokers. Returns nil when no
// brokers are configured; a nil Publisher is safe to use.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &Publisher{writer: w}
}

// Publish sends one event. Errors are logged, never returned: the audit
// stream must not interfere with relaying.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Audit event marshal failed", "trace_id", ev.TraceID, "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.TraceID),
		Value: value,
		Time:  ev.Timestamp,
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		slog.Warn("Audit publish failed", "trace_id", ev.TraceID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
