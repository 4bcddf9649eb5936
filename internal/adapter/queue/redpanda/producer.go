// Package redpanda publishes interview lifecycle events to Redpanda/Kafka for
// downstream consumers (analytics, audit). Publishing is fire-and-forget:
// a broker outage degrades observability, never the interview pipeline.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// TopicInterviewEvents is the Kafka topic carrying interview lifecycle events.
const TopicInterviewEvents = "interview-events"

// Publisher implements domain.EventPublisher on a franz-go client.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher connects to the brokers and ensures the events topic exists.
func NewPublisher(brokers []string) (*Publisher, error) {
	return NewPublisherToTopic(brokers, TopicInterviewEvents)
}

// NewPublisherToTopic is NewPublisher with a custom topic, used by tests for
// isolation.
func NewPublisherToTopic(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	slog.Info("creating event publisher", slog.Any("brokers", brokers), slog.String("topic", topic))

	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(
			kotel.TracerProvider(otel.GetTracerProvider()),
		)),
	)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := createTopicIfNotExists(ctx, client, topic, 1, 1); err != nil {
		// The topic usually exists already; creation failure is not fatal.
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", topic),
			slog.Any("error", err))
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish sends one event keyed by session id, so per-session ordering is
// preserved within a partition. Delivery failures are logged and swallowed.
func (p *Publisher) Publish(ctx domain.Context, ev domain.InterviewEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.SessionID),
		Value: b,
	}
	p.client.Produce(ctx, rec, func(_ *kgo.Record, err error) {
		if err != nil {
			slog.Warn("event publish failed",
				slog.String("topic", p.topic),
				slog.String("type", ev.Type),
				slog.String("session_id", ev.SessionID),
				slog.Any("error", err))
		}
	})
	return nil
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		slog.Warn("event publisher flush failed", slog.Any("error", err))
	}
	p.client.Close()
}

var _ domain.EventPublisher = (*Publisher)(nil)
