// Package alerts publishes systemic provider signals to Kafka: circuit
// breaker transitions and high-severity classified errors. Publishing is
// fire-and-forget; a broker outage degrades to logs and never slows a query.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"venuehub/internal/provider"
	"venuehub/internal/resilience"
)

// Event is the wire shape of one alert.
type Event struct {
	Kind       string    `json:"kind"` // "breaker_transition" or "provider_error"
	ProviderID string    `json:"provider_id"`
	State      string    `json:"state,omitempty"`
	Category   string    `json:"category,omitempty"`
	Severity   string    `json:"severity,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// producer is the slice of the Kafka client the publisher needs. Tests swap
// in a recording fake.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Close()
}

// Publisher emits alert events. A nil Publisher is a valid no-op, so callers
// never need to branch on whether alerting is configured.
type Publisher struct {
	producer producer
	topic    string
	logger   *slog.Logger
	now      func() time.Time
}

// New connects a Kafka producer for the given brokers. Returns nil (no-op
// alerting) when no brokers are configured.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("connect alert broker: %w", err)
	}

	return &Publisher{
		producer: client,
		topic:    topic,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// BreakerTransition publishes a circuit state change.
func (p *Publisher) BreakerTransition(ctx context.Context, providerID string, state resilience.BreakerState) {
	if p == nil {
		return
	}
	p.emit(ctx, Event{
		Kind:       "breaker_transition",
		ProviderID: providerID,
		State:      string(state),
		OccurredAt: p.now(),
	})
}

// ProviderError publishes a high-severity classified failure.
func (p *Publisher) ProviderError(ctx context.Context, providerID string, err error) {
	if p == nil {
		return
	}
	p.emit(ctx, Event{
		Kind:       "provider_error",
		ProviderID: providerID,
		Category:   string(provider.CategoryOf(err)),
		Severity:   string(provider.SeverityOf(err)),
		Message:    err.Error(),
		OccurredAt: p.now(),
	})
}

// emit produces without waiting for the ack. Delivery failures are logged in
// the promise; they never propagate to the query path.
func (p *Publisher) emit(ctx context.Context, event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal alert event", "error", err)
		return
	}

	record := &kgo.Record{
		Key:   []byte(event.ProviderID),
		Value: value,
	}
	p.producer.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("alert publish failed",
				"kind", event.Kind,
				"provider", event.ProviderID,
				"error", err,
			)
		}
	})
}

// Close flushes and releases the producer. Safe on a nil Publisher.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.producer.Close()
}
