package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"convoca/pkg/platform/circuit"
)

// KafkaPublisher mirrors audit events to a Kafka topic for downstream
// consumers (SIEM, retention pipelines). Publishing is fire-and-forget; the
// store remains the source of truth, so when the brokers misbehave the
// breaker opens and events are simply not mirrored until Kafka recovers.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	breaker *circuit.Breaker
	skipped atomic.Uint64
	logger  *slog.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
// Returns (nil, nil) when no brokers are configured.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	// One partition is plenty for an audit trail; replication follows the
	// cluster default.
	if _, err := admin.CreateTopic(ctx, 1, -1, nil, topic); err != nil {
		// Topic may already exist; anything else is fatal.
		if resp, lookupErr := admin.ListTopics(ctx, topic); lookupErr != nil || !resp.Has(topic) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %q: %w", topic, err)
		}
	}

	return &KafkaPublisher{
		client:  client,
		topic:   topic,
		breaker: circuit.New("audit-kafka", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:  logger,
	}, nil
}

// probeInterval is how many events are skipped while the breaker is open
// before one is let through to test whether the brokers recovered.
const probeInterval = 50

// Publish sends one event asynchronously, keyed by actor for per-actor ordering.
// When the breaker is open the event is dropped from the mirror; it is still
// persisted by the worker. Every probeInterval-th event is produced anyway so
// the breaker can close once Kafka recovers.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if p.breaker.IsOpen() && p.skipped.Add(1)%probeInterval != 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal audit event", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ActorID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("publish audit event", "error", err, "topic", p.topic)
			if _, change := p.breaker.RecordFailure(); change.Opened {
				p.logger.Warn("audit mirror circuit opened", "topic", p.topic)
			}
			return
		}
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			p.logger.Info("audit mirror circuit closed", "topic", p.topic)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close() {
	if p == nil {
		return
	}
	p.client.Close()
}
