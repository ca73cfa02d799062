package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Event type names written to the record header.
const (
	TypeLoginAborted   = "sso.login.aborted"
	TypeLoginSucceeded = "sso.login.succeeded"
)

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers        []string
	AbortedTopic   string
	SucceededTopic string
	ClientID       string
}

// KafkaPublisher is a Subscriber that writes events to Kafka as JSON,
// keyed by realm. Produce is asynchronous; delivery failures are logged.
type KafkaPublisher struct {
	client *kgo.Client
	cfg    KafkaConfig
}

// NewKafkaPublisher connects a franz-go client.
func NewKafkaPublisher(cfg KafkaConfig, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.AbortedTopic == "" {
		cfg.AbortedTopic = "sso.login.aborted"
	}
	if cfg.SucceededTopic == "" {
		cfg.SucceededTopic = "sso.login.succeeded"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "simple-sso"
	}

	all := append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerLinger(10 * time.Millisecond),
	}, opts...)
	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, cfg: cfg}, nil
}

// EnsureTopics creates the event topics when they do not exist.
func (p *KafkaPublisher) EnsureTopics(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.cfg.AbortedTopic, p.cfg.SucceededTopic)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("failed to create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

func (p *KafkaPublisher) OnLoginAborted(ctx context.Context, e LoginAborted) error {
	return p.produce(ctx, p.cfg.AbortedTopic, TypeLoginAborted, e.Realm.String(), e)
}

func (p *KafkaPublisher) OnLoginSucceeded(ctx context.Context, e LoginSucceeded) error {
	return p.produce(ctx, p.cfg.SucceededTopic, TypeLoginSucceeded, e.Realm.String(), e)
}

func (p *KafkaPublisher) produce(ctx context.Context, topic, eventType, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", eventType, err)
	}
	rec := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(eventType)},
		},
	}
	// the request context ends with the response; delivery must outlive it
	p.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err != nil {
			slog.Error("Failed to deliver event", "topic", r.Topic, "type", eventType, "err", err)
		}
	})
	return nil
}

// Flush waits until buffered records are delivered.
func (p *KafkaPublisher) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// Close flushes and closes the client.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		slog.Warn("Failed to flush events on close", "err", err)
	}
	p.client.Close()
}
