package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	id "dealkernel/pkg/domain"
)

// KafkaSink publishes audit entries to a Kafka topic, keyed by deal so one
// deal's trail stays ordered within a partition. It implements Store;
// ListByDeal is not served from Kafka — compose with a local store for reads.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the brokers and ensures the topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %s: %w", r.Topic, r.Err)
		}
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

// Append publishes one entry synchronously. Audit writes fail loudly: a
// dropped override record is a correctness problem, not an ops annoyance.
func (k *KafkaSink) Append(ctx context.Context, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(entry.DealID.String()),
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}

// ListByDeal is unsupported on the Kafka sink.
func (k *KafkaSink) ListByDeal(ctx context.Context, dealID id.DealID) ([]Entry, error) {
	return nil, fmt.Errorf("kafka sink does not serve reads")
}

// Close flushes and closes the producer.
func (k *KafkaSink) Close() {
	k.client.Close()
}

// FanoutStore appends to every sink and serves reads from the first.
// Typical wiring: postgres (reads) + kafka (stream).
type FanoutStore struct {
	sinks []Store
}

func NewFanoutStore(sinks ...Store) *FanoutStore {
	return &FanoutStore{sinks: sinks}
}

func (f *FanoutStore) Append(ctx context.Context, entry Entry) error {
	for _, s := range f.sinks {
		if err := s.Append(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (f *FanoutStore) ListByDeal(ctx context.Context, dealID id.DealID) ([]Entry, error) {
	if len(f.sinks) == 0 {
		return nil, nil
	}
	return f.sinks[0].ListByDeal(ctx, dealID)
}
