package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/roach88/tokenx/internal/ir"
)

// KafkaSink publishes notifications to a Kafka topic.
//
// Records are keyed by token ID so every change to one token lands on the
// same partition in seq order. The value is the canonical JSON payload.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects a producer to brokers publishing to topic.
func NewKafkaSink(brokers []string, topic string, opts ...kgo.Opt) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sink: no topic")
	}

	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// Notify implements registry.Notifier. It waits for the broker ack.
func (s *KafkaSink) Notify(ctx context.Context, n ir.Notification) error {
	rec, err := NewRecord(s.topic, n)
	if err != nil {
		return err
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce seq %d: %w", n.Seq, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() {
	s.client.Close()
}

// NewRecord builds the Kafka record for n.
func NewRecord(topic string, n ir.Notification) (*kgo.Record, error) {
	value, err := ir.MarshalNotification(n)
	if err != nil {
		return nil, err
	}

	kind := "transfer"
	if n.IsMint() {
		kind = "mint"
	}
	headers := []kgo.RecordHeader{
		{Key: "seq", Value: []byte(strconv.FormatInt(n.Seq, 10))},
		{Key: "kind", Value: []byte(kind)},
	}
	if n.RequestID != "" {
		headers = append(headers, kgo.RecordHeader{Key: "request_id", Value: []byte(n.RequestID)})
	}

	return &kgo.Record{
		Topic:   topic,
		Key:     []byte(n.TokenID.String()),
		Value:   value,
		Headers: headers,
	}, nil
}
