package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/lazypower/nudge/internal/engine"
)

// DefaultTopic receives decisions when no topic is configured.
const DefaultTopic = "nudge.interventions"

// Kafka writes each decision to a topic keyed by session, so one session's
// interventions stay ordered on a partition.
type Kafka struct {
	writer *kafka.Writer
	topic  string
}

// NewKafka creates a Kafka publisher.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

func (k *Kafka) Name() string { return KindKafka }

func (k *Kafka) Publish(ctx context.Context, d *engine.Decision) error {
	msg, err := message(k.topic, d)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func message(topic string, d *engine.Decision) (kafka.Message, error) {
	value, err := encode(d)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode decision: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(d.SessionID),
		Value: value,
		Time:  d.At.UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(d.Type)},
		},
	}, nil
}
