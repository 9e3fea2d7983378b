package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
)

// Kafka publishes events through a sarama synchronous producer. The
// event name maps to a topic with dots replaced by dashes, optionally
// under a prefix: "order.created" with prefix "commerce" becomes
// "commerce-order-created". The tenant ID is the message key, so one
// tenant's events stay ordered within a partition.
//
// Example:
//
//	cfg := sarama.NewConfig()
//	cfg.Producer.Return.Successes = true
//	producer, _ := sarama.NewSyncProducer(brokers, cfg)
//	pub := publish.NewKafka(producer).WithTopicPrefix("commerce")
type Kafka struct {
	producer sarama.SyncProducer
	prefix   string
}

// NewKafka creates a Kafka publisher. The producer must be configured
// with Producer.Return.Successes = true, which sarama requires for
// SyncProducer.
func NewKafka(producer sarama.SyncProducer) *Kafka {
	return &Kafka{producer: producer}
}

// WithTopicPrefix namespaces every published topic.
//
// Returns the publisher for method chaining.
func (p *Kafka) WithTopicPrefix(prefix string) *Kafka {
	p.prefix = prefix
	return p
}

// Publish encodes the envelope and sends it to the event's topic.
func (p *Kafka) Publish(ctx context.Context, name string, tenantID string, payload any) error {
	data, _, err := encode(name, tenantID, payload)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", name, err)
	}

	topic := p.topic(name)

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(tenantID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", topic, err)
	}

	return nil
}

func (p *Kafka) topic(name string) string {
	topic := strings.ReplaceAll(name, ".", "-")
	if p.prefix != "" {
		topic = p.prefix + "-" + topic
	}
	return topic
}

// Close shuts down the underlying producer.
func (p *Kafka) Close() error {
	return p.producer.Close()
}

// Compile-time check
var _ Publisher = (*Kafka)(nil)
