package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// KafkaPublisher sends each routing key to its own topic,
// "<exchange>.<routingKey>", keyed by account id so a partition sees one
// account's messages in order.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	exchange string
	logger   *slog.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, exchange string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: producer, exchange: exchange, logger: logger}
}

// Topic returns the topic a routing key is written to.
func (p *KafkaPublisher) Topic(routingKey string) string {
	return p.exchange + "." + routingKey
}

func (p *KafkaPublisher) Publish(_ context.Context, msg Message) error {
	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.Topic(msg.RoutingKey),
		Value: sarama.ByteEncoder(msg.Body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("routing_key"), Value: []byte(msg.RoutingKey)},
		},
	}
	if msg.Key != "" {
		kafkaMsg.Key = sarama.StringEncoder(msg.Key)
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		return fmt.Errorf("send to %s: %w", kafkaMsg.Topic, err)
	}

	p.logger.Debug("event sent",
		slog.String("topic", kafkaMsg.Topic),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

// Close releases the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
