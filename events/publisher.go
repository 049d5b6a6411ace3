package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
)

// Publisher emits order lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt models.OrderEvent) error
	Close() error
}

// SNSPublisher fans events out through an SNS topic.
type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	attrs := map[string]string{
		"event_type": evt.Type,
		"order_id":   strconv.FormatInt(evt.OrderID, 10),
	}
	return p.client.Publish(ctx, p.topicArn, data, attrs)
}

func (p *SNSPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by order id so one order's events stay
// on one partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.OrderID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s order=%d topic=%s: %w", evt.Type, evt.OrderID, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.logger.Info("closing Kafka writer", zap.String("topic", p.topic))
	return p.writer.Close()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, evt models.OrderEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
