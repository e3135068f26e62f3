package repository

import (
	"context"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	pkgkafka "BTCPulse/pkg/kafka"
)

// KafkaPublisher announces series events on one topic, keyed by event type.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishSeriesEvent(ctx context.Context, e models.SeriesEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.Type), e)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops events when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishSeriesEvent(context.Context, models.SeriesEvent) error { return nil }
func (NopPublisher) Close() error                                                 { return nil }
