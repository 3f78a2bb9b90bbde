package repository

import (
	"context"
	"strings"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
)

// messageProducer is the part of pkg/kafka.Producer the publisher needs.
type messageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPredictionPublisher implements PredictionPublisher for Kafka.
// Events are keyed by ticker so one ticker's forecasts stay ordered.
type KafkaPredictionPublisher struct {
	producer messageProducer
	topic    string
}

// NewKafkaPredictionPublisher creates Kafka publisher.
func NewKafkaPredictionPublisher(producer messageProducer, topic string) domrepo.PredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

func (p *KafkaPredictionPublisher) PublishPrediction(ctx context.Context, ev models.PredictionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(strings.ToUpper(ev.Ticker)), ev)
}

func (p *KafkaPredictionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishPrediction(context.Context, models.PredictionEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
