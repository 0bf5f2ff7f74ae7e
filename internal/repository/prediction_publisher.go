package repository

import (
	"context"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	pkgkafka "github.com/GabrielWalak/delivery-prediction/pkg/kafka"
)

// KafkaPredictionPublisher implements PredictionPublisher for Kafka.
type KafkaPredictionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPredictionPublisher(producer *pkgkafka.Producer, topic string) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

// PublishPrediction keys events by model version so one model's events stay ordered.
func (p *KafkaPredictionPublisher) PublishPrediction(ctx context.Context, ev models.PredictionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.ModelVersion), ev)
}

// Close is a no-op; the producer is shared and closed by the app.
func (p *KafkaPredictionPublisher) Close() error {
	return nil
}

var _ repository.PredictionPublisher = (*KafkaPredictionPublisher)(nil)
