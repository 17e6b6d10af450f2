package repository

import (
	"context"

	"RiskLens/internal/domain/models"
	pkgkafka "RiskLens/pkg/kafka"
)

// reportProducer is the subset of *pkgkafka.Producer the publisher uses.
type reportProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaReportPublisher implements ReportPublisher for Kafka. Reports are keyed
// by symbol so one symbol's reports stay ordered within a partition.
type KafkaReportPublisher struct {
	producer reportProducer
	topic    string
}

// NewKafkaReportPublisher creates a Kafka report publisher.
func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string) *KafkaReportPublisher {
	return newKafkaReportPublisher(producer, topic)
}

func newKafkaReportPublisher(p reportProducer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: p, topic: topic}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.RiskReport) error {
	if r == nil {
		return nil
	}
	return p.PublishBatch(ctx, []*models.RiskReport{r})
}

func (p *KafkaReportPublisher) PublishBatch(ctx context.Context, reports []*models.RiskReport) error {
	msgs := make([]pkgkafka.Message, 0, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:     []byte(r.Symbol),
			Value:   r,
			Headers: map[string]string{"mode": r.Mode},
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopReportPublisher discards reports. Used when Kafka is disabled.
type NopReportPublisher struct{}

func (NopReportPublisher) Publish(context.Context, *models.RiskReport) error        { return nil }
func (NopReportPublisher) PublishBatch(context.Context, []*models.RiskReport) error { return nil }
func (NopReportPublisher) Close() error                                             { return nil }
