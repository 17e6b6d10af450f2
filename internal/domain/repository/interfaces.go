package repository

import (
	"context"

	"RiskLens/internal/domain/models"
)

// ReportPublisher ships completed risk reports keyed by symbol.
type ReportPublisher interface {
	Publish(ctx context.Context, r *models.RiskReport) error
	PublishBatch(ctx context.Context, reports []*models.RiskReport) error
	Close() error
}

type Metrics interface {
	RecordAnalysis(mode, symbol string, sig models.Signal)
	RecordError(kind string)
	RecordRiskScore(symbol string, value float64)
	RecordLatency(op string, seconds float64)
}
