package repository

import (
	"context"
	"time"

	"RiskLens/internal/domain/models"
)

// SeriesStore provides access to historical price series for analysis.
type SeriesStore interface {
	GetSeries(ctx context.Context, symbol string, from, to time.Time, iv models.Interval) (*models.PriceSeries, error)
	GetLatestN(ctx context.Context, symbol string, n int, iv models.Interval) (*models.PriceSeries, error)
	SaveSeries(ctx context.Context, s *models.PriceSeries) error
}
