package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"RiskLens/internal/domain/models"
	domrepo "RiskLens/internal/domain/repository"
	applogger "RiskLens/pkg/logger"
)

// StoreSink merges closed bars into the series store. A bar replaces a stored
// bar with the same start time.
type StoreSink struct {
	store     domrepo.SeriesStore
	afterSave func(ctx context.Context, symbol string, iv models.Interval)
	l         *applogger.Logger
}

// SinkOption configures StoreSink.
type SinkOption func(*StoreSink)

// WithAfterSave runs fn after every stored bar, e.g. to rescore the symbol.
func WithAfterSave(fn func(ctx context.Context, symbol string, iv models.Interval)) SinkOption {
	return func(s *StoreSink) { s.afterSave = fn }
}

// WithSinkLogger sets the logger.
func WithSinkLogger(l *applogger.Logger) SinkOption {
	return func(s *StoreSink) {
		if l != nil {
			s.l = l
		}
	}
}

func NewStoreSink(store domrepo.SeriesStore, opts ...SinkOption) *StoreSink {
	s := &StoreSink{store: store, l: applogger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StoreSink) AppendBar(ctx context.Context, symbol string, iv models.Interval, bar models.PriceBar) error {
	ps, err := s.store.GetSeries(ctx, symbol, time.Time{}, time.Time{}, iv)
	switch {
	case errors.Is(err, models.ErrSeriesNotFound):
		ps = &models.PriceSeries{Symbol: symbol, Interval: iv}
	case err != nil:
		return fmt.Errorf("load %s: %w", symbol, err)
	}
	ps.Interval = iv
	ps.Bars = mergeBar(ps.Bars, bar)

	if err := s.store.SaveSeries(ctx, ps); err != nil {
		return fmt.Errorf("save %s: %w", symbol, err)
	}
	s.l.Debug("bar stored",
		applogger.String("symbol", symbol),
		applogger.String("interval", string(iv)),
		applogger.String("bar", bar.Date.Format(time.RFC3339)),
		applogger.Float64("close", bar.Close))

	if s.afterSave != nil {
		s.afterSave(ctx, symbol, iv)
	}
	return nil
}

// mergeBar inserts bar into ascending bars, replacing an entry with the same date.
func mergeBar(bars []models.PriceBar, bar models.PriceBar) []models.PriceBar {
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(bar.Date) })
	if i < len(bars) && bars[i].Date.Equal(bar.Date) {
		bars[i] = bar
		return bars
	}
	bars = append(bars, models.PriceBar{})
	copy(bars[i+1:], bars[i:])
	bars[i] = bar
	return bars
}
