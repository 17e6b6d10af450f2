package repository

import (
	"context"
	"errors"
	"time"

	"RiskLens/internal/domain/models"
	domrepo "RiskLens/internal/domain/repository"
	"RiskLens/pkg/cache"
	applogger "RiskLens/pkg/logger"
)

const seriesKeyPrefix = "series"

// CachedSeriesStore decorates a SeriesStore with a read-through cache.
// Cache failures degrade to the underlying store.
type CachedSeriesStore struct {
	next  domrepo.SeriesStore
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedSeriesStore(next domrepo.SeriesStore, c cache.Service, ttl time.Duration) *CachedSeriesStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSeriesStore{next: next, cache: c, ttl: ttl}
}

// SetLogger injects a structured logger.
func (s *CachedSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CachedSeriesStore) GetSeries(ctx context.Context, symbol string, from, to time.Time, iv models.Interval) (*models.PriceSeries, error) {
	key := cache.GenerateKeyWithParams(seriesKeyPrefix, symbol, iv, "range", from.Unix(), to.Unix())
	return s.readThrough(ctx, key, func() (*models.PriceSeries, error) {
		return s.next.GetSeries(ctx, symbol, from, to, iv)
	})
}

func (s *CachedSeriesStore) GetLatestN(ctx context.Context, symbol string, n int, iv models.Interval) (*models.PriceSeries, error) {
	key := cache.GenerateKeyWithParams(seriesKeyPrefix, symbol, iv, "latest", n)
	return s.readThrough(ctx, key, func() (*models.PriceSeries, error) {
		return s.next.GetLatestN(ctx, symbol, n, iv)
	})
}

// SaveSeries writes through and drops every cached view of the symbol.
func (s *CachedSeriesStore) SaveSeries(ctx context.Context, ps *models.PriceSeries) error {
	if err := s.next.SaveSeries(ctx, ps); err != nil {
		return err
	}
	if ps == nil {
		return nil
	}
	pattern := cache.BuildPattern(cache.GenerateKeyWithParams(seriesKeyPrefix, ps.Symbol) + ":")
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.warn("series cache invalidate failed", ps.Symbol, err)
	}
	return nil
}

func (s *CachedSeriesStore) readThrough(ctx context.Context, key string, load func() (*models.PriceSeries, error)) (*models.PriceSeries, error) {
	var cached models.PriceSeries
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.warn("series cache get failed", key, err)
	}

	ps, err := load()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, ps, s.ttl); err != nil {
		s.warn("series cache set failed", key, err)
	}
	return ps, nil
}

func (s *CachedSeriesStore) warn(msg, key string, err error) {
	if s.l != nil {
		s.l.Warn(msg, applogger.String("key", key), applogger.Error(err))
	}
}
