package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RiskLens/internal/domain/models"
	applogger "RiskLens/pkg/logger"
)

// Feed produces trades until ctx is done.
type Feed interface {
	Run(ctx context.Context, out chan<- models.Trade) error
}

// Service connects a live feed to an Aggregator.
type Service struct {
	feed         Feed
	agg          *Aggregator
	flushTimeout time.Duration
	l            *applogger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(feed Feed, agg *Aggregator, l *applogger.Logger) *Service {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Service{feed: feed, agg: agg, flushTimeout: 10 * time.Second, l: l}
}

// Run blocks until ctx is done and the open bars are flushed.
func (s *Service) Run(ctx context.Context) error {
	trades := make(chan models.Trade, 1024)
	feedErr := make(chan error, 1)
	go func() {
		defer close(trades)
		feedErr <- s.feed.Run(ctx, trades)
	}()

	s.agg.Run(ctx, trades, s.flushTimeout)
	if err := <-feedErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("feed: %w", err)
	}
	return nil
}

// Start runs the service in the background.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return fmt.Errorf("ingest already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := s.Run(ctx); err != nil {
			s.l.Error("ingest stopped", applogger.Error(err))
		}
	}(s.done)
	return nil
}

// Stop cancels the feed and waits for the final flush.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ingest stop: %w", ctx.Err())
	}
}
