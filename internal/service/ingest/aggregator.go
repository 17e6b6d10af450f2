package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RiskLens/internal/domain/models"
	domrepo "RiskLens/internal/domain/repository"
	"RiskLens/internal/services/features"
	applogger "RiskLens/pkg/logger"
)

// BarSink receives bars once their interval has closed.
type BarSink interface {
	AppendBar(ctx context.Context, symbol string, iv models.Interval, bar models.PriceBar) error
}

type closedBar struct {
	symbol string
	bar    models.PriceBar
}

// Aggregator folds trades into OHLCV bars per symbol and hands closed bars to a
// sink. Bars the sink rejects are buffered and retried with backoff.
type Aggregator struct {
	iv      models.Interval
	sink    BarSink
	metrics domrepo.Metrics
	l       *applogger.Logger

	mu   sync.Mutex
	open map[string]*models.PriceBar

	bufSize int
	bufCh   chan closedBar
	wg      sync.WaitGroup
}

// AggregatorOption configures Aggregator.
type AggregatorOption func(*Aggregator)

// WithBufferSize sets how many rejected bars are held for retry.
func WithBufferSize(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.bufSize = n
		}
	}
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(l *applogger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.l = l
		}
	}
}

func NewAggregator(iv models.Interval, sink BarSink, metrics domrepo.Metrics, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		iv:      iv,
		sink:    sink,
		metrics: metrics,
		l:       applogger.NewNop(),
		open:    make(map[string]*models.PriceBar),
		bufSize: 256,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.bufCh = make(chan closedBar, a.bufSize)
	return a
}

// Run consumes trades until the channel closes or ctx is done, then flushes
// the open bars with flushTimeout.
func (a *Aggregator) Run(ctx context.Context, trades <-chan models.Trade, flushTimeout time.Duration) {
	rctx, stopRetry := context.WithCancel(ctx)
	a.wg.Add(1)
	go a.retryLoop(rctx)

	defer func() {
		stopRetry()
		a.wg.Wait()
		fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		a.Flush(fctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-trades:
			if !ok {
				return
			}
			if err := a.Process(ctx, t); err != nil {
				a.l.Debug("trade rejected", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

// Process folds one trade into its symbol's open bar. A trade opening a newer
// bar closes the previous one; trades older than the open bar are dropped.
func (a *Aggregator) Process(ctx context.Context, t models.Trade) error {
	if err := t.Validate(); err != nil {
		a.metrics.RecordError("ingest_invalid")
		return err
	}
	start := features.BarStart(t.Time, a.iv)

	a.mu.Lock()
	cur := a.open[t.Symbol]
	switch {
	case cur == nil:
		a.open[t.Symbol] = newBar(start, t)
		a.mu.Unlock()
		return nil
	case start.Before(cur.Date):
		a.mu.Unlock()
		a.metrics.RecordError("ingest_late")
		return fmt.Errorf("trade %s at %s predates open bar %s", t.Symbol, t.Time.Format(time.RFC3339), cur.Date.Format(time.RFC3339))
	case start.Equal(cur.Date):
		fold(cur, t)
		a.mu.Unlock()
		return nil
	}
	closed := *cur
	a.open[t.Symbol] = newBar(start, t)
	a.mu.Unlock()

	return a.emit(ctx, closedBar{symbol: t.Symbol, bar: closed})
}

// Flush hands every open bar to the sink, including bars still in progress.
func (a *Aggregator) Flush(ctx context.Context) {
	a.mu.Lock()
	pending := make([]closedBar, 0, len(a.open))
	for sym, b := range a.open {
		pending = append(pending, closedBar{symbol: sym, bar: *b})
	}
	a.open = make(map[string]*models.PriceBar)
	a.mu.Unlock()

	for _, cb := range pending {
		if err := a.sink.AppendBar(ctx, cb.symbol, a.iv, cb.bar); err != nil {
			a.metrics.RecordError("ingest_flush")
			a.l.Warn("open bar lost on flush",
				applogger.String("symbol", cb.symbol),
				applogger.String("bar", cb.bar.Date.Format(time.RFC3339)),
				applogger.Error(err))
		}
	}
}

// OpenBar returns a copy of the bar being built for symbol.
func (a *Aggregator) OpenBar(symbol string) (models.PriceBar, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.open[symbol]
	if !ok {
		return models.PriceBar{}, false
	}
	return *b, true
}

func (a *Aggregator) emit(ctx context.Context, cb closedBar) error {
	start := time.Now()
	if err := a.sink.AppendBar(ctx, cb.symbol, a.iv, cb.bar); err != nil {
		a.metrics.RecordError("ingest_append")
		select {
		case a.bufCh <- cb:
		default:
			a.metrics.RecordError("ingest_buffer_full")
		}
		return fmt.Errorf("append %s bar: %w", cb.symbol, err)
	}
	a.metrics.RecordLatency("ingest_append", time.Since(start).Seconds())
	return nil
}

func (a *Aggregator) retryLoop(ctx context.Context) {
	defer a.wg.Done()
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return
		case cb := <-a.bufCh:
			if err := a.sink.AppendBar(ctx, cb.symbol, a.iv, cb.bar); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				select {
				case <-ctx.Done():
				case <-time.After(backoff):
				}
				select {
				case a.bufCh <- cb:
				default:
					a.metrics.RecordError("ingest_buffer_drop")
				}
				continue
			}
			backoff = 50 * time.Millisecond
		}
	}
}

// drain logs bars still waiting for a retry at shutdown.
func (a *Aggregator) drain() {
	for {
		select {
		case cb := <-a.bufCh:
			a.l.Warn("buffered bar dropped at shutdown",
				applogger.String("symbol", cb.symbol),
				applogger.String("bar", cb.bar.Date.Format(time.RFC3339)))
		default:
			return
		}
	}
}

func newBar(start time.Time, t models.Trade) *models.PriceBar {
	return &models.PriceBar{Date: start, Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price, Volume: t.Volume}
}

func fold(b *models.PriceBar, t models.Trade) {
	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price
	b.Volume += t.Volume
}
