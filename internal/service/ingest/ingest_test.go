package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/repository"
	"RiskLens/pkg/metrics"
)

type appended struct {
	symbol string
	bar    models.PriceBar
}

type memorySink struct {
	mu    sync.Mutex
	bars  []appended
	fails int
}

func (s *memorySink) AppendBar(_ context.Context, symbol string, _ models.Interval, bar models.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("store unavailable")
	}
	s.bars = append(s.bars, appended{symbol: symbol, bar: bar})
	return nil
}

func (s *memorySink) snapshot() []appended {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]appended(nil), s.bars...)
}

var day = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

func trade(sym string, at time.Duration, price, vol float64) models.Trade {
	return models.Trade{Symbol: sym, Time: day.Add(at), Price: price, Volume: vol}
}

func TestAggregatorBuildsBars(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	a := NewAggregator(models.Interval1h, sink, metrics.Nop{})

	require.NoError(t, a.Process(ctx, trade("BTC", 5*time.Minute, 100, 1)))
	require.NoError(t, a.Process(ctx, trade("BTC", 20*time.Minute, 104, 2)))
	require.NoError(t, a.Process(ctx, trade("BTC", 40*time.Minute, 98, 1)))
	require.NoError(t, a.Process(ctx, trade("BTC", 59*time.Minute, 101, 0.5)))
	assert.Empty(t, sink.snapshot())

	open, ok := a.OpenBar("BTC")
	require.True(t, ok)
	assert.Equal(t, models.PriceBar{Date: day, Open: 100, High: 104, Low: 98, Close: 101, Volume: 4.5}, open)

	require.NoError(t, a.Process(ctx, trade("BTC", 61*time.Minute, 102, 1)))
	got := sink.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "BTC", got[0].symbol)
	assert.Equal(t, open, got[0].bar)

	err := a.Process(ctx, trade("BTC", 30*time.Minute, 90, 1))
	assert.ErrorContains(t, err, "predates open bar")
	assert.Error(t, a.Process(ctx, models.Trade{Symbol: "BTC", Time: day, Price: -1}))

	a.Flush(ctx)
	got = sink.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, day.Add(time.Hour), got[1].bar.Date)
	_, ok = a.OpenBar("BTC")
	assert.False(t, ok)
}

func TestAggregatorRetriesRejectedBars(t *testing.T) {
	sink := &memorySink{fails: 1}
	a := NewAggregator(models.Interval1d, sink, metrics.Nop{})

	trades := make(chan models.Trade, 4)
	trades <- trade("ETH", time.Hour, 10, 1)
	trades <- trade("ETH", 25*time.Hour, 11, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, trades, time.Second)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	got := sink.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, day, got[0].bar.Date)
	assert.Equal(t, day.AddDate(0, 0, 1), got[1].bar.Date)
}

func TestStoreSinkMergesIntoSeries(t *testing.T) {
	ctx := context.Background()
	store := repository.NewCSVSeriesStore(t.TempDir())
	var rescored []string
	sink := NewStoreSink(store, WithAfterSave(func(_ context.Context, symbol string, _ models.Interval) {
		rescored = append(rescored, symbol)
	}))

	bar := func(d int, c float64) models.PriceBar {
		return models.PriceBar{Date: day.AddDate(0, 0, d), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	require.NoError(t, sink.AppendBar(ctx, "SOL", models.Interval1d, bar(0, 10)))
	require.NoError(t, sink.AppendBar(ctx, "SOL", models.Interval1d, bar(2, 12)))
	require.NoError(t, sink.AppendBar(ctx, "SOL", models.Interval1d, bar(1, 11)))
	require.NoError(t, sink.AppendBar(ctx, "SOL", models.Interval1d, bar(2, 13)))

	ps, err := store.GetLatestN(ctx, "SOL", 10, models.Interval1d)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 13}, ps.Closes())
	assert.NoError(t, ps.Validate(0))
	assert.Equal(t, []string{"SOL", "SOL", "SOL", "SOL"}, rescored)
}

type scriptedFeed struct{ trades []models.Trade }

func (f scriptedFeed) Run(ctx context.Context, out chan<- models.Trade) error {
	for _, t := range f.trades {
		select {
		case out <- t:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func TestServiceFlushesOnStop(t *testing.T) {
	sink := &memorySink{}
	feed := scriptedFeed{trades: []models.Trade{
		trade("ADA", time.Minute, 1, 10),
		trade("ADA", 2*time.Minute, 1.1, 5),
	}}
	svc := NewService(feed, NewAggregator(models.Interval1d, sink, metrics.Nop{}), nil)

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())
	require.Eventually(t, func() bool {
		b, ok := svc.agg.OpenBar("ADA")
		return ok && b.Volume == 15
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, svc.Stop(ctx))

	got := sink.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, 15.0, got[0].bar.Volume)
	assert.Equal(t, 1.1, got[0].bar.Close)
}
