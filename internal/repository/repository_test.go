package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/testutil"
	"RiskLens/pkg/cache"
	pkgkafka "RiskLens/pkg/kafka"
	"RiskLens/pkg/logger"
)

var barColumns = []string{"date", "open", "high", "low", "close", "volume"}

func day(i int) time.Time { return testutil.Epoch.AddDate(0, 0, i) }

func TestCHSeriesStoreGetSeries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewCHSeriesStore(db, "price_bars")
	store.SetLogger(logger.NewNop())

	from, to := day(0), day(10)
	mock.ExpectQuery(regexp.QuoteMeta("FROM price_bars FINAL")).
		WithArgs("SPY", "1d", from, to).
		WillReturnRows(sqlmock.NewRows(barColumns).
			AddRow(day(0), 10.0, 11.0, 9.0, 10.5, 1000.0).
			AddRow(day(1), 10.5, 12.0, 10.0, 11.5, 1200.0))

	ps, err := store.GetSeries(context.Background(), "SPY", from, to, models.Interval1d)
	require.NoError(t, err)
	assert.Equal(t, "SPY", ps.Symbol)
	assert.Equal(t, models.Interval1d, ps.Interval)
	require.Len(t, ps.Bars, 2)
	assert.Equal(t, 11.5, ps.Bars[1].Close)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesStoreGetSeriesErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewCHSeriesStore(db, "price_bars")

	t.Run("no rows is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(barColumns))
		_, err := store.GetSeries(context.Background(), "NOPE", day(0), day(1), models.Interval1d)
		assert.ErrorIs(t, err, models.ErrSeriesNotFound)
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
		_, err := store.GetSeries(context.Background(), "SPY", day(0), day(1), models.Interval1d)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get series")
		assert.NotErrorIs(t, err, models.ErrSeriesNotFound)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesStoreGetLatestNReversesToAscending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewCHSeriesStore(db, "price_bars")

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY date DESC")).
		WithArgs("BTC-USD", "1d", 3).
		WillReturnRows(sqlmock.NewRows(barColumns).
			AddRow(day(2), 3.0, 3.0, 3.0, 3.0, 0.0).
			AddRow(day(1), 2.0, 2.0, 2.0, 2.0, 0.0).
			AddRow(day(0), 1.0, 1.0, 1.0, 1.0, 0.0))

	ps, err := store.GetLatestN(context.Background(), "BTC-USD", 3, models.Interval1d)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, ps.Closes())
	require.NoError(t, ps.Validate(0))

	_, err = store.GetLatestN(context.Background(), "BTC-USD", 0, models.Interval1d)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesStoreSaveSeriesChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewCHSeriesStore(db, "price_bars")

	ps := testutil.Constant("GC=F", insertChunk+5, 1800)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO price_bars (symbol, interval, date")).
		WillReturnResult(sqlmock.NewResult(0, insertChunk))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO price_bars")).
		WillReturnResult(sqlmock.NewResult(0, 5))

	require.NoError(t, store.SaveSeries(context.Background(), ps))
	require.NoError(t, store.SaveSeries(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec("INSERT").WillReturnError(errors.New("readonly"))
	err = store.SaveSeries(context.Background(), testutil.Constant("GC=F", 3, 1))
	assert.ErrorContains(t, err, "save series GC=F")
}

func TestCHSeriesStoreSchema(t *testing.T) {
	stmts := NewCHSeriesStore(nil, "").Schema()
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS price_bars")
	assert.Contains(t, stmts[0], "ReplacingMergeTree")
}

func TestReadCSV(t *testing.T) {
	t.Run("canonical header", func(t *testing.T) {
		in := "date,open,high,low,close,volume\n2024-01-02,1,2,0.5,1.5,100\n2024-01-03,1.5,2,1,1.8,\n"
		ps, err := ReadCSV(strings.NewReader(in), "SPY")
		require.NoError(t, err)
		require.Len(t, ps.Bars, 2)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), ps.Bars[0].Date)
		assert.Equal(t, 1.8, ps.Bars[1].Close)
		assert.Zero(t, ps.Bars[1].Volume)
	})

	t.Run("export header with adj close", func(t *testing.T) {
		in := "Date,Open,High,Low,Adj Close,Volume\n2024-01-02,1,2,0.5,1.4,100\n"
		ps, err := ReadCSV(strings.NewReader(in), "SPY")
		require.NoError(t, err)
		assert.Equal(t, 1.4, ps.Bars[0].Close)
	})

	t.Run("header with byte order mark", func(t *testing.T) {
		in := "\ufeffdate,open,high,low,close,volume\n2024-01-02,1,2,0.5,1.5,100\n"
		ps, err := ReadCSV(strings.NewReader(in), "SPY")
		require.NoError(t, err)
		require.Len(t, ps.Bars, 1)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), ps.Bars[0].Date)
		assert.Equal(t, 1.5, ps.Bars[0].Close)
	})

	cases := []struct {
		name  string
		in    string
		index int
	}{
		{"empty", "", -1},
		{"header only", "date,close\n", -1},
		{"missing close column", "date,open\n2024-01-02,1\n", -1},
		{"bad date", "date,close\n2024-01-02,1\nyesterday,2\n", 1},
		{"bad close", "date,close\n2024-01-02,null\n", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.in), "SPY")
			var me *models.MalformedSeriesError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tc.index, me.Index)
			assert.ErrorIs(t, err, models.ErrMalformedSeries)
		})
	}
}

func TestCSVSeriesStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCSVSeriesStore(dir)

	ps := testutil.RandomWalk("BHP.AX", 30, 7)
	require.NoError(t, store.SaveSeries(ctx, ps))
	_, err := os.Stat(filepath.Join(dir, "BHP.AX.csv"))
	require.NoError(t, err)

	got, err := store.GetLatestN(ctx, "BHP.AX", 10, models.Interval1d)
	require.NoError(t, err)
	require.Len(t, got.Bars, 10)
	assert.Equal(t, ps.Bars[29].Date, got.Bars[9].Date)
	assert.InDelta(t, ps.Bars[29].Close, got.Bars[9].Close, 1e-9)

	rng, err := store.GetSeries(ctx, "BHP.AX", day(5), day(9), models.Interval1d)
	require.NoError(t, err)
	assert.Len(t, rng.Bars, 5)

	_, err = store.GetSeries(ctx, "BHP.AX", day(100), day(200), models.Interval1d)
	assert.ErrorIs(t, err, models.ErrSeriesNotFound)

	_, err = store.GetLatestN(ctx, "MISSING", 10, models.Interval1d)
	assert.ErrorIs(t, err, models.ErrSeriesNotFound)

	_, err = store.GetLatestN(ctx, "../etc/passwd", 10, models.Interval1d)
	assert.ErrorContains(t, err, "invalid symbol")
}

type countingStore struct {
	inner *CSVSeriesStore
	reads int
	saves int
}

func (c *countingStore) GetSeries(ctx context.Context, symbol string, from, to time.Time, iv models.Interval) (*models.PriceSeries, error) {
	c.reads++
	return c.inner.GetSeries(ctx, symbol, from, to, iv)
}

func (c *countingStore) GetLatestN(ctx context.Context, symbol string, n int, iv models.Interval) (*models.PriceSeries, error) {
	c.reads++
	return c.inner.GetLatestN(ctx, symbol, n, iv)
}

func (c *countingStore) SaveSeries(ctx context.Context, s *models.PriceSeries) error {
	c.saves++
	return c.inner.SaveSeries(ctx, s)
}

func TestCachedSeriesStoreReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{inner: NewCSVSeriesStore(t.TempDir())}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCachedSeriesStore(inner, mc, time.Minute)

	require.NoError(t, store.SaveSeries(ctx, testutil.Exponential("ETH-USD", 20, 100, 0.01)))

	first, err := store.GetLatestN(ctx, "ETH-USD", 5, models.Interval1d)
	require.NoError(t, err)
	second, err := store.GetLatestN(ctx, "ETH-USD", 5, models.Interval1d)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads)
	assert.Equal(t, first.Closes(), second.Closes())
	assert.True(t, first.Bars[0].Date.Equal(second.Bars[0].Date))

	require.NoError(t, store.SaveSeries(ctx, testutil.Constant("ETH-USD", 20, 50)))
	third, err := store.GetLatestN(ctx, "ETH-USD", 5, models.Interval1d)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.reads)
	assert.Equal(t, 50.0, third.Bars[4].Close)

	_, err = store.GetLatestN(ctx, "NONE", 5, models.Interval1d)
	assert.ErrorIs(t, err, models.ErrSeriesNotFound)
}

type recordingProducer struct {
	topic string
	msgs  []pkgkafka.Message
}

func (r *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	r.topic = topic
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func TestKafkaReportPublisherKeysBySymbol(t *testing.T) {
	rp := &recordingProducer{}
	pub := newKafkaReportPublisher(rp, "risklens.reports")

	require.NoError(t, pub.Publish(context.Background(), &models.RiskReport{Symbol: "SPY", Mode: models.ModeBacktest}))
	require.NoError(t, pub.PublishBatch(context.Background(), []*models.RiskReport{nil, {Symbol: "GC=F", Mode: models.ModeAnalyze}}))
	require.NoError(t, pub.PublishBatch(context.Background(), nil))

	assert.Equal(t, "risklens.reports", rp.topic)
	require.Len(t, rp.msgs, 2)
	assert.Equal(t, "SPY", string(rp.msgs[0].Key))
	assert.Equal(t, "backtest", rp.msgs[0].Headers["mode"])
	assert.Equal(t, "GC=F", string(rp.msgs[1].Key))
}
