package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/interpreter"
	"RiskLens/internal/testutil"
	"RiskLens/pkg/cache"
	pkgkafka "RiskLens/pkg/kafka"
)

type mapStore struct {
	mu     sync.Mutex
	series map[string]*models.PriceSeries
}

func newMapStore(series ...*models.PriceSeries) *mapStore {
	m := &mapStore{series: map[string]*models.PriceSeries{}}
	for _, s := range series {
		m.series[s.Symbol] = s
	}
	return m
}

func (m *mapStore) GetSeries(_ context.Context, symbol string, _, _ time.Time, _ models.Interval) (*models.PriceSeries, error) {
	return m.get(symbol)
}

func (m *mapStore) GetLatestN(_ context.Context, symbol string, n int, _ models.Interval) (*models.PriceSeries, error) {
	s, err := m.get(symbol)
	if err != nil {
		return nil, err
	}
	if s.Len() > n {
		return s.Slice(s.Len()-n, s.Len()), nil
	}
	return s, nil
}

func (m *mapStore) SaveSeries(_ context.Context, s *models.PriceSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[s.Symbol] = s
	return nil
}

func (m *mapStore) get(symbol string) (*models.PriceSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, symbol)
	}
	return s, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	analyses map[string]int
	errs     map[string]int
	scores   map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{analyses: map[string]int{}, errs: map[string]int{}, scores: map[string]float64{}}
}

func (r *recordingMetrics) RecordAnalysis(mode, _ string, _ models.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[mode]++
}

func (r *recordingMetrics) RecordError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[kind]++
}

func (r *recordingMetrics) RecordRiskScore(symbol string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[symbol] = v
}

func (r *recordingMetrics) RecordLatency(string, float64) {}

type recordingPublisher struct {
	mu      sync.Mutex
	reports []*models.RiskReport
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, r *models.RiskReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
	return p.err
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, rs []*models.RiskReport) error {
	for _, r := range rs {
		_ = p.Publish(ctx, r)
	}
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reports)
}

type fixture struct {
	store   *mapStore
	metrics *recordingMetrics
	pub     *recordingPublisher
	risk    *RiskUseCase
}

func newFixture(series ...*models.PriceSeries) *fixture {
	f := &fixture{store: newMapStore(series...), metrics: newRecordingMetrics(), pub: &recordingPublisher{}}
	f.risk = NewRiskUseCase(f.store, interpreter.NewRuleBased(), f.metrics, models.DefaultRiskConfig(),
		WithReportPublisher(f.pub))
	return f
}

func TestRiskUseCaseAnalyze(t *testing.T) {
	f := newFixture(testutil.RandomWalk("SPY", 500, 3))

	r, err := f.risk.Analyze(context.Background(), models.AnalyzeRequest{Symbol: " spy ", Interval: "1d", Bars: 400})
	require.NoError(t, err)
	assert.Equal(t, "SPY", r.Symbol)
	assert.Equal(t, models.ModeAnalyze, r.Mode)
	require.NotNil(t, r.Latest)
	assert.GreaterOrEqual(t, r.Latest.Value, 0.0)
	assert.LessOrEqual(t, r.Latest.Value, 1.0)
	require.NotNil(t, r.Metadata)
	assert.Equal(t, 400, r.Metadata.Observations)
	require.NotNil(t, r.Interpretation)
	assert.Equal(t, interpreter.SourceRules, r.Interpretation.Source)
	assert.Nil(t, r.Backtest)

	assert.Equal(t, 1, f.pub.count())
	assert.Equal(t, 1, f.metrics.analyses[models.ModeAnalyze])
	assert.Equal(t, r.Latest.Value, f.metrics.scores["SPY"])
}

func TestRiskUseCaseErrorsAreClassified(t *testing.T) {
	bad := testutil.Constant("BAD", 300, 10)
	bad.Bars[10].Date = bad.Bars[9].Date
	f := newFixture(testutil.RandomWalk("SHORT", 50, 1), bad)

	cases := []struct {
		symbol string
		target error
		kind   string
	}{
		{"MISSING", models.ErrSeriesNotFound, "not_found"},
		{"SHORT", models.ErrInsufficientHistory, "insufficient_history"},
		{"BAD", models.ErrMalformedSeries, "malformed_series"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			_, err := f.risk.Analyze(context.Background(), models.AnalyzeRequest{Symbol: tc.symbol, Bars: 1000})
			require.ErrorIs(t, err, tc.target)
			assert.Equal(t, tc.kind, ErrorKind(err))
			assert.Equal(t, 1, f.metrics.errs[tc.kind])
		})
	}
	assert.Zero(t, f.pub.count())
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
	assert.Equal(t, "timeout", ErrorKind(context.DeadlineExceeded))
}

func TestRiskUseCasePublishFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(testutil.RandomWalk("SPY", 400, 3))
	f.pub.err = errors.New("broker down")

	_, err := f.risk.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "SPY", Bars: 400})
	require.NoError(t, err)
	assert.Equal(t, 1, f.metrics.errs["publish"])
}

func TestRiskUseCaseBacktest(t *testing.T) {
	f := newFixture(testutil.RandomWalk("BTC-USD", 600, 11))

	r, err := f.risk.Backtest(context.Background(), models.BacktestRequest{Symbol: "BTC-USD", Bars: 600, Policy: "tiered", Fee: 0.002})
	require.NoError(t, err)
	require.NotNil(t, r.Backtest)
	assert.Equal(t, "tiered", r.Backtest.Policy)
	assert.Greater(t, r.Backtest.Periods, 0)
	assert.Less(t, r.Backtest.Periods, 600)

	_, err = f.risk.Backtest(context.Background(), models.BacktestRequest{Symbol: "BTC-USD", Policy: "yolo"})
	assert.ErrorContains(t, err, "unknown policy")
}

func TestRiskUseCaseRunDispatches(t *testing.T) {
	f := newFixture(testutil.RandomWalk("GC=F", 400, 5))

	r, err := f.risk.Run(context.Background(), models.RiskRequest{Symbol: "GC=F", Mode: models.ModeValidate, Bars: 400})
	require.NoError(t, err)
	require.NotNil(t, r.Validation)
	assert.Equal(t, 400, r.Validation.Observations)
	assert.NotEmpty(t, r.Validation.Grade)

	_, err = f.risk.Run(context.Background(), models.RiskRequest{Symbol: "GC=F", Mode: "predict"})
	assert.ErrorContains(t, err, "unknown mode")
}

func TestRiskUseCaseValidateReusesAnalysis(t *testing.T) {
	f := newFixture(testutil.RandomWalk("SPY", 400, 9), testutil.RandomWalk("TINY", 120, 9))

	r, err := f.risk.Validate(context.Background(), models.ValidateRequest{Symbol: "SPY", Bars: 400})
	require.NoError(t, err)
	require.NotNil(t, r.Latest)
	require.NotNil(t, r.Validation)
	require.NotNil(t, r.Interpretation)

	a, err := f.risk.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "SPY", Bars: 400})
	require.NoError(t, err)
	assert.Equal(t, a.Latest, r.Latest)

	short, err := f.risk.Validate(context.Background(), models.ValidateRequest{Symbol: "TINY", Bars: 400})
	require.NoError(t, err)
	assert.Nil(t, short.Latest)
	assert.Nil(t, short.Interpretation)
	require.NotNil(t, short.Validation)
	assert.Equal(t, models.TestNotRun, short.Validation.RegressionAccuracy.Status)
	assert.Equal(t, models.GradeD, short.Validation.Grade)
	assert.Zero(t, f.metrics.errs["insufficient_history"])
}

func TestSuiteUseCase(t *testing.T) {
	f := newFixture(testutil.RandomWalk("SPY", 400, 1), testutil.RandomWalk("BTC-USD", 400, 2))
	suite := NewSuiteUseCase(f.risk, []string{"SPY"}, 2, time.Minute, nil)

	sum, err := suite.Run(context.Background(), models.SuiteRequest{Symbols: "spy, BTC-USD SPY,MISSING", Bars: 400})
	require.NoError(t, err)
	require.Len(t, sum.Entries, 3)
	assert.Equal(t, []string{"SPY", "BTC-USD", "MISSING"}, []string{sum.Entries[0].Symbol, sum.Entries[1].Symbol, sum.Entries[2].Symbol})
	assert.Equal(t, 1, sum.Failed)
	assert.NotEmpty(t, sum.Entries[2].Error)

	graded := 0
	for _, n := range sum.GradeDistribution {
		graded += n
	}
	assert.Equal(t, 2, graded)
	assert.InDelta(t, (sum.Entries[0].OverallScore+sum.Entries[1].OverallScore)/2, sum.MeanOverallScore, 1e-12)

	def, err := suite.Run(context.Background(), models.SuiteRequest{Bars: 400})
	require.NoError(t, err)
	require.Len(t, def.Entries, 1)
	assert.Equal(t, "SPY", def.Entries[0].Symbol)
}

func TestSummarize(t *testing.T) {
	sum := Summarize([]models.SuiteEntry{
		{Symbol: "A", OverallScore: 80, Grade: models.GradeA},
		{Symbol: "B", OverallScore: 40, Grade: models.GradeC},
		{Symbol: "C", Error: "not found"},
	})
	assert.Equal(t, 60.0, sum.MeanOverallScore)
	assert.Equal(t, map[models.Grade]int{models.GradeA: 1, models.GradeC: 1}, sum.GradeDistribution)
	assert.Equal(t, 1, sum.Failed)

	assert.Zero(t, Summarize(nil).MeanOverallScore)
}

func TestKafkaRequestsHandler(t *testing.T) {
	f := newFixture(testutil.RandomWalk("ETH-USD", 400, 9))
	locks := cache.NewMemoryCache()
	defer locks.Close()
	h := NewKafkaRequestsHandler("risklens.requests", f.risk, f.metrics, locks, nil)
	assert.Equal(t, "risklens.requests", h.Topic())

	t.Run("bad payloads are permanent failures", func(t *testing.T) {
		var he *pkgkafka.HookError
		require.ErrorAs(t, h.Handle(context.Background(), []byte(`{`)), &he)
		assert.Equal(t, "ERR_DECODE", he.Code)
		require.ErrorAs(t, h.Handle(context.Background(), []byte(`{"mode":"analyze"}`)), &he)
		assert.Equal(t, "ERR_VALIDATION", he.Code)
		require.ErrorAs(t, h.Handle(context.Background(), []byte(`{"symbol":"NOPE"}`)), &he)
		assert.Equal(t, "ERR_NOT_FOUND", he.Code)
	})

	t.Run("runs and publishes", func(t *testing.T) {
		before := f.pub.count()
		require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"ETH-USD","bars":400}`)))
		assert.Equal(t, before+1, f.pub.count())
	})

	t.Run("duplicate in flight is skipped", func(t *testing.T) {
		key := cache.GenerateKeyWithParams("lock", "request", "analyze", "ETH-USD", "1d", 400, "default", 0.0)
		ok, err := locks.TryLock(context.Background(), key, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		before := f.pub.count()
		require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"ETH-USD","bars":400}`)))
		assert.Equal(t, before, f.pub.count())
	})
}
