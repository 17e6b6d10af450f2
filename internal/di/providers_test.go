package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	internalrepo "RiskLens/internal/repository"
	"RiskLens/internal/services/interpreter"
	series "RiskLens/internal/testutil"
	"RiskLens/pkg/cache"
	"RiskLens/pkg/config"
	applogger "RiskLens/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Data.CSVDir = t.TempDir()
	return cfg
}

func TestProvideSeriesStoreWrapsCSVWithCache(t *testing.T) {
	cfg := testConfig(t)
	store, err := ProvideSeriesStore(cfg, nil, cache.NewMemoryCache(), applogger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &internalrepo.CachedSeriesStore{}, store)

	cfg.Data.CacheTTL = 0
	store, err = ProvideSeriesStore(cfg, nil, cache.NewMemoryCache(), applogger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &internalrepo.CSVSeriesStore{}, store)

	cfg.Data.Source = config.SourceClickHouse
	_, err = ProvideSeriesStore(cfg, nil, nil, applogger.NewNop())
	assert.Error(t, err)
}

func TestProvideInterpreterSelection(t *testing.T) {
	cfg := testConfig(t)
	in, err := ProvideInterpreter(cfg, cache.NewMemoryCache(), applogger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &interpreter.RuleBased{}, in)

	cfg.Interpreter.APIKey = "sk-test"
	in, err = ProvideInterpreter(cfg, cache.NewMemoryCache(), applogger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &interpreter.Fallback{}, in)
}

func TestProvideReportPublisherWithoutKafka(t *testing.T) {
	cfg := testConfig(t)
	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.IsType(t, internalrepo.NopReportPublisher{}, ProvideReportPublisher(cfg, producer))
}

func TestProvideRequestQueue(t *testing.T) {
	cfg := testConfig(t)
	q, err := ProvideRequestQueue(cfg, cache.NewMemoryCache(), applogger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Nil(t, ProvideRiskJobs(cfg, nil, q, cache.NewMemoryCache(), applogger.NewNop()))

	cfg.Queue.Enabled = true
	_, err = ProvideRequestQueue(cfg, cache.NewMemoryCache(), applogger.NewNop())
	assert.ErrorContains(t, err, "queue needs a redis cache")
}

func TestInitializeToolkitRunsAnalysisFromCSV(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logger.Output = "stdout"
	tk, err := InitializeToolkit(cfg)
	require.NoError(t, err)
	defer tk.Close()

	ctx := context.Background()
	require.NoError(t, tk.Store.SaveSeries(ctx, series.RandomWalk("SPY", 400, 9)))

	rep, err := tk.Risk.Analyze(ctx, models.AnalyzeRequest{Symbol: "spy", Interval: "1d", Bars: 400})
	require.NoError(t, err)
	assert.Equal(t, "SPY", rep.Symbol)
	require.NotNil(t, rep.Interpretation)
	assert.Equal(t, interpreter.SourceRules, rep.Interpretation.Source)
}
