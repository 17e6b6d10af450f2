package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RiskLens/internal/domain/models"
	domrepo "RiskLens/internal/domain/repository"
	"RiskLens/internal/domain/service"
	"RiskLens/internal/services/backtest"
	"RiskLens/internal/services/features"
	"RiskLens/internal/services/scoring"
	"RiskLens/internal/services/validation"
	"RiskLens/pkg/logger"
)

// RiskUseCase loads a series, runs one analysis mode over it, interprets the
// result and ships the report.
type RiskUseCase struct {
	store   domrepo.SeriesStore
	interp  service.Interpreter
	pub     domrepo.ReportPublisher
	metrics domrepo.Metrics
	cfg     models.RiskConfig
	l       *logger.Logger
	timeout time.Duration
}

// RiskOption configures RiskUseCase.
type RiskOption func(*RiskUseCase)

// WithRiskLogger sets the logger.
func WithRiskLogger(l *logger.Logger) RiskOption {
	return func(uc *RiskUseCase) { uc.l = l }
}

// WithRiskTimeout bounds a single run, including loading.
func WithRiskTimeout(d time.Duration) RiskOption {
	return func(uc *RiskUseCase) { uc.timeout = d }
}

// WithReportPublisher sets where completed reports go.
func WithReportPublisher(p domrepo.ReportPublisher) RiskOption {
	return func(uc *RiskUseCase) { uc.pub = p }
}

func NewRiskUseCase(store domrepo.SeriesStore, interp service.Interpreter, metrics domrepo.Metrics, cfg models.RiskConfig, opts ...RiskOption) *RiskUseCase {
	uc := &RiskUseCase{
		store:   store,
		interp:  interp,
		metrics: metrics,
		cfg:     cfg,
		l:       logger.NewNop(),
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Config returns the risk configuration in use.
func (uc *RiskUseCase) Config() models.RiskConfig { return uc.cfg }

// Analyze scores the latest bars of a symbol.
func (uc *RiskUseCase) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.RiskReport, error) {
	return uc.run(ctx, models.ModeAnalyze, req.Symbol, req.Interval, req.Bars, func(s *models.PriceSeries) (*models.RiskReport, error) {
		a, err := scoring.Analyze(s, uc.cfg)
		if err != nil {
			return nil, err
		}
		r := reportFromAnalysis(models.ModeAnalyze, a)
		r.Interpretation = uc.interpret(ctx, a, nil)
		return r, nil
	})
}

// Backtest replays a named signal policy over the scored history.
func (uc *RiskUseCase) Backtest(ctx context.Context, req models.BacktestRequest) (*models.RiskReport, error) {
	policy, err := backtest.PolicyByName(req.Policy)
	if err != nil {
		return nil, err
	}
	cfg := uc.cfg
	if req.Fee > 0 {
		cfg.Backtest.FeeRate = req.Fee
	}
	return uc.run(ctx, models.ModeBacktest, req.Symbol, req.Interval, req.Bars, func(s *models.PriceSeries) (*models.RiskReport, error) {
		cfg := cfg
		if s.Interval != "" && s.Interval != models.Interval1d {
			cfg.Backtest.PeriodsPerYear = features.BarsPerYear(s.Interval)
		}
		a, err := scoring.Analyze(s, cfg)
		if err != nil {
			return nil, err
		}
		res, err := backtest.RunScores(s, a.Reliable(), policy, cfg.Backtest)
		if err != nil {
			return nil, err
		}
		r := reportFromAnalysis(models.ModeBacktest, a)
		r.Backtest = res
		return r, nil
	})
}

// Validate grades the model's historical behaviour on the symbol.
func (uc *RiskUseCase) Validate(ctx context.Context, req models.ValidateRequest) (*models.RiskReport, error) {
	return uc.run(ctx, models.ModeValidate, req.Symbol, req.Interval, req.Bars, func(s *models.PriceSeries) (*models.RiskReport, error) {
		rep, a, err := validation.ValidateWithAnalysis(s, uc.cfg)
		if err != nil {
			return nil, err
		}
		if a == nil {
			// too short to score: the report carries only the not_run sub-tests
			return &models.RiskReport{Symbol: s.Symbol, Mode: models.ModeValidate, Validation: rep}, nil
		}
		r := reportFromAnalysis(models.ModeValidate, a)
		r.Validation = rep
		r.Interpretation = uc.interpret(ctx, a, rep)
		return r, nil
	})
}

// Run dispatches a queued request to its mode.
func (uc *RiskUseCase) Run(ctx context.Context, req models.RiskRequest) (*models.RiskReport, error) {
	switch req.Mode {
	case models.ModeAnalyze, "":
		return uc.Analyze(ctx, models.AnalyzeRequest{Symbol: req.Symbol, Interval: req.Interval, Bars: req.Bars})
	case models.ModeBacktest:
		return uc.Backtest(ctx, models.BacktestRequest{Symbol: req.Symbol, Interval: req.Interval, Bars: req.Bars, Policy: req.Policy, Fee: req.Fee})
	case models.ModeValidate:
		return uc.Validate(ctx, models.ValidateRequest{Symbol: req.Symbol, Interval: req.Interval, Bars: req.Bars})
	default:
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
}

// LoadSeries fetches and validates the latest bars of a symbol.
func (uc *RiskUseCase) LoadSeries(ctx context.Context, symbol, interval string, bars int) (*models.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if bars <= 0 {
		bars = 5000
	}
	s, err := uc.store.GetLatestN(ctx, symbol, bars, models.NormalizeInterval(interval))
	if err != nil {
		return nil, err
	}
	if err := s.Validate(uc.cfg.MaxGap); err != nil {
		return nil, err
	}
	return s, nil
}

func (uc *RiskUseCase) run(ctx context.Context, mode, symbol, interval string, bars int, fn func(*models.PriceSeries) (*models.RiskReport, error)) (*models.RiskReport, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	s, err := uc.LoadSeries(ctx, symbol, interval, bars)
	if err != nil {
		return nil, uc.fail(mode, symbol, err)
	}
	r, err := fn(s)
	if err != nil {
		return nil, uc.fail(mode, s.Symbol, err)
	}

	if uc.pub != nil {
		if err := uc.pub.Publish(ctx, r); err != nil {
			uc.metrics.RecordError("publish")
			uc.l.Warn("report publish failed",
				logger.String("symbol", r.Symbol),
				logger.String("mode", mode),
				logger.Error(err),
			)
		}
	}

	took := time.Since(start)
	uc.metrics.RecordLatency(mode, took.Seconds())
	if r.Latest != nil {
		uc.metrics.RecordAnalysis(mode, r.Symbol, r.Latest.Signal)
		uc.metrics.RecordRiskScore(r.Symbol, r.Latest.Value)
	}
	uc.l.Info("risk run ok",
		logger.String("symbol", r.Symbol),
		logger.String("mode", mode),
		logger.Int("bars", s.Len()),
		logger.Duration("took", took),
	)
	return r, nil
}

func (uc *RiskUseCase) fail(mode, symbol string, err error) error {
	kind := ErrorKind(err)
	uc.metrics.RecordError(kind)
	fields := []logger.Field{
		logger.String("symbol", symbol),
		logger.String("mode", mode),
		logger.String("kind", kind),
		logger.Error(err),
	}
	if kind == "internal" {
		uc.l.Error("risk run failed", fields...)
	} else {
		uc.l.Warn("risk run rejected", fields...)
	}
	return err
}

func (uc *RiskUseCase) interpret(ctx context.Context, a *models.Analysis, rep *models.ValidationReport) *models.Interpretation {
	if uc.interp == nil {
		return nil
	}
	latest, ok := a.Latest()
	if !ok {
		return nil
	}
	out, err := uc.interp.Interpret(ctx, models.InterpretationInput{
		Symbol:     a.Symbol,
		Latest:     latest,
		Metadata:   a.Metadata,
		Validation: rep,
	})
	if err != nil {
		uc.l.Warn("interpretation failed", logger.String("symbol", a.Symbol), logger.Error(err))
		return nil
	}
	return &out
}

// ErrorKind classifies an error for metrics labels.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, models.ErrMalformedSeries):
		return "malformed_series"
	case errors.Is(err, models.ErrSeriesNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}

func reportFromAnalysis(mode string, a *models.Analysis) *models.RiskReport {
	r := &models.RiskReport{Symbol: a.Symbol, Mode: mode}
	if latest, ok := a.Latest(); ok {
		r.Latest = &latest
	}
	meta := a.Metadata
	r.Metadata = &meta
	return r
}
