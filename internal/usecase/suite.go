package usecase

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"RiskLens/internal/domain/models"
	"RiskLens/pkg/logger"
)

// SuiteUseCase validates a list of symbols concurrently and aggregates the grades.
type SuiteUseCase struct {
	risk        *RiskUseCase
	symbols     []string
	concurrency int
	timeout     time.Duration
	l           *logger.Logger
}

func NewSuiteUseCase(risk *RiskUseCase, symbols []string, concurrency int, timeout time.Duration, l *logger.Logger) *SuiteUseCase {
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &SuiteUseCase{risk: risk, symbols: symbols, concurrency: concurrency, timeout: timeout, l: l}
}

// Symbols returns the default suite.
func (uc *SuiteUseCase) Symbols() []string { return append([]string(nil), uc.symbols...) }

// Run validates every symbol. Per-symbol failures are recorded on the entry and
// never abort the others; the summary is built only after all workers joined.
func (uc *SuiteUseCase) Run(ctx context.Context, req models.SuiteRequest) (*models.SuiteSummary, error) {
	symbols := ParseSymbols(req.Symbols)
	if len(symbols) == 0 {
		symbols = uc.Symbols()
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	entries := make([]models.SuiteEntry, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			entries[i] = uc.entry(gctx, sym, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := Summarize(entries)
	uc.l.Info("suite run ok",
		logger.Int("symbols", len(symbols)),
		logger.Int("failed", sum.Failed),
		logger.Float64("mean_overall_score", sum.MeanOverallScore),
		logger.Duration("took", time.Since(start)),
	)
	return sum, nil
}

func (uc *SuiteUseCase) entry(ctx context.Context, symbol string, req models.SuiteRequest) models.SuiteEntry {
	e := models.SuiteEntry{Symbol: symbol}
	r, err := uc.risk.Validate(ctx, models.ValidateRequest{Symbol: symbol, Interval: req.Interval, Bars: req.Bars})
	if err != nil {
		e.Error = err.Error()
		return e
	}
	if r.Validation != nil {
		e.OverallScore = r.Validation.OverallScore
		e.Grade = r.Validation.Grade
	}
	if r.Latest != nil {
		e.LastRisk = r.Latest.Value
		e.Signal = r.Latest.Signal
	}
	return e
}

// Summarize aggregates suite entries. Failed entries count only towards Failed.
func Summarize(entries []models.SuiteEntry) *models.SuiteSummary {
	sum := &models.SuiteSummary{
		Entries:           entries,
		GradeDistribution: map[models.Grade]int{},
	}
	total, ok := 0.0, 0
	for _, e := range entries {
		if e.Error != "" {
			sum.Failed++
			continue
		}
		total += e.OverallScore
		ok++
		sum.GradeDistribution[e.Grade]++
	}
	if ok > 0 {
		sum.MeanOverallScore = total / float64(ok)
	}
	return sum
}

// ParseSymbols splits a comma or space separated list, uppercasing and dropping duplicates.
func ParseSymbols(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
