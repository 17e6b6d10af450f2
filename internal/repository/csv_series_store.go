package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"RiskLens/internal/domain/models"
	applogger "RiskLens/pkg/logger"
	"RiskLens/pkg/util"
)

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// CSVSeriesStore reads and writes one <SYMBOL>.csv file per symbol in a directory.
// Files carry no interval column; the requested interval is stamped on the result.
type CSVSeriesStore struct {
	dir string
	l   *applogger.Logger
}

func NewCSVSeriesStore(dir string) *CSVSeriesStore {
	return &CSVSeriesStore{dir: dir}
}

// SetLogger injects a structured logger.
func (s *CSVSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVSeriesStore) GetSeries(ctx context.Context, symbol string, from, to time.Time, iv models.Interval) (*models.PriceSeries, error) {
	all, err := s.load(ctx, symbol, iv)
	if err != nil {
		return nil, err
	}
	bars := make([]models.PriceBar, 0, len(all.Bars))
	for _, b := range all.Bars {
		if (from.IsZero() || !b.Date.Before(from)) && (to.IsZero() || !b.Date.After(to)) {
			bars = append(bars, b)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s between %s and %s", models.ErrSeriesNotFound, symbol,
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	all.Bars = bars
	return all, nil
}

func (s *CSVSeriesStore) GetLatestN(ctx context.Context, symbol string, n int, iv models.Interval) (*models.PriceSeries, error) {
	if n <= 0 {
		return nil, fmt.Errorf("latest n must be positive, got %d", n)
	}
	all, err := s.load(ctx, symbol, iv)
	if err != nil {
		return nil, err
	}
	if len(all.Bars) > n {
		all.Bars = all.Bars[len(all.Bars)-n:]
	}
	return all, nil
}

// SaveSeries replaces the symbol's file atomically.
func (s *CSVSeriesStore) SaveSeries(_ context.Context, ps *models.PriceSeries) error {
	if ps == nil {
		return nil
	}
	path, err := s.path(ps.Symbol)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create csv dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".series-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, ps); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	if s.l != nil {
		s.l.Info("csv save_series ok",
			applogger.String("path", path),
			applogger.Int("rows", len(ps.Bars)),
		)
	}
	return nil
}

func (s *CSVSeriesStore) load(ctx context.Context, symbol string, iv models.Interval) (*models.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(symbol)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, symbol)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ps, err := ReadCSV(f, symbol)
	if err != nil {
		if s.l != nil {
			s.l.Error("csv read_series error",
				applogger.String("path", path),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, err
	}
	if iv == "" {
		iv = models.DefaultInterval()
	}
	ps.Interval = iv
	return ps, nil
}

func (s *CSVSeriesStore) path(symbol string) (string, error) {
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.Contains(symbol, "..") {
		return "", fmt.Errorf("invalid symbol %q", symbol)
	}
	return filepath.Join(s.dir, symbol+".csv"), nil
}

// ReadCSV parses a bar file. Columns are matched by header name, case-insensitively;
// date and close are required ("adj close" is accepted for close). Rows are kept
// in file order so that ordering problems surface in series validation.
func ReadCSV(r io.Reader, symbol string) (*models.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &models.MalformedSeriesError{Symbol: symbol, Index: -1, Reason: "series is empty"}
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "timestamp" || name == "time" {
			name = "date"
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	if _, ok := cols["close"]; !ok {
		if i, ok := cols["adj close"]; ok {
			cols["close"] = i
		}
	}
	for _, req := range []string{"date", "close"} {
		if _, ok := cols[req]; !ok {
			return nil, &models.MalformedSeriesError{Symbol: symbol, Index: -1, Reason: "missing column " + req}
		}
	}

	ps := &models.PriceSeries{Symbol: symbol}
	for idx := 0; ; idx++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", idx, err)
		}
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		date, ok := util.ParseTime(cell("date"))
		if !ok {
			return nil, &models.MalformedSeriesError{Symbol: symbol, Index: idx, Reason: fmt.Sprintf("unparseable date %q", cell("date"))}
		}
		closePx, ok := util.ParseFloat(cell("close"))
		if !ok {
			return nil, &models.MalformedSeriesError{Symbol: symbol, Index: idx, Reason: fmt.Sprintf("unparseable close %q", cell("close"))}
		}
		b := models.PriceBar{Date: date, Close: closePx}
		b.Open, _ = util.ParseFloat(cell("open"))
		b.High, _ = util.ParseFloat(cell("high"))
		b.Low, _ = util.ParseFloat(cell("low"))
		b.Volume, _ = util.ParseFloat(cell("volume"))
		ps.Bars = append(ps.Bars, b)
	}
	if len(ps.Bars) == 0 {
		return nil, &models.MalformedSeriesError{Symbol: symbol, Index: -1, Reason: "series is empty"}
	}
	return ps, nil
}

// WriteCSV writes bars with the canonical header.
func WriteCSV(w io.Writer, ps *models.PriceSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range ps.Bars {
		date := b.Date.UTC().Format(time.DateOnly)
		if ps.Interval == models.Interval1h {
			date = b.Date.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{date, f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume)}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
