package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"RiskLens/internal/domain/models"
	applogger "RiskLens/pkg/logger"
)

// insertChunk caps the rows in one multi-row INSERT.
const insertChunk = 2000

// CHSeriesStore implements SeriesStore backed by a ClickHouse bar table.
type CHSeriesStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSeriesStore(db *sql.DB, table string) *CHSeriesStore {
	if table == "" {
		table = "price_bars"
	}
	return &CHSeriesStore{db: db, table: table}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) { s.l = l }

// Schema returns the idempotent DDL for the bar table.
func (s *CHSeriesStore) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol   LowCardinality(String),
            interval LowCardinality(String),
            date     DateTime64(3, 'UTC'),
            open     Float64,
            high     Float64,
            low      Float64,
            close    Float64,
            volume   Float64
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (symbol, interval, date)
    `, s.table)}
}

func (s *CHSeriesStore) GetSeries(ctx context.Context, symbol string, from, to time.Time, iv models.Interval) (*models.PriceSeries, error) {
	start := time.Now()
	const qtpl = `
        SELECT date, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND interval = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(iv), from.UTC(), to.UTC())
	if err != nil {
		s.logError("clickhouse get_series query error", symbol, iv, err)
		return nil, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows, 1024)
	if err != nil {
		s.logError("clickhouse get_series scan error", symbol, iv, err)
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", models.ErrSeriesNotFound, symbol, iv)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_series ok",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.String("interval", string(iv)),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return &models.PriceSeries{Symbol: symbol, Interval: iv, Bars: bars}, nil
}

func (s *CHSeriesStore) GetLatestN(ctx context.Context, symbol string, n int, iv models.Interval) (*models.PriceSeries, error) {
	start := time.Now()
	if n <= 0 {
		return nil, fmt.Errorf("latest n must be positive, got %d", n)
	}
	const qtpl = `
        SELECT date, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND interval = ?
        ORDER BY date DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(iv), n)
	if err != nil {
		s.logError("clickhouse latest_series query error", symbol, iv, err, applogger.Int("limit", n))
		return nil, fmt.Errorf("get latest series: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows, n)
	if err != nil {
		s.logError("clickhouse latest_series scan error", symbol, iv, err, applogger.Int("limit", n))
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", models.ErrSeriesNotFound, symbol, iv)
	}
	// reverse to ASC
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_series ok",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.String("interval", string(iv)),
			applogger.Int("limit", n),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return &models.PriceSeries{Symbol: symbol, Interval: iv, Bars: bars}, nil
}

// SaveSeries upserts bars using multi-row VALUES inserts. Rows with the same
// (symbol, interval, date) collapse on merge.
func (s *CHSeriesStore) SaveSeries(ctx context.Context, ps *models.PriceSeries) error {
	if ps == nil || len(ps.Bars) == 0 {
		return nil
	}
	if ps.Symbol == "" {
		return fmt.Errorf("save series: empty symbol")
	}
	iv := ps.Interval
	if iv == "" {
		iv = models.Interval1d
	}

	for start := 0; start < len(ps.Bars); start += insertChunk {
		end := start + insertChunk
		if end > len(ps.Bars) {
			end = len(ps.Bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, b := range ps.Bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, ps.Symbol, string(iv), b.Date.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, interval, date, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logError("clickhouse save_series insert error", ps.Symbol, iv, err, applogger.Int("offset", start))
			return fmt.Errorf("save series %s: %w", ps.Symbol, err)
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse save_series ok",
			applogger.String("table", s.table),
			applogger.String("symbol", ps.Symbol),
			applogger.Int("rows", len(ps.Bars)),
		)
	}
	return nil
}

// Health pings the underlying connection.
func (s *CHSeriesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanBars(rows *sql.Rows, capacity int) ([]models.PriceBar, error) {
	out := make([]models.PriceBar, 0, capacity)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = b.Date.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSeriesStore) logError(msg, symbol string, iv models.Interval, err error, extra ...applogger.Field) {
	if s.l == nil {
		return
	}
	fields := append([]applogger.Field{
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("interval", string(iv)),
		applogger.Error(err),
	}, extra...)
	s.l.Error(msg, fields...)
}
