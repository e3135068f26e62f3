package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	pkgch "BTCPulse/pkg/clickhouse"
	applogger "BTCPulse/pkg/logger"
)

// insertChunk bounds rows per INSERT statement.
const insertChunk = 2000

// CHCandleStore mirrors validated daily candles into ClickHouse. The table is a
// ReplacingMergeTree keyed by (exchange, date), so re-storing a day replaces it.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.CandleMirror = (*CHCandleStore)(nil)

func NewCHCandleStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{db: ch.DB(), table: table, l: l}
}

func candleSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            date         Date,
            exchange     LowCardinality(String),
            open         Float64,
            high         Float64,
            low          Float64,
            close        Float64,
            volume       Float64,
            quote_volume Nullable(Float64),
            trades       Nullable(Int64),
            updated_at   DateTime
        )
        ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY (exchange, date)
    `, table)}
}

func (s *CHCandleStore) Init(ctx context.Context) error {
	for _, stmt := range candleSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse init %s: %w", s.table, err)
		}
	}
	return nil
}

type candleRow struct {
	exchange string
	day      time.Time
	candle   models.DailyCandle
}

// candleRows flattens the series in date then exchange order, skipping
// candles that cannot be stored as numbers.
func candleRows(series models.Series) []candleRow {
	var rows []candleRow
	for _, rec := range series {
		exchanges := make([]string, 0, len(rec.Exchanges))
		for ex := range rec.Exchanges {
			exchanges = append(exchanges, ex)
		}
		sort.Strings(exchanges)
		for _, ex := range exchanges {
			c := rec.Exchanges[ex]
			day := c.Day()
			if day.IsZero() || !c.IsComplete() {
				continue
			}
			rows = append(rows, candleRow{exchange: ex, day: day, candle: c})
		}
	}
	return rows
}

func insertStatement(table string, n int) string {
	values := strings.TrimSuffix(strings.Repeat("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?),", n), ",")
	return fmt.Sprintf("INSERT INTO %s (date, exchange, open, high, low, close, volume, quote_volume, trades, updated_at) VALUES %s", table, values)
}

func (s *CHCandleStore) StoreSeries(ctx context.Context, series models.Series) error {
	rows := candleRows(series)
	now := time.Now().UTC().Truncate(time.Second)
	start := time.Now()
	for lo := 0; lo < len(rows); lo += insertChunk {
		hi := min(lo+insertChunk, len(rows))
		args := make([]any, 0, (hi-lo)*10)
		for _, r := range rows[lo:hi] {
			c := r.candle
			args = append(args, r.day, r.exchange, c.Open, c.High, c.Low, c.Close, c.Volume, c.QuoteVolume, c.Trades, now)
		}
		if _, err := s.db.ExecContext(ctx, insertStatement(s.table, hi-lo), args...); err != nil {
			s.l.Error("clickhouse insert failed",
				applogger.String("table", s.table),
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("clickhouse insert: %w", err)
		}
	}
	s.l.Debug("clickhouse mirror updated",
		applogger.String("table", s.table),
		applogger.Int("rows", len(rows)),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (s *CHCandleStore) Query(ctx context.Context, exchange string, from, to time.Time) ([]models.DailyCandle, error) {
	q := fmt.Sprintf(`
        SELECT date, open, high, low, close, volume, quote_volume, trades
        FROM %s FINAL
        WHERE exchange = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, exchange, from, to)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query: %w", err)
	}
	defer rows.Close()

	var out []models.DailyCandle
	for rows.Next() {
		var (
			c      models.DailyCandle
			day    time.Time
			quote  sql.NullFloat64
			trades sql.NullInt64
		)
		if err := rows.Scan(&day, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &quote, &trades); err != nil {
			return nil, err
		}
		c.Date = day.UTC().Format(models.DayLayout)
		if quote.Valid {
			c.QuoteVolume = models.Float64Ptr(quote.Float64)
		}
		if trades.Valid {
			c.Trades = models.Int64Ptr(trades.Int64)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHCandleStore) Close() error { return nil }
