package repository

import (
	"math"
	"strings"
	"testing"

	"BTCPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleRows(t *testing.T) {
	rec := record("2024-01-01", 100)
	rec.Exchanges[models.ExchangeOKX] = models.DailyCandle{Date: "2024-01-01", Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}
	bad := record("2024-01-02", math.NaN())

	rows := candleRows(models.Series{rec, bad})
	require.Len(t, rows, 2)
	assert.Equal(t, models.ExchangeBinance, rows[0].exchange)
	assert.Equal(t, models.ExchangeOKX, rows[1].exchange)
	assert.Equal(t, "2024-01-01", rows[0].day.Format(models.DayLayout))
}

func TestInsertStatement(t *testing.T) {
	q := insertStatement("btcpulse.daily_candles", 3)
	assert.True(t, strings.HasPrefix(q, "INSERT INTO btcpulse.daily_candles (date, exchange,"))
	assert.Equal(t, 30, strings.Count(q, "?"))
	assert.False(t, strings.HasSuffix(q, ","))
}

func TestCandleSchema(t *testing.T) {
	stmts := candleSchema("daily_candles")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "ReplacingMergeTree(updated_at)")
	assert.Contains(t, stmts[0], "ORDER BY (exchange, date)")
}
