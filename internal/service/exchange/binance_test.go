package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"BTCPulse/internal/domain/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

func klineRow(open int64, price float64) []interface{} {
	p := strconv.FormatFloat(price, 'f', 2, 64)
	return []interface{}{
		open, p, strconv.FormatFloat(price+10, 'f', 2, 64), strconv.FormatFloat(price-10, 'f', 2, 64), p,
		"2.5", open + dayMs - 1, "250.0", 50, "1", "100", "0",
	}
}

// binanceServer serves days 1..n of January 2024 at most limit per page.
// failAfter > 0 makes every request after that many pages fail.
func binanceServer(t *testing.T, n, failAfter int, pages *int32) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.GET("/api/v3/klines", func(c echo.Context) error {
		served := atomic.AddInt32(pages, 1)
		if failAfter > 0 && int(served) > failAfter {
			return c.String(http.StatusServiceUnavailable, "maintenance")
		}
		assert.Equal(t, "BTCUSDT", c.QueryParam("symbol"))
		assert.Equal(t, "1d", c.QueryParam("interval"))
		limit := int(queryInt64(c, "limit"))
		from, to := queryInt64(c, "startTime"), queryInt64(c, "endTime")
		rows := [][]interface{}{}
		for d := 1; d <= n && len(rows) < limit; d++ {
			open := day(d).UnixMilli()
			if open >= from && open <= to {
				rows = append(rows, klineRow(open, 40000+float64(d)*100))
			}
		}
		return c.JSON(http.StatusOK, rows)
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestBinancePaginates(t *testing.T) {
	var pages int32
	srv := binanceServer(t, 5, 0, &pages)
	s := fastSettings(DefaultBinanceSettings(), srv.URL)
	s.PageLimit = 2

	out, err := NewBinance(s).Fetch(context.Background(), day(1), endOfDay(5))
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&pages))

	first := out[0]
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, 40100.0, first.Close)
	assert.Equal(t, 40110.0, first.High)
	assert.Equal(t, 2.5, first.Volume)
	require.NotNil(t, first.QuoteVolume)
	assert.Equal(t, 250.0, *first.QuoteVolume)
	require.NotNil(t, first.Trades)
	assert.Equal(t, int64(50), *first.Trades)
	require.NotNil(t, first.AvgPrice)
	assert.Equal(t, 100.0, *first.AvgPrice)
	require.NotNil(t, first.AvgTradeSize)
	assert.InDelta(t, 0.05, *first.AvgTradeSize, 1e-12)

	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].Date, out[i].Date)
	}
}

func TestBinanceRotatesToMirror(t *testing.T) {
	var bad, pages int32
	primary := failing(&bad)
	defer primary.Close()
	mirror := binanceServer(t, 3, 0, &pages)

	s := fastSettings(DefaultBinanceSettings(), primary.URL, mirror.URL)
	b := NewBinance(s)
	out, err := b.Fetch(context.Background(), day(1), endOfDay(3))
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&bad))
	assert.Equal(t, mirror.URL, b.Endpoint())
}

func TestBinanceKeepsPartialData(t *testing.T) {
	var pages int32
	srv := binanceServer(t, 6, 1, &pages)
	s := fastSettings(DefaultBinanceSettings(), srv.URL)
	s.PageLimit = 2
	s.Retry.MaxFailures = 3

	out, err := NewBinance(s).Fetch(context.Background(), day(1), endOfDay(6))
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, int32(4), atomic.LoadInt32(&pages))
}

func TestBinanceUnavailable(t *testing.T) {
	var hits int32
	a, b := failing(&hits), failing(&hits)
	defer a.Close()
	defer b.Close()

	s := fastSettings(DefaultBinanceSettings(), a.URL, b.URL)
	s.Retry.MaxFailures = 4
	out, err := NewBinance(s).Fetch(context.Background(), day(1), endOfDay(3))
	assert.Empty(t, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)

	var se *models.SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ExchangeBinance, se.Source)
	assert.Equal(t, 4, se.Attempts)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}

func TestBinanceDropsMalformedRows(t *testing.T) {
	e := echo.New()
	e.GET("/api/v3/klines", func(c echo.Context) error {
		good := klineRow(day(1).UnixMilli(), 100)
		short := []interface{}{day(2).UnixMilli(), "1"}
		bad := klineRow(day(3).UnixMilli(), 100)
		bad[4] = "n/a"
		return c.JSON(http.StatusOK, [][]interface{}{good, short, bad})
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	s := fastSettings(DefaultBinanceSettings(), srv.URL)
	out, err := NewBinance(s).Fetch(context.Background(), day(1), endOfDay(3))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2024-01-01", out[0].Date)
}
