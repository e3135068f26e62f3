package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"BTCPulse/internal/domain/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func huobiServer(t *testing.T, status string) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.GET("/market/history/kline", func(c echo.Context) error {
		assert.Equal(t, "btcusdt", c.QueryParam("symbol"))
		assert.Equal(t, "1day", c.QueryParam("period"))
		assert.Equal(t, "2000", c.QueryParam("size"))
		data := []map[string]interface{}{}
		for d := 6; d >= 1; d-- {
			row := map[string]interface{}{
				"id": day(d).Unix(), "open": 100.0, "high": 110.0, "low": 90.0, "close": 100.0 + float64(d),
				"amount": 3.0, "vol": 300.0, "count": 42,
			}
			if d == 2 {
				row["open"] = nil
			}
			data = append(data, row)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"status": status, "data": data})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestHuobiFiltersAndMapsFields(t *testing.T) {
	srv := huobiServer(t, "ok")
	out, err := NewHuobi(fastSettings(DefaultHuobiSettings(), srv.URL)).Fetch(context.Background(), day(1), endOfDay(4))
	require.NoError(t, err)

	// day 2 has no open, days 5 and 6 are out of range
	require.Len(t, out, 3)
	assert.Equal(t, []string{"2024-01-01", "2024-01-03", "2024-01-04"}, []string{out[0].Date, out[1].Date, out[2].Date})
	c := out[2]
	assert.Equal(t, 104.0, c.Close)
	assert.Equal(t, 3.0, c.Volume)
	require.NotNil(t, c.QuoteVolume)
	assert.Equal(t, 300.0, *c.QuoteVolume)
	require.NotNil(t, c.Trades)
	assert.Equal(t, int64(42), *c.Trades)
}

func TestHuobiBadStatusFallsBackToMirror(t *testing.T) {
	bad := huobiServer(t, "error")
	good := huobiServer(t, "ok")
	h := NewHuobi(fastSettings(DefaultHuobiSettings(), bad.URL, good.URL))

	out, err := h.Fetch(context.Background(), day(1), endOfDay(6))
	require.NoError(t, err)
	assert.Len(t, out, 5)
	assert.Equal(t, good.URL, h.Endpoint())
}

func TestHuobiUnavailable(t *testing.T) {
	var hits int32
	srv := failing(&hits)
	defer srv.Close()
	s := fastSettings(DefaultHuobiSettings(), srv.URL)
	s.Retry.MaxFailures = 2

	out, err := NewHuobi(s).Fetch(context.Background(), day(1), endOfDay(3))
	assert.Empty(t, out)
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
