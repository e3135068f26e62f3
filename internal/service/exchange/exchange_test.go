package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func endOfDay(d int) time.Time { return day(d).Add(24*time.Hour - time.Millisecond) }

func fastSettings(s Settings, urls ...string) Settings {
	s.BaseURL = urls[0]
	s.Mirrors = urls[1:]
	s.Retry.Delay = time.Millisecond
	s.PageDelay = 0
	s.PauseDuration = 0
	s.RequestTimeout = time.Second
	return s
}

func failing(hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
}

func TestEndpointsRotate(t *testing.T) {
	e := NewEndpoints("https://a/", "https://b", "", "https://a")
	assert.Equal(t, 2, e.Len())
	assert.Equal(t, "https://a", e.Current())
	assert.Equal(t, "https://b", e.Rotate())
	assert.Equal(t, "https://a", e.Rotate())
}

func TestRetrierStopsAtCeiling(t *testing.T) {
	eps := NewEndpoints("a", "b", "c")
	r := NewRetrier("test", RetryPolicy{Kind: PolicyLinear, Delay: time.Microsecond, MaxFailures: 4}, eps, nopLogger(), nopMetrics())

	var seen []string
	attempts, err := r.Do(context.Background(), func(_ context.Context, base string) error {
		seen = append(seen, base)
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []string{"a", "b", "c", "a"}, seen)
}

func TestRetrierSucceedsAfterRotation(t *testing.T) {
	eps := NewEndpoints("bad", "good")
	r := NewRetrier("test", RetryPolicy{Kind: PolicyExponential, Delay: time.Microsecond, MaxFailures: 3}, eps, nopLogger(), nopMetrics())

	attempts, err := r.Do(context.Background(), func(_ context.Context, base string) error {
		if base == "bad" {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "good", eps.Current())
}

func TestRetrierHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier("test", RetryPolicy{Kind: PolicyConstant, Delay: time.Hour, MaxFailures: 10}, NewEndpoints("a"), nopLogger(), nopMetrics())

	attempts, err := r.Do(ctx, func(context.Context, string) error {
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPacerPausesOnBoundary(t *testing.T) {
	p := NewPacer(0, 100, time.Millisecond)
	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Add(ctx, 60))
	start := time.Now()
	require.NoError(t, p.Add(ctx, 60))
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	q := NewPacer(0, 1, time.Hour)
	assert.ErrorIs(t, q.Add(cancelled, 1), context.Canceled)
}

func TestFinalize(t *testing.T) {
	in := []models.DailyCandle{
		{Date: "2024-01-03", Close: 3},
		{Date: "2023-12-31", Close: 0},
		{Date: "2024-01-01", Close: 1},
		{Date: "2024-01-03", Close: 33},
		{Date: "2024-01-06", Close: 6},
	}
	out := finalize(in, day(1), endOfDay(5))
	require.Len(t, out, 2)
	assert.Equal(t, "2024-01-01", out[0].Date)
	assert.Equal(t, "2024-01-03", out[1].Date)
	assert.Equal(t, 33.0, out[1].Close)
}

func TestSettingsMerge(t *testing.T) {
	s := DefaultBinanceSettings().Merge(config.ExchangeConfig{
		MaxFailures: 3,
		RetryDelay:  time.Second,
		Mirrors:     []string{},
	})
	assert.Equal(t, 3, s.Retry.MaxFailures)
	assert.Equal(t, time.Second, s.Retry.Delay)
	assert.Empty(t, s.Mirrors)
	assert.Equal(t, "BTCUSDT", s.Symbol)
	assert.Equal(t, 1000, s.PageLimit)
}

func TestNewSourcesSkipsDisabled(t *testing.T) {
	srcs := NewSources(config.ExchangesConfig{OKX: config.ExchangeConfig{Disabled: true}})
	require.Len(t, srcs, 2)
	assert.Equal(t, models.ExchangeBinance, srcs[0].Name())
	assert.Equal(t, models.ExchangeHuobi, srcs[1].Name())
}

// queryInt64 reads an integer query parameter from an echo context.
func queryInt64(c echo.Context, name string) int64 {
	v, _ := strconv.ParseInt(c.QueryParam(name), 10, 64)
	return v
}
