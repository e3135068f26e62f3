package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	models "BTCPulse/internal/domain/models"
	"BTCPulse/internal/repository"
	"BTCPulse/internal/usecase"
	"BTCPulse/pkg/cache"
	"BTCPulse/pkg/config"
	xhttp "BTCPulse/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Warning string           `json:"warning"`
	Error   *xhttp.ErrorBody `json:"error"`
}

func newTestStore(t *testing.T) *repository.FileStore {
	t.Helper()
	cfg := config.Default().Storage
	cfg.DataDir = t.TempDir()
	return repository.NewFileStore(cfg)
}

func newTestMarket(t *testing.T, store *repository.FileStore) *usecase.MarketQueryUseCase {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return usecase.NewMarketQueryUseCase(store, usecase.WithMarketCache(mc, time.Minute))
}

func newTestEcho(t *testing.T, store *repository.FileStore) *echo.Echo {
	t.Helper()
	h := NewMarketHandler(nil, newTestMarket(t, store))
	return xhttp.NewServer(h, nil).Echo()
}

func seedSeries(t *testing.T, store *repository.FileStore, n int) models.Series {
	t.Helper()
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, n)
	for i := range s {
		date := start.AddDate(0, 0, i).Format(models.DayLayout)
		price := 100 + float64(i)
		s[i] = models.MergedDayRecord{Date: date, Exchanges: map[string]models.DailyCandle{
			models.ExchangeBinance: {Date: date, Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 10},
			models.ExchangeOKX:     {Date: date, Open: price, High: price + 1, Low: price - 1, Close: price + 2, Volume: 30},
		}}
	}
	require.NoError(t, store.SaveSeries(context.Background(), s))
	return s
}

func get(t *testing.T, e *echo.Echo, target string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestMarketHandlerWithoutData(t *testing.T) {
	e := newTestEcho(t, newTestStore(t))

	code, env := get(t, e, "/api/klines?exchange=binance")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, env.Success)
	assert.Equal(t, xhttp.CodeDataFileNotFound, env.Error.Code)

	code, env = get(t, e, "/api/analysis")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, xhttp.CodeDataFileNotFound, env.Error.Code)

	code, env = get(t, e, "/api/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestMarketHandlerEmptyDataset(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveSeries(context.Background(), models.Series{}))
	e := newTestEcho(t, store)

	code, env := get(t, e, "/api/klines?exchange=okx")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, xhttp.CodeInvalidData, env.Error.Code)
}

func TestMarketHandlerKlines(t *testing.T) {
	store := newTestStore(t)
	seedSeries(t, store, 10)
	e := newTestEcho(t, store)

	code, env := get(t, e, "/api/klines?exchange=BINANCE&limit=2")
	require.Equal(t, http.StatusOK, code)
	var got []models.DailyCandle
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "2020-01-10", got[1].Date)
	assert.Equal(t, 109.0, got[1].Close)

	code, env = get(t, e, "/api/klines?exchange=binance&start=2020-01-03&end=1578355200")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Len(t, got, 5)

	code, env = get(t, e, "/api/klines?exchange=binance&start=2030-01-01")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, env.Warning)
	assert.JSONEq(t, "[]", string(env.Data))

	code, env = get(t, e, "/api/klines?exchange=kraken")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidExchange, env.Error.Code)

	code, env = get(t, e, "/api/klines?exchange=binance&timeframe=5m")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidParams, env.Error.Code)

	code, env = get(t, e, "/api/klines?exchange=binance&start=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidParams, env.Error.Code)

	code, env = get(t, e, "/api/klines?exchange=binance&start=2020-01-05&end=2020-01-01")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidParams, env.Error.Code)
}

func TestMarketHandlerCompareAndStats(t *testing.T) {
	store := newTestStore(t)
	seedSeries(t, store, 10)
	e := newTestEcho(t, store)

	code, env := get(t, e, "/api/compare?exchanges=binance,okx")
	require.Equal(t, http.StatusOK, code)
	var cmp models.Comparison
	require.NoError(t, json.Unmarshal(env.Data, &cmp))
	assert.Equal(t, "2020-01-10", cmp.Date)
	assert.Len(t, cmp.Comparisons, 2)
	assert.InDelta(t, 0.75, cmp.Comparisons[models.ExchangeOKX].MarketShare, 1e-9)

	code, env = get(t, e, "/api/compare?exchanges=binance&date=2019-01-01")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, xhttp.CodeDataNotFound, env.Error.Code)

	code, env = get(t, e, "/api/compare?exchanges=binance,bitfinex")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidExchange, env.Error.Code)

	code, env = get(t, e, "/api/compare")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidParams, env.Error.Code)

	code, env = get(t, e, "/api/stats?exchange=binance&period=2Y")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidParams, env.Error.Code)

	// the seeded days are years before the trailing window
	code, env = get(t, e, "/api/stats?exchange=binance")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, env.Warning)
}

func TestMarketHandlerPredictWithoutModel(t *testing.T) {
	store := newTestStore(t)
	seedSeries(t, store, 10)
	e := newTestEcho(t, store)

	code, env := get(t, e, "/api/predict?exchange=binance")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, xhttp.CodeModelNotTrained, env.Error.Code)

	code, env = get(t, e, "/api/predict")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, xhttp.CodeInvalidParams, env.Error.Code)
	require.NotEmpty(t, env.Error.Details)
	assert.Equal(t, "exchange", env.Error.Details[0].Field)
}

func TestMarketHandlerReports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveAnalysis(ctx, models.Analysis{Days: 7}))
	require.NoError(t, store.SaveAnomalies(ctx, models.NewAnomalyReport()))
	e := newTestEcho(t, store)

	code, env := get(t, e, "/api/analysis")
	require.Equal(t, http.StatusOK, code)
	var a models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, 7, a.Days)

	code, _ = get(t, e, "/api/anomalies")
	assert.Equal(t, http.StatusOK, code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	e := newTestEcho(t, newTestStore(t))
	code, env := get(t, e, "/api/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.Equal(t, xhttp.CodeDataNotFound, env.Error.Code)
}
