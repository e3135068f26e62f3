package usecase

import (
	"context"
	"testing"
	"time"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	"BTCPulse/internal/repository"
	"BTCPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarketQuery(t *testing.T) (*MarketQueryUseCase, *repository.FileStore) {
	t.Helper()
	store := newFileStore(t)
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	uc := NewMarketQueryUseCase(store,
		WithMarketCache(mc, time.Minute),
		WithMarketClock(func() time.Time { return time.Date(2020, 1, 10, 8, 0, 0, 0, time.UTC) }),
	)
	return uc, store
}

func TestMarketQueryMissingAndEmptyData(t *testing.T) {
	uc, store := newMarketQuery(t)
	ctx := context.Background()

	_, err := uc.Klines(ctx, KlinesParams{Exchange: models.ExchangeBinance})
	assert.ErrorIs(t, err, models.ErrPersistenceMissing)

	require.NoError(t, store.SaveSeries(ctx, models.Series{}))
	_, err = uc.Klines(ctx, KlinesParams{Exchange: models.ExchangeBinance})
	assert.ErrorIs(t, err, models.ErrNoData)

	_, err = uc.Predict(ctx, models.ExchangeBinance)
	assert.ErrorIs(t, err, models.ErrModelNotTrained)
}

func TestMarketQueryKlinesAndCache(t *testing.T) {
	uc, store := newMarketQuery(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSeries(ctx, binanceSeries(10, func(i int) float64 { return 100 + float64(i) })))

	p := KlinesParams{Exchange: models.ExchangeBinance, Timeframe: domrepo.TF1D, Limit: 3}
	got, err := uc.Klines(ctx, p)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2020-01-10", got[2].Date)
	assert.Equal(t, 109.0, got[2].Close)

	// served from cache until invalidated
	require.NoError(t, store.SaveSeries(ctx, binanceSeries(2, func(int) float64 { return 1 })))
	got, err = uc.Klines(ctx, p)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.NoError(t, uc.Invalidate(ctx))
	got, err = uc.Klines(ctx, p)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = uc.Klines(ctx, KlinesParams{
		Exchange: models.ExchangeBinance,
		From:     time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestMarketQueryStatsCompareAndLastClose(t *testing.T) {
	uc, store := newMarketQuery(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSeries(ctx, binanceSeries(10, func(i int) float64 { return 100 + float64(i) })))

	st, err := uc.Stats(ctx, models.ExchangeBinance, domrepo.Period1M)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Days)
	assert.Equal(t, 110.0, st.Highest)

	cmp, err := uc.Compare(ctx, []string{models.ExchangeBinance, models.ExchangeOKX}, "")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-10", cmp.Date)
	assert.Len(t, cmp.Comparisons, 1)

	_, err = uc.Compare(ctx, []string{models.ExchangeBinance}, "2019-01-01")
	assert.ErrorIs(t, err, models.ErrNoData)

	q, err := uc.LastClose(ctx, models.ExchangeBinance)
	require.NoError(t, err)
	assert.Equal(t, LastQuote{Price: 109, Date: "2020-01-10"}, q)

	_, err = uc.LastClose(ctx, models.ExchangeHuobi)
	assert.ErrorIs(t, err, models.ErrNoData)
}

func TestMarketQueryReports(t *testing.T) {
	uc, store := newMarketQuery(t)
	ctx := context.Background()

	_, err := uc.Analysis(ctx)
	assert.ErrorIs(t, err, models.ErrPersistenceMissing)

	require.NoError(t, store.SaveAnalysis(ctx, models.Analysis{Days: 42}))
	a, err := uc.Analysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, a.Days)

	rep := models.NewAnomalyReport()
	rep.PriceGaps = append(rep.PriceGaps, models.PriceGapAnomaly{Date: "2020-01-02", Exchange: models.ExchangeBinance})
	require.NoError(t, store.SaveAnomalies(ctx, rep))
	got, err := uc.Anomalies(ctx)
	require.NoError(t, err)
	assert.Len(t, got.PriceGaps, 1)
}

type closeCountingCache struct {
	cache.Service
	closed int
}

func (c *closeCountingCache) Close() error {
	c.closed++
	return c.Service.Close()
}

func TestMarketQueryCloseReleasesOnlyOwnCache(t *testing.T) {
	store := newFileStore(t)

	uc := NewMarketQueryUseCase(store)
	require.NotNil(t, uc.ownCache)
	require.NoError(t, uc.Close())
	assert.Nil(t, uc.ownCache)
	require.NoError(t, uc.Close())

	shared := &closeCountingCache{Service: cache.NewMemoryCache()}
	t.Cleanup(func() { _ = shared.Service.Close() })
	uc = NewMarketQueryUseCase(store, WithMarketCache(shared, time.Minute))
	assert.Nil(t, uc.ownCache)
	require.NoError(t, uc.Close())
	assert.Equal(t, 0, shared.closed)
}
