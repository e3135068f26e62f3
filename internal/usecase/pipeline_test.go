package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"BTCPulse/internal/domain/models"
	domsvc "BTCPulse/internal/domain/service"
	"BTCPulse/internal/services/validation"
	"BTCPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pipelineNow = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, sources []domsvc.Source, opts ...PipelineOption) (*Pipeline, *capturePublisher) {
	t.Helper()
	store := newFileStore(t)
	pub := &capturePublisher{}
	cfg := PipelineConfig{
		FullStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LockTTL:   time.Minute,
	}
	opts = append([]PipelineOption{
		WithPublisher(pub),
		WithClock(func() time.Time { return pipelineNow }),
	}, opts...)
	p := NewPipeline(cfg, NewFetchOrchestrator(sources),
		validation.NewValidator(validation.DefaultThresholds()),
		validation.NewAuditor(7, 3), store, opts...)
	return p, pub
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Increment ")
	require.NoError(t, err)
	assert.Equal(t, ModeIncrement, m)

	_, err = ParseMode("partial")
	assert.Error(t, err)
}

func TestPipelineFullRun(t *testing.T) {
	binance := &fakeSource{name: models.ExchangeBinance, candles: candles("2024-01-01", 100, 101, 102)}
	okx := &fakeSource{name: models.ExchangeOKX, candles: candles("2024-01-01", 100, 101, 102)}
	huobi := &fakeSource{name: models.ExchangeHuobi, err: &models.SourceError{Source: "Huobi", Err: errors.New("down")}}
	mirror := &captureMirror{}
	p, pub := newTestPipeline(t, []domsvc.Source{binance, okx, huobi}, WithMirror(mirror))

	res, err := p.Run(context.Background(), ModeFull)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, ModeFull, res.Mode)
	assert.Equal(t, "2024-01-01", binance.gotStart.Format(models.DayLayout))
	assert.Equal(t, map[string]int{"Binance": 3, "OKX": 3, "Huobi": 0}, res.Fetched)
	assert.Contains(t, res.SourceErrors, models.ExchangeHuobi)
	assert.Equal(t, 3, res.FreshDays)
	assert.Equal(t, 3, res.ValidDays)
	assert.Equal(t, 3, res.TotalDays)
	assert.True(t, res.Mirrored)
	assert.Len(t, mirror.stored, 3)

	require.True(t, res.Published)
	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, models.EventSeriesUpdated, ev.Type)
	assert.Equal(t, res.RunID, ev.ID)
	assert.Equal(t, "2024-01-03", ev.LastDate)
	assert.Equal(t, 3, ev.Days)

	s, err := p.series.LoadSeries(context.Background())
	require.NoError(t, err)
	assert.Len(t, s, 3)

	dir := p.series.(interface{ Dir() string }).Dir()
	for _, f := range []string{"btc_price_validated.json", "btc_price_anomalies.json", "btc_price_analysis.json", "btc_price_audit.json"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	summary := res.Summary()
	assert.Contains(t, summary, "Huobi")
	assert.Contains(t, summary, "series total 3")
}

func TestPipelineIncrementFallsBackToFull(t *testing.T) {
	binance := &fakeSource{name: models.ExchangeBinance, candles: candles("2024-01-01", 100, 101)}
	p, _ := newTestPipeline(t, []domsvc.Source{binance})

	res, err := p.Run(context.Background(), ModeIncrement)
	require.NoError(t, err)
	assert.Equal(t, ModeFull, res.Mode)
	assert.Equal(t, "2024-01-01", binance.gotStart.Format(models.DayLayout))
	assert.Equal(t, 2, res.TotalDays)
}

func TestPipelineIncrementReconciles(t *testing.T) {
	binance := &fakeSource{name: models.ExchangeBinance}
	p, _ := newTestPipeline(t, []domsvc.Source{binance})
	ctx := context.Background()

	existing := make(models.Series, 3)
	for i := range existing {
		day := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC).Format(models.DayLayout)
		existing[i] = models.MergedDayRecord{Date: day, Exchanges: map[string]models.DailyCandle{
			models.ExchangeBinance: candle(day, 100),
		}}
	}
	require.NoError(t, p.series.SaveSeries(ctx, existing))

	binance.candles = candles("2024-01-03", 110, 111)
	res, err := p.Run(ctx, ModeIncrement)
	require.NoError(t, err)

	assert.Equal(t, ModeIncrement, res.Mode)
	assert.Equal(t, "2024-01-04", binance.gotStart.Format(models.DayLayout))
	assert.Equal(t, 2, res.FreshDays)
	assert.Equal(t, 4, res.TotalDays)

	s, err := p.series.LoadSeries(ctx)
	require.NoError(t, err)
	require.Len(t, s, 4)
	assert.Equal(t, 110.0, s[2].Exchanges[models.ExchangeBinance].Close, "fresh record replaces the stored one")
	assert.Equal(t, "2024-01-04", s.LastDate())
}

func TestPipelineUpToDate(t *testing.T) {
	binance := &fakeSource{name: models.ExchangeBinance}
	p, pub := newTestPipeline(t, []domsvc.Source{binance})
	ctx := context.Background()

	require.NoError(t, p.series.SaveSeries(ctx, models.Series{{
		Date:      "2024-01-05",
		Exchanges: map[string]models.DailyCandle{models.ExchangeBinance: candle("2024-01-05", 100)},
	}}))

	res, err := p.Run(ctx, ModeIncrement)
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Zero(t, binance.calls)
	assert.Empty(t, pub.events)
}

func TestPipelineFailsWhenEverySourceIsEmpty(t *testing.T) {
	sources := []domsvc.Source{
		&fakeSource{name: models.ExchangeBinance, err: errors.New("timeout")},
		&fakeSource{name: models.ExchangeOKX},
	}
	p, pub := newTestPipeline(t, sources)

	_, err := p.Run(context.Background(), ModeFull)
	require.ErrorIs(t, err, models.ErrNoData)
	assert.Empty(t, pub.events)

	_, err = p.series.LoadSeries(context.Background())
	assert.ErrorIs(t, err, models.ErrPersistenceMissing)
}

func TestPipelineSingleWriterLock(t *testing.T) {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	ctx := context.Background()

	binance := &fakeSource{name: models.ExchangeBinance, candles: candles("2024-01-01", 100)}
	p, _ := newTestPipeline(t, []domsvc.Source{binance}, WithLock(mc))

	ok, err := mc.TryLock(ctx, pipelineLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = p.Run(ctx, ModeFull)
	assert.ErrorIs(t, err, ErrPipelineLocked)
	assert.Zero(t, binance.calls)

	require.NoError(t, mc.Unlock(ctx, pipelineLockKey))
	_, err = p.Run(ctx, ModeFull)
	require.NoError(t, err)

	ok, err = mc.TryLock(ctx, pipelineLockKey, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock is released after the run")
}

func TestPipelinePublishFailureDoesNotFailRun(t *testing.T) {
	binance := &fakeSource{name: models.ExchangeBinance, candles: candles("2024-01-01", 100)}
	p, pub := newTestPipeline(t, []domsvc.Source{binance})
	pub.err = errors.New("broker down")

	res, err := p.Run(context.Background(), ModeFull)
	require.NoError(t, err)
	assert.False(t, res.Published)
	assert.Len(t, pub.events, 1)
}
