package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *FileStore {
	cfg := config.Default().Storage
	cfg.DataDir = t.TempDir()
	return NewFileStore(cfg)
}

func record(date string, close float64) models.MergedDayRecord {
	return models.MergedDayRecord{
		Date: date,
		Exchanges: map[string]models.DailyCandle{
			models.ExchangeBinance: {Date: date, Open: close, High: close, Low: close, Close: close, Volume: 1},
		},
	}
}

func TestFileStoreSeries(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.LoadSeries(ctx)
	assert.ErrorIs(t, err, models.ErrPersistenceMissing)

	require.NoError(t, s.SaveSeries(ctx, nil))
	_, err = s.LoadSeries(ctx)
	assert.ErrorIs(t, err, models.ErrNoData)

	in := models.Series{record("2024-01-02", 2), record("2024-01-01", 1)}
	require.NoError(t, s.SaveSeries(ctx, in))
	out, err := s.LoadSeries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2024-01-01", out[0].Date)
	assert.Equal(t, 2.0, out[1].Exchanges[models.ExchangeBinance].Close)

	data, err := os.ReadFile(s.ValidatedPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"date\": \"2024-01-02\"")
}

func TestFileStoreReports(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.LoadAnomalies(ctx)
	assert.ErrorIs(t, err, models.ErrPersistenceMissing)

	r := models.NewAnomalyReport()
	r.PriceDiff = append(r.PriceDiff, models.PriceDiffAnomaly{Date: "2024-01-01", DiffPercent: 1.98})
	require.NoError(t, s.SaveAnomalies(ctx, r))
	got, err := s.LoadAnomalies(ctx)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	a := models.Analysis{Days: 3, FirstDate: "2024-01-01"}
	require.NoError(t, s.SaveAnalysis(ctx, a))
	ga, err := s.LoadAnalysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ga.Days)

	require.NoError(t, s.SaveAudit(ctx, models.AuditReport{}))
	assert.FileExists(t, filepath.Join(s.Dir(), "btc_price_audit.json"))
}

func TestFileStoreArtifacts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRaw(ctx, models.ExchangeOKX, start, start.AddDate(0, 0, 9), nil))
	assert.FileExists(t, filepath.Join(s.Dir(), "raw", "btc_price_okx_2024-01-01_2024-01-10.json"))

	require.NoError(t, s.SaveTrainingHistory(ctx, models.TrainingHistory{Loss: []float64{1, 0.5}}))
	data, err := os.ReadFile(filepath.Join(s.Dir(), "training_history.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"val_loss": null`)

	require.NoError(t, s.SaveExchangePredictions(ctx, nil))
	data, err = os.ReadFile(filepath.Join(s.Dir(), "exchange_predictions.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestFileStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newStore(t).SaveSeries(ctx, models.Series{}), context.Canceled)
}
