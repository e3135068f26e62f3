package usecase

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"BTCPulse/internal/domain/models"
	"BTCPulse/internal/services/features"
	"BTCPulse/internal/services/regime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionRequiresModel(t *testing.T) {
	store := newFileStore(t)
	uc := NewPredictionUseCase(store, store, features.NewExtractor(), regime.NewClassifier(), t.TempDir(), nil)

	_, err := uc.LatestFrom(binanceSeries(10, func(int) float64 { return 100 }), models.ExchangeBinance)
	assert.ErrorIs(t, err, models.ErrModelNotTrained)
}

func TestPredictionLatestAndBackfill(t *testing.T) {
	store := newFileStore(t)
	modelDir := t.TempDir()
	require.NoError(t, regime.SaveNetwork(modelDir, regime.NewNetwork(rand.New(rand.NewSource(7)), 0)))

	uc := NewPredictionUseCase(store, store, features.NewExtractor(), regime.NewClassifier(), modelDir, nil)
	ctx := context.Background()

	s := binanceSeries(features.WindowSize+3, func(i int) float64 { return 100 + float64(i) })
	require.NoError(t, store.SaveSeries(ctx, s))

	fc, err := uc.Latest(ctx, models.ExchangeBinance)
	require.NoError(t, err)
	assert.Equal(t, s.LastDate(), fc.Date)
	p := fc.Prediction
	assert.InDelta(t, 1.0, p.Uptrend+p.Downtrend+p.Sideways, 1e-6)
	assert.Equal(t, p.Dominant().String(), fc.Regime)
	assert.Equal(t, 1.0, fc.Features[8])

	preds, err := uc.Backfill(ctx, []string{models.ExchangeBinance, models.ExchangeOKX})
	require.NoError(t, err)
	require.Len(t, preds, 3)
	assert.Equal(t, s[features.WindowSize].Date, preds[0].Date)
	for _, ep := range preds {
		assert.Equal(t, models.ExchangeBinance, ep.Exchange)
		pr := ep.Prediction
		assert.False(t, math.IsNaN(pr.Confidence))
		assert.InDelta(t, 1.0, pr.Uptrend+pr.Downtrend+pr.Sideways, 1e-6)
	}
	assert.FileExists(t, filepath.Join(store.Dir(), "exchange_predictions.json"))
}

func TestTrainingRun(t *testing.T) {
	store := newFileStore(t)
	modelDir := filepath.Join(t.TempDir(), "model")
	ctx := context.Background()

	s := binanceSeries(features.WindowSize+20, func(i int) float64 { return 100 + float64(i) })
	require.NoError(t, store.SaveSeries(ctx, s))

	cfg := regime.DefaultTrainerConfig()
	cfg.Epochs = 3
	periods := []models.LabeledPeriod{
		{Start: s[features.WindowSize].Date, End: s[features.WindowSize+9].Date, Regime: models.RegimeUptrend},
		{Start: s[features.WindowSize+10].Date, End: s.LastDate(), Regime: models.RegimeSideways},
	}
	uc := NewTrainingUseCase(store, store, features.NewExtractor(), regime.NewTrainer(cfg, nil), modelDir,
		WithLabeledPeriods(periods), WithFeatureSource(models.ExchangeBinance))

	rep, err := uc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, rep.Samples)
	assert.Equal(t, map[string]int{"uptrend": 10, "sideways": 10}, rep.ByRegime)
	assert.Len(t, rep.History.Loss, 3)
	assert.Len(t, rep.History.ValAccuracy, 3)
	assert.NotNil(t, rep.Network)

	assert.FileExists(t, filepath.Join(modelDir, regime.ModelFile))
	assert.FileExists(t, filepath.Join(store.Dir(), "training_history.json"))

	loaded, err := regime.LoadNetwork(modelDir)
	require.NoError(t, err)
	assert.Equal(t, rep.Network.Layers[0].Weights, loaded.Layers[0].Weights)
}

func TestTrainingRunWithoutSamples(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSeries(ctx, binanceSeries(20, func(int) float64 { return 100 })))

	uc := NewTrainingUseCase(store, store, features.NewExtractor(),
		regime.NewTrainer(regime.DefaultTrainerConfig(), nil), t.TempDir())
	_, err := uc.Run(ctx)
	assert.ErrorIs(t, err, regime.ErrNoSamples)
}
