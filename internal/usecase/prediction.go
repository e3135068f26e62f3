package usecase

import (
	"context"
	"fmt"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	"BTCPulse/internal/services/features"
	"BTCPulse/internal/services/regime"
	"BTCPulse/pkg/logger"
)

// Forecast is the regime prediction for the day after the window.
type Forecast struct {
	Exchange   string                  `json:"exchange"`
	Date       string                  `json:"date"`
	Regime     string                  `json:"regime"`
	Prediction models.RegimePrediction `json:"prediction"`
	Confidence float64                 `json:"confidence"`
	Features   models.FeatureVector    `json:"features"`
}

// PredictionUseCase serves regime predictions from the persisted series.
type PredictionUseCase struct {
	series     domrepo.SeriesStore
	artifacts  domrepo.ModelArtifactStore
	extractor  *features.Extractor
	classifier *regime.Classifier
	modelDir   string
	log        *logger.Logger
}

func NewPredictionUseCase(series domrepo.SeriesStore, artifacts domrepo.ModelArtifactStore, ex *features.Extractor, c *regime.Classifier, modelDir string, l *logger.Logger) *PredictionUseCase {
	if l == nil {
		l = logger.Nop()
	}
	return &PredictionUseCase{series: series, artifacts: artifacts, extractor: ex, classifier: c, modelDir: modelDir, log: l}
}

// LoadModel reads the network from the model directory into the classifier.
func (uc *PredictionUseCase) LoadModel() error {
	net, err := regime.LoadNetwork(uc.modelDir)
	if err != nil {
		return err
	}
	uc.classifier.SetNetwork(net)
	uc.log.Info("model loaded", logger.String("dir", uc.modelDir))
	return nil
}

func (uc *PredictionUseCase) ensureModel() error {
	if uc.classifier.Trained() {
		return nil
	}
	return uc.LoadModel()
}

// Latest predicts from the most recent WindowSize records of the persisted series.
func (uc *PredictionUseCase) Latest(ctx context.Context, exchange string) (Forecast, error) {
	s, err := uc.series.LoadSeries(ctx)
	if err != nil {
		return Forecast{}, fmt.Errorf("load series: %w", err)
	}
	return uc.LatestFrom(s, exchange)
}

// LatestFrom predicts from the tail of s.
func (uc *PredictionUseCase) LatestFrom(s models.Series, exchange string) (Forecast, error) {
	if err := uc.ensureModel(); err != nil {
		return Forecast{}, err
	}
	if len(s) == 0 {
		return Forecast{}, models.ErrNoData
	}
	return uc.predictWindow(s.Tail(features.WindowSize), s.LastDate(), exchange)
}

func (uc *PredictionUseCase) predictWindow(window models.Series, date, exchange string) (Forecast, error) {
	f := uc.extractor.Extract(window, exchange)
	p, err := uc.classifier.Predict(f)
	if err != nil {
		return Forecast{}, err
	}
	return Forecast{
		Exchange:   exchange,
		Date:       date,
		Regime:     p.Dominant().String(),
		Prediction: p,
		Confidence: p.Confidence,
		Features:   f,
	}, nil
}

// Backfill predicts every date from index WindowSize on, for each exchange
// present on that date, using the WindowSize records before it. The result is
// persisted when an artifact store is configured.
func (uc *PredictionUseCase) Backfill(ctx context.Context, exchanges []string) ([]models.ExchangePrediction, error) {
	if err := uc.ensureModel(); err != nil {
		return nil, err
	}
	s, err := uc.series.LoadSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	out := make([]models.ExchangePrediction, 0, max(0, len(s)-features.WindowSize)*len(exchanges))
	for i := features.WindowSize; i < len(s); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window := s[i-features.WindowSize : i]
		for _, ex := range exchanges {
			if _, ok := s[i].Exchanges[ex]; !ok {
				continue
			}
			fc, err := uc.predictWindow(window, s[i].Date, ex)
			if err != nil {
				return nil, err
			}
			out = append(out, models.ExchangePrediction{
				Date:       fc.Date,
				Exchange:   ex,
				Regime:     fc.Regime,
				Prediction: fc.Prediction,
			})
		}
		if i%100 == 0 {
			uc.log.Debug("backfill progress", logger.String("date", s[i].Date), logger.Int("predictions", len(out)))
		}
	}

	if uc.artifacts != nil {
		if err := uc.artifacts.SaveExchangePredictions(ctx, out); err != nil {
			return out, fmt.Errorf("save exchange predictions: %w", err)
		}
	}
	uc.log.Info("backfill complete", logger.Int("predictions", len(out)), logger.Strings("exchanges", exchanges))
	return out, nil
}
