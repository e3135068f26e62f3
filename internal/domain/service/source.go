package service

import (
	"context"
	"time"

	"BTCPulse/internal/domain/models"
)

// Source fetches daily candles from one exchange.
// Output is ascending by date, de-duplicated and restricted to [start, end].
type Source interface {
	Name() string
	Fetch(ctx context.Context, start, end time.Time) ([]models.DailyCandle, error)
}

// FeatureExtractor turns a trailing window into a feature vector.
type FeatureExtractor interface {
	Extract(window models.Series, exchange string) models.FeatureVector
}

// RegimePredictor classifies a feature vector.
type RegimePredictor interface {
	Predict(f models.FeatureVector) (models.RegimePrediction, error)
}
