package repository

import (
	"context"
	"time"

	"BTCPulse/internal/domain/models"
)

// SeriesStore persists the validated merged series.
type SeriesStore interface {
	LoadSeries(ctx context.Context) (models.Series, error)
	SaveSeries(ctx context.Context, s models.Series) error
}

// ReportStore persists derived reports next to the series.
type ReportStore interface {
	SaveAnomalies(ctx context.Context, r models.AnomalyReport) error
	LoadAnomalies(ctx context.Context) (models.AnomalyReport, error)
	SaveAnalysis(ctx context.Context, a models.Analysis) error
	LoadAnalysis(ctx context.Context) (models.Analysis, error)
	SaveAudit(ctx context.Context, a models.AuditReport) error
	SaveRaw(ctx context.Context, exchange string, start, end time.Time, candles []models.DailyCandle) error
}

// ModelArtifactStore persists training and prediction outputs.
type ModelArtifactStore interface {
	SaveTrainingHistory(ctx context.Context, h models.TrainingHistory) error
	SaveExchangePredictions(ctx context.Context, p []models.ExchangePrediction) error
}

// CandleMirror copies validated candles into an analytical store.
type CandleMirror interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreSeries(ctx context.Context, s models.Series) error
	Query(ctx context.Context, exchange string, from, to time.Time) ([]models.DailyCandle, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// EventPublisher announces series changes to other processes.
type EventPublisher interface {
	PublishSeriesEvent(ctx context.Context, e models.SeriesEvent) error
	Close() error
}

type Metrics interface {
	RecordPage(source string, records int)
	RecordSourceFailure(source string)
	RecordRotation(source string)
	RecordAnomalies(kind string, n int)
	RecordLastClose(exchange string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
