package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/config"
	"BTCPulse/pkg/util"
)

const (
	trainingHistoryFile     = "training_history.json"
	exchangePredictionsFile = "exchange_predictions.json"
	rawDir                  = "raw"
)

// FileStore keeps every artifact as a pretty-printed JSON document under one
// directory. Writes replace the whole file atomically.
type FileStore struct {
	dir   string
	files config.StorageConfig
}

func NewFileStore(cfg config.StorageConfig) *FileStore {
	return &FileStore{dir: cfg.DataDir, files: cfg}
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// ValidatedPath is the file the HTTP service and the backup job read.
func (s *FileStore) ValidatedPath() string {
	return s.path(s.files.ValidatedFile)
}

func (s *FileStore) write(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(s.path(name), v); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) read(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", models.ErrPersistenceMissing, name)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// LoadSeries returns ErrPersistenceMissing when the file is absent and ErrNoData
// when it holds no records.
func (s *FileStore) LoadSeries(ctx context.Context) (models.Series, error) {
	var series models.Series
	if err := s.read(ctx, s.files.ValidatedFile, &series); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", models.ErrNoData, s.files.ValidatedFile)
	}
	if !series.IsSorted() {
		series = series.Sorted()
	}
	return series, nil
}

func (s *FileStore) SaveSeries(ctx context.Context, series models.Series) error {
	if series == nil {
		series = models.Series{}
	}
	return s.write(ctx, s.files.ValidatedFile, series)
}

func (s *FileStore) SaveAnomalies(ctx context.Context, r models.AnomalyReport) error {
	return s.write(ctx, s.files.AnomaliesFile, r)
}

func (s *FileStore) LoadAnomalies(ctx context.Context) (models.AnomalyReport, error) {
	r := models.NewAnomalyReport()
	err := s.read(ctx, s.files.AnomaliesFile, &r)
	return r, err
}

func (s *FileStore) SaveAnalysis(ctx context.Context, a models.Analysis) error {
	return s.write(ctx, s.files.AnalysisFile, a)
}

func (s *FileStore) LoadAnalysis(ctx context.Context) (models.Analysis, error) {
	var a models.Analysis
	err := s.read(ctx, s.files.AnalysisFile, &a)
	return a, err
}

func (s *FileStore) SaveAudit(ctx context.Context, a models.AuditReport) error {
	return s.write(ctx, s.files.AuditFile, a)
}

// SaveRaw keeps an untouched copy of one adapter's output as
// raw/btc_price_<exchange>_<start>_<end>.json.
func (s *FileStore) SaveRaw(ctx context.Context, exchange string, start, end time.Time, candles []models.DailyCandle) error {
	name := fmt.Sprintf("btc_price_%s_%s_%s.json",
		strings.ToLower(exchange), util.DayOf(start), util.DayOf(end))
	if candles == nil {
		candles = []models.DailyCandle{}
	}
	return s.write(ctx, filepath.Join(rawDir, name), candles)
}

func (s *FileStore) SaveTrainingHistory(ctx context.Context, h models.TrainingHistory) error {
	return s.write(ctx, trainingHistoryFile, h)
}

func (s *FileStore) SaveExchangePredictions(ctx context.Context, p []models.ExchangePrediction) error {
	if p == nil {
		p = []models.ExchangePrediction{}
	}
	return s.write(ctx, exchangePredictionsFile, p)
}
