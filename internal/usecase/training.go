package usecase

import (
	"context"
	"fmt"
	"time"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	"BTCPulse/internal/services/features"
	"BTCPulse/internal/services/regime"
	"BTCPulse/pkg/logger"
)

// TrainingUseCase fits the regime network on the persisted series and labeled periods.
type TrainingUseCase struct {
	series    domrepo.SeriesStore
	artifacts domrepo.ModelArtifactStore
	extractor *features.Extractor
	trainer   *regime.Trainer
	modelDir  string
	exchange  string
	periods   []models.LabeledPeriod
	log       *logger.Logger
}

type TrainingOption func(*TrainingUseCase)

// WithLabeledPeriods replaces the default hand-labeled periods.
func WithLabeledPeriods(p []models.LabeledPeriod) TrainingOption {
	return func(uc *TrainingUseCase) { uc.periods = p }
}

// WithFeatureSource selects the exchange whose closes feed the features.
func WithFeatureSource(exchange string) TrainingOption {
	return func(uc *TrainingUseCase) { uc.exchange = exchange }
}

func WithTrainingLogger(l *logger.Logger) TrainingOption {
	return func(uc *TrainingUseCase) { uc.log = l }
}

func NewTrainingUseCase(series domrepo.SeriesStore, artifacts domrepo.ModelArtifactStore, ex *features.Extractor, tr *regime.Trainer, modelDir string, opts ...TrainingOption) *TrainingUseCase {
	uc := &TrainingUseCase{
		series:    series,
		artifacts: artifacts,
		extractor: ex,
		trainer:   tr,
		modelDir:  modelDir,
		exchange:  models.ExchangeBinance,
		periods:   regime.DefaultLabeledPeriods(),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type TrainingReport struct {
	Samples     int
	ByRegime    map[string]int
	History     models.TrainingHistory
	Network     *regime.Network
	Took        time.Duration
	ModelDir    string
	FeatureFrom string
}

// FinalAccuracy returns the last epoch's training and validation accuracy.
func (r TrainingReport) FinalAccuracy() (train, val float64) {
	if n := len(r.History.Accuracy); n > 0 {
		train = r.History.Accuracy[n-1]
	}
	if n := len(r.History.ValAccuracy); n > 0 {
		val = r.History.ValAccuracy[n-1]
	}
	return train, val
}

func (uc *TrainingUseCase) Run(ctx context.Context) (TrainingReport, error) {
	began := time.Now()
	rep := TrainingReport{ModelDir: uc.modelDir, FeatureFrom: uc.exchange, ByRegime: map[string]int{}}

	s, err := uc.series.LoadSeries(ctx)
	if err != nil {
		return rep, fmt.Errorf("load series: %w", err)
	}

	samples := uc.extractor.BuildTrainingSet(s, uc.periods, uc.exchange)
	rep.Samples = len(samples)
	for _, smp := range samples {
		rep.ByRegime[smp.Label.String()]++
	}
	uc.log.Info("training set built",
		logger.Int("samples", len(samples)),
		logger.String("exchange", uc.exchange),
		logger.Any("by_regime", rep.ByRegime),
	)

	net, hist, err := uc.trainer.Train(ctx, samples)
	if err != nil {
		return rep, fmt.Errorf("train: %w", err)
	}
	rep.Network = net
	rep.History = hist

	if err := regime.SaveNetwork(uc.modelDir, net); err != nil {
		return rep, fmt.Errorf("save model: %w", err)
	}
	if err := uc.artifacts.SaveTrainingHistory(ctx, hist); err != nil {
		return rep, fmt.Errorf("save training history: %w", err)
	}

	rep.Took = time.Since(began)
	train, val := rep.FinalAccuracy()
	uc.log.Info("model trained",
		logger.String("dir", uc.modelDir),
		logger.Float64("accuracy", train),
		logger.Float64("val_accuracy", val),
		logger.Duration("took", rep.Took),
	)
	return rep, nil
}
