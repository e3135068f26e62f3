package usecase

import (
	"context"
	"sync"
	"time"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	domsvc "BTCPulse/internal/domain/service"
	"BTCPulse/pkg/logger"
)

// FetchResult holds every source's candles. A failed source maps to an empty
// slice and its error is kept in Errors.
type FetchResult struct {
	Series map[string][]models.DailyCandle
	Errors map[string]error
}

// TotalRecords counts candles across all sources.
func (r FetchResult) TotalRecords() int {
	n := 0
	for _, cs := range r.Series {
		n += len(cs)
	}
	return n
}

// FetchOrchestrator runs every source concurrently over the same range.
type FetchOrchestrator struct {
	sources []domsvc.Source
	raw     domrepo.ReportStore
	log     *logger.Logger
	metrics domrepo.Metrics
}

type FetchOption func(*FetchOrchestrator)

// WithRawStore persists each source's candles as a raw snapshot after the fetch.
func WithRawStore(s domrepo.ReportStore) FetchOption {
	return func(o *FetchOrchestrator) { o.raw = s }
}

func WithFetchLogger(l *logger.Logger) FetchOption {
	return func(o *FetchOrchestrator) { o.log = l }
}

func WithFetchMetrics(m domrepo.Metrics) FetchOption {
	return func(o *FetchOrchestrator) { o.metrics = m }
}

func NewFetchOrchestrator(sources []domsvc.Source, opts ...FetchOption) *FetchOrchestrator {
	o := &FetchOrchestrator{sources: sources, log: logger.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sources returns the configured source names in registration order.
func (o *FetchOrchestrator) Sources() []string {
	names := make([]string, len(o.sources))
	for i, s := range o.sources {
		names[i] = s.Name()
	}
	return names
}

// FetchAll fetches [start, end] from every source. One source failing never
// cancels the others.
func (o *FetchOrchestrator) FetchAll(ctx context.Context, start, end time.Time) FetchResult {
	res := FetchResult{
		Series: make(map[string][]models.DailyCandle, len(o.sources)),
		Errors: map[string]error{},
	}

	type item struct {
		name    string
		candles []models.DailyCandle
		err     error
		took    time.Duration
	}
	ch := make(chan item, len(o.sources))
	var wg sync.WaitGroup

	for _, src := range o.sources {
		wg.Add(1)
		go func(src domsvc.Source) {
			defer wg.Done()
			began := time.Now()
			cs, err := src.Fetch(ctx, start, end)
			ch <- item{name: src.Name(), candles: cs, err: err, took: time.Since(began)}
		}(src)
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.candles == nil {
			it.candles = []models.DailyCandle{}
		}
		res.Series[it.name] = it.candles
		if o.metrics != nil {
			o.metrics.RecordLatency("fetch_"+it.name, it.took.Seconds())
		}
		if it.err != nil {
			res.Errors[it.name] = it.err
			o.log.Error("source fetch failed",
				logger.String("exchange", it.name),
				logger.Duration("took", it.took),
				logger.Error(it.err),
			)
			continue
		}
		o.log.Info("source fetched",
			logger.String("exchange", it.name),
			logger.Int("records", len(it.candles)),
			logger.Duration("took", it.took),
		)
	}

	if o.raw != nil {
		for name, cs := range res.Series {
			if len(cs) == 0 {
				continue
			}
			if err := o.raw.SaveRaw(ctx, name, start, end, cs); err != nil {
				o.log.Warn("save raw snapshot failed", logger.String("exchange", name), logger.Error(err))
			}
		}
	}
	return res
}
