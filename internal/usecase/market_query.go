package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	"BTCPulse/internal/services/analytics"
	"BTCPulse/pkg/cache"
	"BTCPulse/pkg/logger"
)

const marketCachePrefix = "market"

// MarketStore is the read side of persistence used by the HTTP service.
type MarketStore interface {
	domrepo.SeriesStore
	LoadAnomalies(ctx context.Context) (models.AnomalyReport, error)
	LoadAnalysis(ctx context.Context) (models.Analysis, error)
}

// MarketQueryUseCase answers the HTTP queries from the persisted files, caching
// each response until the next series update.
type MarketQueryUseCase struct {
	store     MarketStore
	cache     cache.Service
	ownCache  cache.Service
	ttl       time.Duration
	predictor *PredictionUseCase
	group     singleflight.Group
	now       func() time.Time
	log       *logger.Logger
}

type MarketOption func(*MarketQueryUseCase)

func WithMarketCache(c cache.Service, ttl time.Duration) MarketOption {
	return func(uc *MarketQueryUseCase) {
		uc.cache = c
		uc.ttl = ttl
	}
}

func WithPredictor(p *PredictionUseCase) MarketOption {
	return func(uc *MarketQueryUseCase) { uc.predictor = p }
}

func WithMarketLogger(l *logger.Logger) MarketOption {
	return func(uc *MarketQueryUseCase) { uc.log = l }
}

func WithMarketClock(now func() time.Time) MarketOption {
	return func(uc *MarketQueryUseCase) { uc.now = now }
}

func NewMarketQueryUseCase(store MarketStore, opts ...MarketOption) *MarketQueryUseCase {
	uc := &MarketQueryUseCase{store: store, ttl: time.Minute, now: time.Now, log: logger.Nop()}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.cache == nil {
		uc.cache = cache.NewMemoryCache()
		uc.ownCache = uc.cache
	}
	return uc
}

// Close releases the fallback cache created when none was supplied. A cache
// passed through WithMarketCache stays open for its owner to close.
func (uc *MarketQueryUseCase) Close() error {
	if uc.ownCache == nil {
		return nil
	}
	c := uc.ownCache
	uc.ownCache = nil
	return c.Close()
}

// cached deduplicates concurrent loads of the same key and caches the result.
func cached[T any](ctx context.Context, uc *MarketQueryUseCase, key string, load func(context.Context) (T, error)) (T, error) {
	v, err, _ := uc.group.Do(key, func() (interface{}, error) {
		v, hit, err := cache.GetOrLoad(ctx, uc.cache, key, uc.ttl, load)
		if hit {
			uc.log.Debug("cache hit", logger.String("key", key))
		}
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (uc *MarketQueryUseCase) loadSeries(ctx context.Context) (models.Series, error) {
	v, err, _ := uc.group.Do("series", func() (interface{}, error) {
		return uc.store.LoadSeries(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(models.Series), nil
}

type KlinesParams struct {
	Exchange  string
	Timeframe domrepo.Timeframe
	From      time.Time
	To        time.Time
	Limit     int
}

func (p KlinesParams) key() string {
	return cache.Key(marketCachePrefix, "klines", p.Exchange, p.Timeframe,
		p.From.UnixMilli(), p.To.UnixMilli(), p.Limit)
}

// Klines returns the exchange's candles in range, aggregated to the timeframe.
func (uc *MarketQueryUseCase) Klines(ctx context.Context, p KlinesParams) ([]models.DailyCandle, error) {
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("start must be <= end")
	}
	return cached(ctx, uc, p.key(), func(ctx context.Context) ([]models.DailyCandle, error) {
		s, err := uc.loadSeries(ctx)
		if err != nil {
			return nil, err
		}
		return analytics.Klines(s, analytics.KlineQuery{
			Exchange:  p.Exchange,
			Timeframe: p.Timeframe,
			From:      p.From,
			To:        p.To,
			Limit:     p.Limit,
		}), nil
	})
}

// Predict returns the latest regime forecast for the exchange.
func (uc *MarketQueryUseCase) Predict(ctx context.Context, exchange string) (Forecast, error) {
	if uc.predictor == nil {
		return Forecast{}, models.ErrModelNotTrained
	}
	return cached(ctx, uc, cache.Key(marketCachePrefix, "predict", exchange), func(ctx context.Context) (Forecast, error) {
		s, err := uc.loadSeries(ctx)
		if err != nil {
			return Forecast{}, err
		}
		return uc.predictor.LatestFrom(s, exchange)
	})
}

// Compare returns the cross-exchange view of date, or of the last date when empty.
func (uc *MarketQueryUseCase) Compare(ctx context.Context, exchanges []string, date string) (models.Comparison, error) {
	key := cache.Key(marketCachePrefix, "compare", strings.Join(exchanges, ","), date)
	return cached(ctx, uc, key, func(ctx context.Context) (models.Comparison, error) {
		s, err := uc.loadSeries(ctx)
		if err != nil {
			return models.Comparison{}, err
		}
		return analytics.Compare(s, exchanges, date)
	})
}

// Stats summarises the exchange over the trailing period ending today.
func (uc *MarketQueryUseCase) Stats(ctx context.Context, exchange string, p domrepo.Period) (models.PeriodStats, error) {
	now := uc.now().UTC()
	key := cache.Key(marketCachePrefix, "stats", exchange, p, now.Format(models.DayLayout))
	return cached(ctx, uc, key, func(ctx context.Context) (models.PeriodStats, error) {
		s, err := uc.loadSeries(ctx)
		if err != nil {
			return models.PeriodStats{}, err
		}
		return analytics.PeriodStatsFor(s, exchange, p, now), nil
	})
}

func (uc *MarketQueryUseCase) Analysis(ctx context.Context) (models.Analysis, error) {
	return cached(ctx, uc, cache.Key(marketCachePrefix, "analysis"), uc.store.LoadAnalysis)
}

func (uc *MarketQueryUseCase) Anomalies(ctx context.Context) (models.AnomalyReport, error) {
	return cached(ctx, uc, cache.Key(marketCachePrefix, "anomalies"), uc.store.LoadAnomalies)
}

// LastQuote is the most recent close of one exchange.
type LastQuote struct {
	Price float64 `json:"price"`
	Date  string  `json:"date"`
}

// LastClose returns the most recent close and its date for the exchange.
func (uc *MarketQueryUseCase) LastClose(ctx context.Context, exchange string) (LastQuote, error) {
	return cached(ctx, uc, cache.Key(marketCachePrefix, "last", exchange), func(ctx context.Context) (LastQuote, error) {
		s, err := uc.loadSeries(ctx)
		if err != nil {
			return LastQuote{}, err
		}
		for i := len(s) - 1; i >= 0; i-- {
			if c, ok := s[i].Exchanges[exchange]; ok {
				return LastQuote{Price: c.Close, Date: s[i].Date}, nil
			}
		}
		return LastQuote{}, fmt.Errorf("%w: no candles for %s", models.ErrNoData, exchange)
	})
}

// Invalidate drops every cached response.
func (uc *MarketQueryUseCase) Invalidate(ctx context.Context) error {
	return uc.cache.DeleteByPattern(ctx, cache.Pattern(marketCachePrefix+":"))
}
