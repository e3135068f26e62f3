// Package exchange implements the daily-candle source adapters for Binance, OKX and Huobi.
package exchange

import (
	"fmt"
	"sort"
	"time"

	"BTCPulse/internal/domain/models"
	drepo "BTCPulse/internal/domain/repository"
	"BTCPulse/pkg/config"
	httpclient "BTCPulse/pkg/http"
	"BTCPulse/pkg/logger"
	"BTCPulse/pkg/metrics"
	"BTCPulse/pkg/util"

	"github.com/shopspring/decimal"
)

// Settings tunes one adapter. Each adapter starts from its own defaults.
type Settings struct {
	BaseURL        string
	Mirrors        []string
	Symbol         string
	PageLimit      int
	Retry          RetryPolicy
	RequestTimeout time.Duration
	PageDelay      time.Duration
	PauseEvery     int
	PauseDuration  time.Duration
}

// Merge overrides the receiver with every non-zero field of cfg.
func (s Settings) Merge(cfg config.ExchangeConfig) Settings {
	if cfg.BaseURL != "" {
		s.BaseURL = cfg.BaseURL
	}
	if cfg.Mirrors != nil {
		s.Mirrors = cfg.Mirrors
	}
	if cfg.Symbol != "" {
		s.Symbol = cfg.Symbol
	}
	if cfg.PageLimit > 0 {
		s.PageLimit = cfg.PageLimit
	}
	if cfg.MaxFailures > 0 {
		s.Retry.MaxFailures = cfg.MaxFailures
	}
	if cfg.RetryPolicy != "" {
		s.Retry.Kind = cfg.RetryPolicy
	}
	if cfg.RetryDelay > 0 {
		s.Retry.Delay = cfg.RetryDelay
	}
	if cfg.RequestTimeout > 0 {
		s.RequestTimeout = cfg.RequestTimeout
	}
	if cfg.PageDelay > 0 {
		s.PageDelay = cfg.PageDelay
	}
	if cfg.PauseEvery > 0 {
		s.PauseEvery = cfg.PauseEvery
	}
	if cfg.PauseDuration > 0 {
		s.PauseDuration = cfg.PauseDuration
	}
	return s
}

// Option configures the collaborators shared by every adapter.
type Option func(*deps)

type deps struct {
	log     *logger.Logger
	metrics drepo.Metrics
}

// WithLogger sets the adapter logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *deps) { d.log = l }
}

// WithMetrics sets the adapter metrics recorder.
func WithMetrics(m drepo.Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

// runtime bundles the per-adapter request machinery.
type runtime struct {
	name      string
	settings  Settings
	client    *httpclient.Client
	endpoints *Endpoints
	retrier   *Retrier
	log       *logger.Logger
	metrics   drepo.Metrics
}

func newRuntime(name string, s Settings, opts []Option) runtime {
	d := deps{log: logger.Nop(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(&d)
	}
	l := d.log.With(logger.String("source", name))
	eps := NewEndpoints(s.BaseURL, s.Mirrors...)
	return runtime{
		name:      name,
		settings:  s,
		client:    httpclient.NewClient(httpclient.WithTimeout(s.RequestTimeout)),
		endpoints: eps,
		retrier:   NewRetrier(name, s.Retry, eps, l, d.metrics),
		log:       l,
		metrics:   d.metrics,
	}
}

func (r runtime) Name() string { return r.name }

// Endpoint returns the base URL the adapter currently targets.
func (r runtime) Endpoint() string { return r.endpoints.Current() }

// result applies the failure discipline: partial data is returned without error,
// an empty result after a failure becomes a SourceError.
func (r runtime) result(candles []models.DailyCandle, start, end time.Time, attempts int, err error) ([]models.DailyCandle, error) {
	out := finalize(candles, start, end)
	if err != nil && len(out) == 0 {
		return out, &models.SourceError{Source: r.name, Attempts: attempts, Err: err}
	}
	if err != nil {
		r.log.Warn("source stopped early, keeping partial data",
			logger.Int("records", len(out)),
			logger.Error(err),
		)
	}
	r.log.Info("source fetch finished",
		logger.Int("records", len(out)),
		logger.String("first", firstDate(out)),
		logger.String("last", lastDate(out)),
	)
	return out, nil
}

// finalize restricts candles to [start, end] by UTC day, keeps the last candle per
// date and sorts ascending.
func finalize(candles []models.DailyCandle, start, end time.Time) []models.DailyCandle {
	from, to := util.DayOf(start), util.DayOf(end)
	byDate := make(map[string]models.DailyCandle, len(candles))
	for _, c := range candles {
		if c.Date < from || c.Date > to {
			continue
		}
		byDate[c.Date] = c
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]models.DailyCandle, len(dates))
	for i, d := range dates {
		out[i] = byDate[d]
	}
	return out
}

func firstDate(cs []models.DailyCandle) string {
	if len(cs) == 0 {
		return ""
	}
	return cs[0].Date
}

func lastDate(cs []models.DailyCandle) string {
	if len(cs) == 0 {
		return ""
	}
	return cs[len(cs)-1].Date
}

// parseNumber accepts a JSON string or number and returns it as float64.
func parseNumber(v interface{}) (float64, error) {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", models.ErrInvalidResponseShape, x)
		}
		f, _ := d.Float64()
		return f, nil
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("%w: unexpected %T", models.ErrInvalidResponseShape, v)
	}
}

// parseOHLCV parses five provider values into a candle for date.
func parseOHLCV(date string, vals ...interface{}) (models.DailyCandle, error) {
	var f [5]float64
	for i := range f {
		x, err := parseNumber(vals[i])
		if err != nil {
			return models.DailyCandle{}, err
		}
		f[i] = x
	}
	return models.DailyCandle{Date: date, Open: f[0], High: f[1], Low: f[2], Close: f[3], Volume: f[4]}, nil
}
