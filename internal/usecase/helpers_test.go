package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"BTCPulse/internal/domain/models"
	"BTCPulse/internal/repository"
	"BTCPulse/pkg/config"
)

type fakeSource struct {
	name    string
	candles []models.DailyCandle
	err     error

	mu       sync.Mutex
	gotStart time.Time
	calls    int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, start, _ time.Time) ([]models.DailyCandle, error) {
	f.mu.Lock()
	f.gotStart = start
	f.calls++
	f.mu.Unlock()
	return f.candles, f.err
}

func candle(date string, close float64) models.DailyCandle {
	return models.DailyCandle{Date: date, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 10}
}

func candles(start string, closes ...float64) []models.DailyCandle {
	day, _ := time.Parse(models.DayLayout, start)
	out := make([]models.DailyCandle, len(closes))
	for i, c := range closes {
		out[i] = candle(day.AddDate(0, 0, i).Format(models.DayLayout), c)
	}
	return out
}

func newFileStore(t *testing.T) *repository.FileStore {
	t.Helper()
	cfg := config.Default().Storage
	cfg.DataDir = t.TempDir()
	return repository.NewFileStore(cfg)
}

// binanceSeries builds n days of Binance-only records with the given closes.
func binanceSeries(n int, price func(i int) float64) models.Series {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, n)
	for i := range s {
		date := start.AddDate(0, 0, i).Format(models.DayLayout)
		s[i] = models.MergedDayRecord{
			Date:      date,
			Exchanges: map[string]models.DailyCandle{models.ExchangeBinance: candle(date, price(i))},
		}
	}
	return s
}

type capturePublisher struct {
	events []models.SeriesEvent
	err    error
}

func (p *capturePublisher) PublishSeriesEvent(_ context.Context, e models.SeriesEvent) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

type captureMirror struct {
	stored models.Series
	err    error
}

func (m *captureMirror) Init(context.Context) error { return nil }

func (m *captureMirror) StoreSeries(_ context.Context, s models.Series) error {
	m.stored = s
	return m.err
}

func (m *captureMirror) Query(context.Context, string, time.Time, time.Time) ([]models.DailyCandle, error) {
	return nil, nil
}

func (m *captureMirror) Health(context.Context) error { return nil }
func (m *captureMirror) Close() error                 { return nil }
