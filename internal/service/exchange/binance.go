package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/logger"
	"BTCPulse/pkg/util"
)

// DefaultBinanceSettings mirrors the public spot API limits.
func DefaultBinanceSettings() Settings {
	return Settings{
		BaseURL: "https://api.binance.com",
		Mirrors: []string{
			"https://api1.binance.com",
			"https://api2.binance.com",
			"https://api3.binance.com",
			"https://api4.binance.com",
		},
		Symbol:         "BTCUSDT",
		PageLimit:      1000,
		Retry:          RetryPolicy{Kind: PolicyConstant, Delay: 2 * time.Second, MaxFailures: 10},
		RequestTimeout: 5 * time.Second,
		PageDelay:      300 * time.Millisecond,
		PauseEvery:     100,
		PauseDuration:  2 * time.Second,
	}
}

// Binance pages forward through /api/v3/klines using the close time as cursor.
type Binance struct {
	runtime
}

func NewBinance(s Settings, opts ...Option) *Binance {
	return &Binance{runtime: newRuntime(models.ExchangeBinance, s, opts)}
}

// kline tuple indices
const (
	klOpenTime    = 0
	klCloseTime   = 6
	klQuoteVolume = 7
	klTrades      = 8
	klMinLen      = 9
)

func (b *Binance) Fetch(ctx context.Context, start, end time.Time) ([]models.DailyCandle, error) {
	var (
		all      []models.DailyCandle
		attempts int
		lastErr  error
	)
	pacer := NewPacer(b.settings.PageDelay, b.settings.PauseEvery, b.settings.PauseDuration)
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		if err := pacer.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		var page [][]interface{}
		n, err := b.retrier.Do(ctx, func(ctx context.Context, base string) error {
			page = nil
			return b.client.GetJSON(ctx, base+"/api/v3/klines", map[string][]string{
				"symbol":    {b.settings.Symbol},
				"interval":  {"1d"},
				"limit":     {strconv.Itoa(b.settings.PageLimit)},
				"startTime": {strconv.FormatInt(cursor, 10)},
				"endTime":   {strconv.FormatInt(endMs, 10)},
			}, &page)
		})
		attempts += n
		if err != nil {
			lastErr = err
			break
		}
		if len(page) == 0 {
			break
		}

		candles, next := b.parsePage(page)
		b.metrics.RecordPage(b.name, len(candles))
		if next <= cursor {
			lastErr = fmt.Errorf("%w: page without a usable close time", models.ErrInvalidResponseShape)
			break
		}
		all = append(all, candles...)
		cursor = next
		b.log.Debug("binance page",
			logger.Int("records", len(candles)),
			logger.String("cursor", util.DayFromMillis(cursor)),
		)

		if err := pacer.Add(ctx, len(candles)); err != nil {
			lastErr = err
			break
		}
	}

	return b.result(all, start, end, attempts, lastErr)
}

// parsePage converts kline tuples, dropping malformed rows, and returns the next cursor.
func (b *Binance) parsePage(page [][]interface{}) ([]models.DailyCandle, int64) {
	out := make([]models.DailyCandle, 0, len(page))
	var next int64
	for _, row := range page {
		if len(row) < klMinLen {
			b.log.Warn("binance row dropped", logger.Error(models.ErrInvalidResponseShape), logger.Int("fields", len(row)))
			continue
		}
		openTime, err := parseNumber(row[klOpenTime])
		if err != nil {
			continue
		}
		if closeTime, err := parseNumber(row[klCloseTime]); err == nil && int64(closeTime)+1 > next {
			next = int64(closeTime) + 1
		}
		c, err := parseOHLCV(util.DayFromMillis(int64(openTime)), row[1:6]...)
		if err != nil {
			b.log.Warn("binance row dropped", logger.Error(err))
			continue
		}
		if qv, err := parseNumber(row[klQuoteVolume]); err == nil {
			c.QuoteVolume = models.Float64Ptr(qv)
			if c.Volume > 0 {
				c.AvgPrice = models.Float64Ptr(qv / c.Volume)
			}
		}
		if tr, err := parseNumber(row[klTrades]); err == nil {
			c.Trades = models.Int64Ptr(int64(tr))
			if tr > 0 {
				c.AvgTradeSize = models.Float64Ptr(c.Volume / tr)
			}
		}
		out = append(out, c)
	}
	return out, next
}
