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

func DefaultOKXSettings() Settings {
	return Settings{
		BaseURL: "https://www.okx.com",
		Mirrors: []string{
			"https://aws.okx.com",
			"https://okx.com",
			"https://www.okex.com",
		},
		Symbol:         "BTC-USDT",
		PageLimit:      100,
		Retry:          RetryPolicy{Kind: PolicyConstant, Delay: 2 * time.Second, MaxFailures: 5},
		RequestTimeout: 10 * time.Second,
		PageDelay:      200 * time.Millisecond,
	}
}

// OKX pages backwards through history-candles, newest first.
type OKX struct {
	runtime
}

func NewOKX(s Settings, opts ...Option) *OKX {
	return &OKX{runtime: newRuntime(models.ExchangeOKX, s, opts)}
}

type okxResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data [][]interface{} `json:"data"`
}

func (o *OKX) Fetch(ctx context.Context, start, end time.Time) ([]models.DailyCandle, error) {
	var (
		all      []models.DailyCandle
		attempts int
		lastErr  error
	)
	pacer := NewPacer(o.settings.PageDelay, o.settings.PauseEvery, o.settings.PauseDuration)
	startMs := util.StartOfDay(start).UnixMilli()
	// "after" returns records strictly older than the given timestamp.
	after := util.StartOfDay(end).AddDate(0, 0, 1).UnixMilli()

	for {
		if err := pacer.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		var resp okxResponse
		n, err := o.retrier.Do(ctx, func(ctx context.Context, base string) error {
			resp = okxResponse{}
			if err := o.client.GetJSON(ctx, base+"/api/v5/market/history-candles", map[string][]string{
				"instId": {o.settings.Symbol},
				"bar":    {"1D"},
				"limit":  {strconv.Itoa(o.settings.PageLimit)},
				"after":  {strconv.FormatInt(after, 10)},
			}, &resp); err != nil {
				return err
			}
			if resp.Code != "0" || resp.Data == nil {
				return fmt.Errorf("%w: code=%q msg=%q", models.ErrInvalidResponseShape, resp.Code, resp.Msg)
			}
			return nil
		})
		attempts += n
		if err != nil {
			lastErr = err
			break
		}
		if len(resp.Data) == 0 {
			break
		}

		candles, oldest := o.parsePage(resp.Data)
		o.metrics.RecordPage(o.name, len(candles))
		if oldest == 0 || oldest >= after {
			lastErr = fmt.Errorf("%w: page without a usable timestamp", models.ErrInvalidResponseShape)
			break
		}
		all = append(all, candles...)
		after = oldest
		o.log.Debug("okx page",
			logger.Int("records", len(candles)),
			logger.String("oldest", util.DayFromMillis(oldest)),
		)

		if oldest <= startMs || len(resp.Data) < o.settings.PageLimit {
			break
		}
		if err := pacer.Add(ctx, len(candles)); err != nil {
			lastErr = err
			break
		}
	}

	return o.result(all, start, end, attempts, lastErr)
}

// parsePage converts [ts,o,h,l,c,vol,volCcy,...] rows and returns the oldest timestamp seen.
func (o *OKX) parsePage(rows [][]interface{}) ([]models.DailyCandle, int64) {
	out := make([]models.DailyCandle, 0, len(rows))
	var oldest int64
	for _, row := range rows {
		if len(row) < 6 {
			o.log.Warn("okx row dropped", logger.Error(models.ErrInvalidResponseShape), logger.Int("fields", len(row)))
			continue
		}
		ts, err := parseNumber(row[0])
		if err != nil {
			continue
		}
		if oldest == 0 || int64(ts) < oldest {
			oldest = int64(ts)
		}
		c, err := parseOHLCV(util.DayFromMillis(int64(ts)), row[1:6]...)
		if err != nil {
			o.log.Warn("okx row dropped", logger.Error(err))
			continue
		}
		if len(row) > 6 {
			if qv, err := parseNumber(row[6]); err == nil {
				c.QuoteVolume = models.Float64Ptr(qv)
			}
		}
		out = append(out, c)
	}
	return out, oldest
}
