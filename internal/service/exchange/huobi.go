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

func DefaultHuobiSettings() Settings {
	return Settings{
		BaseURL: "https://api.huobi.pro",
		Mirrors: []string{
			"https://api-aws.huobi.pro",
			"https://api.huobi.com",
		},
		Symbol:         "btcusdt",
		PageLimit:      2000,
		Retry:          RetryPolicy{Kind: PolicyLinear, Delay: 2 * time.Second, MaxFailures: 5},
		RequestTimeout: 10 * time.Second,
	}
}

// Huobi has no range parameters: one call returns the most recent PageLimit days,
// which are then filtered to the requested range.
type Huobi struct {
	runtime
}

func NewHuobi(s Settings, opts ...Option) *Huobi {
	return &Huobi{runtime: newRuntime(models.ExchangeHuobi, s, opts)}
}

type huobiKline struct {
	ID     int64       `json:"id"`
	Open   interface{} `json:"open"`
	High   interface{} `json:"high"`
	Low    interface{} `json:"low"`
	Close  interface{} `json:"close"`
	Amount interface{} `json:"amount"`
	Vol    interface{} `json:"vol"`
	Count  interface{} `json:"count"`
}

type huobiResponse struct {
	Status string       `json:"status"`
	ErrMsg string       `json:"err-msg"`
	Data   []huobiKline `json:"data"`
}

func (h *Huobi) Fetch(ctx context.Context, start, end time.Time) ([]models.DailyCandle, error) {
	var resp huobiResponse
	attempts, err := h.retrier.Do(ctx, func(ctx context.Context, base string) error {
		resp = huobiResponse{}
		if err := h.client.GetJSON(ctx, base+"/market/history/kline", map[string][]string{
			"symbol": {h.settings.Symbol},
			"period": {"1day"},
			"size":   {strconv.Itoa(h.settings.PageLimit)},
		}, &resp); err != nil {
			return err
		}
		if resp.Status != "ok" || resp.Data == nil {
			return fmt.Errorf("%w: status=%q err=%q", models.ErrInvalidResponseShape, resp.Status, resp.ErrMsg)
		}
		return nil
	})
	if err != nil {
		return h.result(nil, start, end, attempts, err)
	}

	out := make([]models.DailyCandle, 0, len(resp.Data))
	for _, k := range resp.Data {
		c, err := parseOHLCV(util.DayFromMillis(k.ID*1000), k.Open, k.High, k.Low, k.Close, k.Amount)
		if err != nil {
			h.log.Warn("huobi row dropped", logger.Int64("id", k.ID), logger.Error(err))
			continue
		}
		if qv, err := parseNumber(k.Vol); err == nil {
			c.QuoteVolume = models.Float64Ptr(qv)
		}
		if n, err := parseNumber(k.Count); err == nil {
			c.Trades = models.Int64Ptr(int64(n))
		}
		out = append(out, c)
	}
	h.metrics.RecordPage(h.name, len(out))

	return h.result(out, start, end, attempts, nil)
}
