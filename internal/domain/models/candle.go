package models

import (
	"math"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used as the date key everywhere.
const DayLayout = "2006-01-02"

const (
	ExchangeBinance = "Binance"
	ExchangeOKX     = "OKX"
	ExchangeHuobi   = "Huobi"
)

// Exchanges lists the canonical exchange names in reporting order.
var Exchanges = []string{ExchangeBinance, ExchangeOKX, ExchangeHuobi}

// CanonicalExchange maps a case-insensitive exchange name to its canonical form.
func CanonicalExchange(name string) (string, bool) {
	for _, ex := range Exchanges {
		if strings.EqualFold(ex, strings.TrimSpace(name)) {
			return ex, true
		}
	}
	return "", false
}

// DailyCandle is one exchange's OHLCV summary for a UTC calendar day.
type DailyCandle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`

	QuoteVolume  *float64 `json:"quoteVolume,omitempty"`
	Trades       *int64   `json:"trades,omitempty"`
	AvgPrice     *float64 `json:"avgPrice,omitempty"`
	AvgTradeSize *float64 `json:"avgTradeSize,omitempty"`
}

// IsComplete reports whether every OHLCV field is a finite number.
func (c DailyCandle) IsComplete() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsConsistent reports whether low <= open,close <= high and volume >= 0.
func (c DailyCandle) IsConsistent() bool {
	return c.Low <= c.Open && c.Low <= c.Close &&
		c.Open <= c.High && c.Close <= c.High &&
		c.Volume >= 0
}

// Day parses Date as a UTC day. The zero time is returned for malformed dates.
func (c DailyCandle) Day() time.Time {
	t, err := time.ParseInLocation(DayLayout, c.Date, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func Float64Ptr(v float64) *float64 { return &v }

func Int64Ptr(v int64) *int64 { return &v }
