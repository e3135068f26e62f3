package analytics

import (
	"fmt"
	"time"

	"BTCPulse/internal/domain/models"
	drepo "BTCPulse/internal/domain/repository"
	"BTCPulse/pkg/mathx"
	"BTCPulse/pkg/util"
)

// trendBand separates up and down days from sideways days in period stats.
const trendBand = 0.01

// KlineQuery selects and aggregates one exchange's candles.
type KlineQuery struct {
	Exchange  string
	Timeframe drepo.Timeframe
	From, To  time.Time // zero means unbounded
	Limit     int       // keep the last N, 0 keeps all
}

// Klines filters the series to the query range, aggregates to the timeframe and
// keeps the last Limit candles.
func Klines(s models.Series, q KlineQuery) []models.DailyCandle {
	var out []models.DailyCandle
	for _, c := range s.Candles(q.Exchange) {
		day := c.Day()
		if !q.From.IsZero() && day.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && day.After(q.To) {
			continue
		}
		out = append(out, c)
	}
	out = AggregateKlines(out, q.Timeframe)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	if out == nil {
		out = []models.DailyCandle{}
	}
	return out
}

// AggregateKlines folds ascending daily candles into weekly buckets keyed by the
// Sunday starting the week, or monthly buckets keyed by the first of the month.
func AggregateKlines(daily []models.DailyCandle, tf drepo.Timeframe) []models.DailyCandle {
	if tf == drepo.TF1D || tf == "" {
		return daily
	}
	var out []models.DailyCandle
	idx := map[string]int{}
	for _, c := range daily {
		day := c.Day()
		if day.IsZero() {
			continue
		}
		key := bucketKey(day, tf)
		i, ok := idx[key]
		if !ok {
			agg := models.DailyCandle{
				Date: key, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
				Trades: models.Int64Ptr(tradesOf(c)),
			}
			idx[key] = len(out)
			out = append(out, agg)
			continue
		}
		agg := &out[i]
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.Volume += c.Volume
		*agg.Trades += tradesOf(c)
	}
	return out
}

func bucketKey(day time.Time, tf drepo.Timeframe) string {
	switch tf {
	case drepo.TF1W:
		return util.DayOf(day.AddDate(0, 0, -int(day.Weekday())))
	case drepo.TF1M:
		return fmt.Sprintf("%04d-%02d-01", day.Year(), int(day.Month()))
	default:
		return util.DayOf(day)
	}
}

func tradesOf(c models.DailyCandle) int64 {
	if c.Trades == nil {
		return 0
	}
	return *c.Trades
}

// PeriodStatsFor summarises one exchange over the period ending at now.
func PeriodStatsFor(s models.Series, exchange string, p drepo.Period, now time.Time) models.PeriodStats {
	from := util.StartOfDay(p.Start(now))
	st := models.PeriodStats{Exchange: exchange, Period: string(p)}

	var candles []models.DailyCandle
	for _, c := range s.Candles(exchange) {
		if !c.Day().Before(from) {
			candles = append(candles, c)
		}
	}
	st.Days = len(candles)
	if len(candles) == 0 {
		return st
	}

	closes := make([]float64, len(candles))
	volume := 0.0
	st.Highest, st.Lowest = candles[0].High, candles[0].Low
	for i, c := range candles {
		closes[i] = c.Close
		volume += c.Volume
		if c.High > st.Highest {
			st.Highest = c.High
		}
		if c.Low < st.Lowest {
			st.Lowest = c.Low
		}
	}
	st.Average = mathx.Mean(closes)
	st.Volatility = mathx.SafeDivide(mathx.PopStdDev(closes), st.Average)
	st.VolumeAvg = volume / float64(len(candles))

	for _, ch := range mathx.PctChanges(closes) {
		switch {
		case ch > trendBand:
			st.TrendsCount.Uptrend++
		case ch < -trendBand:
			st.TrendsCount.Downtrend++
		default:
			st.TrendsCount.Sideways++
		}
	}
	return st
}

// Compare builds the cross-exchange view for date, or the last date when empty.
// Exchanges absent on that date are left out.
func Compare(s models.Series, exchanges []string, date string) (models.Comparison, error) {
	if date == "" {
		date = s.LastDate()
	}
	i := s.Index(date)
	if i < 0 {
		return models.Comparison{}, fmt.Errorf("%w: no record for %s", models.ErrNoData, date)
	}
	rec := s[i]

	cmp := models.Comparison{Date: date, Comparisons: map[string]models.ExchangeQuote{}}
	prices := make([]float64, 0, len(exchanges))
	for _, ex := range exchanges {
		c, ok := rec.Exchanges[ex]
		if !ok {
			continue
		}
		cmp.Comparisons[ex] = models.ExchangeQuote{Price: c.Close, Volume: c.Volume}
		cmp.VolumeTotal += c.Volume
		prices = append(prices, c.Close)
	}
	for ex, q := range cmp.Comparisons {
		q.MarketShare = mathx.SafeDivide(q.Volume, cmp.VolumeTotal)
		cmp.Comparisons[ex] = q
	}
	cmp.PriceDeviation = PriceDeviation(prices)
	return cmp, nil
}

// PriceDeviation is the coefficient of variation of prices, 0 for fewer than two.
func PriceDeviation(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	return mathx.SafeDivide(mathx.PopStdDev(prices), mathx.Mean(prices))
}
