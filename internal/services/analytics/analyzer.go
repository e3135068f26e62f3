// Package analytics computes descriptive statistics over a merged series.
package analytics

import (
	"math"
	"sort"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/mathx"
)

// tradingDaysPerYear annualises daily volatility.
const tradingDaysPerYear = 252

type bucket struct {
	sum, count, volume float64
}

func (b *bucket) add(close, volume float64) {
	b.sum += close
	b.count++
	b.volume += volume
}

func (b bucket) stats() models.BucketStats {
	return models.BucketStats{AvgPrice: mathx.SafeDivide(b.sum, b.count), TotalVolume: b.volume}
}

type exchangeAcc struct {
	closes     []float64
	volume     float64
	up, down   int
	flat       int
	upStreak   int
	downStreak int
	maxUp      int
	maxDown    int
}

// Analyze summarises prices, volumes, trends and calendar buckets per exchange.
// Trend counts compare each record with the index-previous record.
func Analyze(s models.Series) models.Analysis {
	a := models.Analysis{
		Days:      len(s),
		FirstDate: s.FirstDate(),
		LastDate:  s.LastDate(),
		Price: models.PriceStats{
			Averages:   map[string]float64{},
			Volatility: map[string]float64{},
		},
		Volume: models.VolumeStats{
			Daily:       map[string]float64{},
			Total:       map[string]float64{},
			MarketShare: map[string]float64{},
		},
		Trends: models.TrendStats{
			UpDays:        map[string]int{},
			DownDays:      map[string]int{},
			FlatDays:      map[string]int{},
			MaxUpStreak:   map[string]int{},
			MaxDownStreak: map[string]int{},
		},
		TimeStats: models.TimeStats{
			ByYear:    map[string]models.BucketStats{},
			ByMonth:   map[string]models.BucketStats{},
			ByWeekday: map[string]models.BucketStats{},
		},
	}

	accs := map[string]*exchangeAcc{}
	years, months, weekdays := map[string]*bucket{}, map[string]*bucket{}, map[string]*bucket{}
	lowest := math.Inf(1)

	for i, rec := range s {
		day := models.DailyCandle{Date: rec.Date}.Day()
		for _, ex := range sortedKeys(rec.Exchanges) {
			c := rec.Exchanges[ex]
			if !c.IsComplete() {
				continue
			}
			acc, ok := accs[ex]
			if !ok {
				acc = &exchangeAcc{}
				accs[ex] = acc
			}
			acc.closes = append(acc.closes, c.Close)
			acc.volume += c.Volume

			if c.Close > a.Price.Highest.Value {
				a.Price.Highest = models.Extreme{Value: c.Close, Date: rec.Date, Exchange: ex}
			}
			if c.Close < lowest {
				lowest = c.Close
				a.Price.Lowest = models.Extreme{Value: c.Close, Date: rec.Date, Exchange: ex}
			}
			if c.Volume > a.Volume.Highest.Value {
				a.Volume.Highest = models.Extreme{Value: c.Volume, Date: rec.Date, Exchange: ex}
			}

			if i > 0 {
				prev, ok := s[i-1].Exchanges[ex]
				if ok && prev.IsComplete() {
					acc.trend(c.Close - prev.Close)
				} else {
					acc.upStreak, acc.downStreak = 0, 0
				}
			}

			if !day.IsZero() {
				addTo(years, day.Format("2006"), c)
				addTo(months, day.Format("2006-01"), c)
				addTo(weekdays, day.Weekday().String(), c)
			}
		}
	}

	grand := 0.0
	for _, acc := range accs {
		grand += acc.volume
	}
	for ex, acc := range accs {
		n := float64(len(acc.closes))
		a.Price.Averages[ex] = mathx.Mean(acc.closes)
		a.Price.Volatility[ex] = annualisedVolatility(acc.closes)
		a.Volume.Daily[ex] = mathx.SafeDivide(acc.volume, n)
		a.Volume.Total[ex] = acc.volume
		a.Volume.MarketShare[ex] = mathx.SafeDivide(acc.volume, grand) * 100
		a.Trends.UpDays[ex] = acc.up
		a.Trends.DownDays[ex] = acc.down
		a.Trends.FlatDays[ex] = acc.flat
		a.Trends.MaxUpStreak[ex] = acc.maxUp
		a.Trends.MaxDownStreak[ex] = acc.maxDown
	}
	for k, b := range years {
		a.TimeStats.ByYear[k] = b.stats()
	}
	for k, b := range months {
		a.TimeStats.ByMonth[k] = b.stats()
	}
	for k, b := range weekdays {
		a.TimeStats.ByWeekday[k] = b.stats()
	}
	return a
}

func (acc *exchangeAcc) trend(change float64) {
	switch {
	case change > 0:
		acc.up++
		acc.upStreak++
		acc.downStreak = 0
	case change < 0:
		acc.down++
		acc.downStreak++
		acc.upStreak = 0
	default:
		acc.flat++
		acc.upStreak, acc.downStreak = 0, 0
	}
	if acc.upStreak > acc.maxUp {
		acc.maxUp = acc.upStreak
	}
	if acc.downStreak > acc.maxDown {
		acc.maxDown = acc.downStreak
	}
}

// annualisedVolatility is sqrt(population variance of log returns * 252) in percent.
func annualisedVolatility(closes []float64) float64 {
	r := mathx.LogReturns(closes)
	if len(r) == 0 {
		return 0
	}
	return mathx.OrZero(math.Sqrt(mathx.PopVariance(r)*tradingDaysPerYear) * 100)
}

func addTo(m map[string]*bucket, key string, c models.DailyCandle) {
	b, ok := m[key]
	if !ok {
		b = &bucket{}
		m[key] = b
	}
	b.add(c.Close, c.Volume)
}

func sortedKeys(m map[string]models.DailyCandle) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
