// Package features turns a window of daily candles into the regime feature vector.
package features

import (
	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/logger"
	"BTCPulse/pkg/mathx"
)

const (
	// WindowSize is the number of days a feature vector looks back over.
	WindowSize = 270
	// MinTrendDays is the minimum usable prices before any feature is computed.
	MinTrendDays = 30
	// TrendThreshold is the relative change that counts as a strong move.
	TrendThreshold = 0.50

	strengthMinPrices   = 90
	strengthBuckets     = 9
	continuityMinPrices = 60
	sampleSpacing       = 30
	minStreak           = 3
)

// Extractor computes feature vectors. The zero value is ready to use.
type Extractor struct {
	log *logger.Logger
}

type ExtractorOption func(*Extractor)

func WithLogger(l *logger.Logger) ExtractorOption {
	return func(e *Extractor) { e.log = l }
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes the nine features from the exchange's closes and volumes in
// window. Non-positive values are dropped. With fewer than MinTrendDays prices the
// vector is all zeros.
func (e *Extractor) Extract(window models.Series, exchange string) models.FeatureVector {
	var f models.FeatureVector
	if !window.IsSorted() {
		window = window.Sorted()
	}

	prices := make([]float64, 0, len(window))
	volumes := make([]float64, 0, len(window))
	for _, rec := range window {
		c, ok := rec.Exchanges[exchange]
		if !ok {
			continue
		}
		if mathx.Finite(c.Close) && c.Close > 0 {
			prices = append(prices, c.Close)
		}
		if mathx.Finite(c.Volume) && c.Volume > 0 {
			volumes = append(volumes, c.Volume)
		}
	}

	if len(prices) < MinTrendDays {
		if e.log != nil {
			e.log.Debug("not enough prices for features",
				logger.String("exchange", exchange),
				logger.Int("prices", len(prices)),
			)
		}
		return f
	}

	f[0] = LongTermChange(prices)
	f[1] = Volatility(prices)
	f[2] = PricePosition(prices)
	f[3] = TrendStrength(prices)
	f[4] = VolumeChange(volumes)
	f[5] = Momentum(prices)
	f[6] = TrendContinuity(prices)
	f[7] = TrendConsistency(prices)
	f[8] = mathx.Sign(change(prices[0], prices[len(prices)-1]))

	for i, v := range f {
		f[i] = mathx.OrZero(v)
	}
	return f
}

func change(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return mathx.SafeDivide(to-from, from)
}

// LongTermChange is the change across the full window, 0 for a partial window.
func LongTermChange(prices []float64) float64 {
	if len(prices) < WindowSize {
		return 0
	}
	return change(prices[0], prices[len(prices)-1])
}

// Volatility is the population standard deviation of daily relative changes.
func Volatility(prices []float64) float64 {
	return mathx.PopStdDev(mathx.PctChanges(prices))
}

// PricePosition is the last price relative to the window mean.
func PricePosition(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	avg := mathx.Mean(prices)
	return mathx.SafeDivide(prices[len(prices)-1]-avg, avg)
}

// TrendStrength splits the window into nine equal buckets and scores the longest
// run of same-direction buckets, positive for up runs and negative for down runs.
// Runs shorter than three buckets score 0.
func TrendStrength(prices []float64) float64 {
	if len(prices) < strengthMinPrices {
		return 0
	}
	size := len(prices) / strengthBuckets
	var up, down, maxUp, maxDown int
	for i := 0; i < strengthBuckets; i++ {
		b := prices[i*size : (i+1)*size]
		if len(b) < 2 {
			continue
		}
		switch ch := change(b[0], b[len(b)-1]); {
		case ch > 0:
			up++
			down = 0
			maxUp = max(maxUp, up)
		case ch < 0:
			down++
			up = 0
			maxDown = max(maxDown, down)
		}
	}
	switch {
	case maxUp >= minStreak:
		return float64(maxUp) / strengthBuckets
	case maxDown >= minStreak:
		return -float64(maxDown) / strengthBuckets
	}
	return 0
}

// VolumeChange is the change from the first to the last positive volume.
func VolumeChange(volumes []float64) float64 {
	if len(volumes) < 2 {
		return 0
	}
	return change(volumes[0], volumes[len(volumes)-1])
}

// monthlyChanges samples the change over every 30-day span ending at 30, 60, ...
func monthlyChanges(prices []float64) []float64 {
	var out []float64
	for i := sampleSpacing; i < len(prices); i += sampleSpacing {
		ch := change(prices[i-sampleSpacing], prices[i])
		if mathx.Finite(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// Momentum is the difference between the last two 30-day changes.
func Momentum(prices []float64) float64 {
	ch := monthlyChanges(prices)
	if len(ch) < 2 {
		return 0
	}
	return ch[len(ch)-1] - ch[len(ch)-2]
}

// TrendContinuity classifies each 30-day change as strong up, strong down or flat
// and sums the lengths of runs of at least three equal classes, divided by the
// number of samples. A run only scores once a class change closes it, so the
// trailing run never counts.
func TrendContinuity(prices []float64) float64 {
	if len(prices) < continuityMinPrices {
		return 0
	}
	ch := monthlyChanges(prices)
	if len(ch) == 0 {
		return 0
	}
	score, streak := 0, 0
	prev := 0
	for i, c := range ch {
		cur := classify(c, TrendThreshold)
		switch {
		case i == 0:
			streak = 1
		case cur == prev:
			streak++
		default:
			if streak >= minStreak {
				score += streak
			}
			streak = 1
		}
		prev = cur
	}
	return mathx.SafeDivide(float64(score), float64(len(ch)))
}

// TrendConsistency is 1 when every tercile rises by more than a third of the
// threshold, -1 when every tercile falls by more, and 0 otherwise.
func TrendConsistency(prices []float64) float64 {
	size := len(prices) / 3
	if size == 0 {
		return 0
	}
	limit := TrendThreshold / 3
	up, down := true, true
	for i := 0; i < 3; i++ {
		t := prices[i*size : (i+1)*size]
		c := change(t[0], t[len(t)-1])
		up = up && c > limit
		down = down && c < -limit
	}
	switch {
	case up:
		return 1
	case down:
		return -1
	}
	return 0
}

func classify(c, threshold float64) int {
	switch {
	case c > threshold:
		return 1
	case c < -threshold:
		return -1
	}
	return 0
}

// Sample is one labeled training example.
type Sample struct {
	Date     string
	Features models.FeatureVector
	Label    models.Regime
}

// BuildTrainingSet emits one sample for every index i >= WindowSize whose date lies
// in a labeled period, using the WindowSize records before i as the window.
func (e *Extractor) BuildTrainingSet(s models.Series, periods []models.LabeledPeriod, exchange string) []Sample {
	if !s.IsSorted() {
		s = s.Sorted()
	}
	var out []Sample
	for i := WindowSize; i < len(s); i++ {
		p, ok := findPeriod(s[i].Date, periods)
		if !ok {
			continue
		}
		out = append(out, Sample{
			Date:     s[i].Date,
			Features: e.Extract(s[i-WindowSize:i], exchange),
			Label:    p.Regime,
		})
	}
	return out
}

func findPeriod(date string, periods []models.LabeledPeriod) (models.LabeledPeriod, bool) {
	for _, p := range periods {
		if p.Contains(date) {
			return p, true
		}
	}
	return models.LabeledPeriod{}, false
}
