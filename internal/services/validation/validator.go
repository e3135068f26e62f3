// Package validation flags anomalies in a merged series and audits its continuity.
package validation

import (
	"math"
	"sort"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/config"
	"BTCPulse/pkg/mathx"
)

// Thresholds configure the four validator checks.
type Thresholds struct {
	PriceDiffPercent float64 // cross-exchange close spread, percent of the mean
	VolumeSpikeRatio float64 // |v - neighbour avg| / neighbour avg
	PriceGapRatio    float64 // |close - prev close| / prev close
}

func DefaultThresholds() Thresholds {
	return Thresholds{PriceDiffPercent: 1, VolumeSpikeRatio: 2, PriceGapRatio: 0.2}
}

// ThresholdsFromConfig maps validation config onto thresholds.
func ThresholdsFromConfig(c config.ValidationConfig) Thresholds {
	t := DefaultThresholds()
	if c.PriceDiffPercent > 0 {
		t.PriceDiffPercent = c.PriceDiffPercent
	}
	if c.VolumeSpikeRatio > 0 {
		t.VolumeSpikeRatio = c.VolumeSpikeRatio
	}
	if c.PriceGapRatio > 0 {
		t.PriceGapRatio = c.PriceGapRatio
	}
	return t
}

type Validator struct {
	t Thresholds
}

func NewValidator(t Thresholds) *Validator {
	return &Validator{t: t}
}

// Validate runs completeness, divergence, volume-spike and price-gap checks.
// Only completeness failures remove a day from the valid series; the other
// checks only report. Neighbour checks look at index-adjacent records, which
// need not be adjacent calendar days.
func (v *Validator) Validate(s models.Series) models.ValidationResult {
	res := models.ValidationResult{
		Valid:     make(models.Series, 0, len(s)),
		Anomalies: models.NewAnomalyReport(),
		Stats: models.ValidationStats{
			TotalDays:        len(s),
			ExchangeCoverage: make(map[string]int),
		},
	}

	for i, rec := range s {
		exchanges := sortedExchanges(rec)
		for _, ex := range exchanges {
			res.Stats.ExchangeCoverage[ex]++
		}

		if miss, ok := v.checkCompleteness(rec, exchanges); !ok {
			res.Anomalies.DataMissing = append(res.Anomalies.DataMissing, miss)
		} else {
			res.Valid = append(res.Valid, rec)
		}

		if a, ok := v.checkDivergence(rec, exchanges); ok {
			res.Anomalies.PriceDiff = append(res.Anomalies.PriceDiff, a)
		}

		for _, ex := range exchanges {
			c := rec.Exchanges[ex]
			if !c.IsComplete() {
				continue
			}
			if a, ok := v.checkVolumeSpike(s, i, ex, c); ok {
				res.Anomalies.VolumeSpikes = append(res.Anomalies.VolumeSpikes, a)
			}
			if a, ok := v.checkPriceGap(s, i, ex, c); ok {
				res.Anomalies.PriceGaps = append(res.Anomalies.PriceGaps, a)
			}
		}
	}

	res.Stats.ValidDays = len(res.Valid)
	return res
}

func (v *Validator) checkCompleteness(rec models.MergedDayRecord, exchanges []string) (models.MissingDataAnomaly, bool) {
	reason := ""
	for _, ex := range exchanges {
		c := rec.Exchanges[ex]
		if !c.IsComplete() {
			reason = models.MissingReasonIncomplete
			break
		}
		if !c.IsConsistent() {
			reason = models.MissingReasonInconsistent
		}
	}
	if reason == "" {
		return models.MissingDataAnomaly{}, true
	}
	return models.MissingDataAnomaly{Date: rec.Date, Exchanges: exchanges, Reason: reason}, false
}

func (v *Validator) checkDivergence(rec models.MergedDayRecord, exchanges []string) (models.PriceDiffAnomaly, bool) {
	prices := make(map[string]float64, len(exchanges))
	closes := make([]float64, 0, len(exchanges))
	for _, ex := range exchanges {
		c := rec.Exchanges[ex].Close
		if !mathx.Finite(c) {
			continue
		}
		prices[ex] = c
		closes = append(closes, c)
	}
	if len(closes) < 2 {
		return models.PriceDiffAnomaly{}, false
	}
	lo, hi := mathx.MinMax(closes)
	diff := mathx.SafeDivide(hi-lo, mathx.Mean(closes)) * 100
	if diff <= v.t.PriceDiffPercent {
		return models.PriceDiffAnomaly{}, false
	}
	return models.PriceDiffAnomaly{Date: rec.Date, DiffPercent: diff, Prices: prices}, true
}

func (v *Validator) checkVolumeSpike(s models.Series, i int, ex string, c models.DailyCandle) (models.VolumeSpikeAnomaly, bool) {
	if i == 0 || i == len(s)-1 {
		return models.VolumeSpikeAnomaly{}, false
	}
	prev, ok1 := s[i-1].Exchanges[ex]
	next, ok2 := s[i+1].Exchanges[ex]
	if !ok1 || !ok2 || !prev.IsComplete() || !next.IsComplete() {
		return models.VolumeSpikeAnomaly{}, false
	}
	avg := (prev.Volume + next.Volume) / 2
	if avg <= 0 {
		return models.VolumeSpikeAnomaly{}, false
	}
	change := math.Abs(c.Volume-avg) / avg
	if change <= v.t.VolumeSpikeRatio {
		return models.VolumeSpikeAnomaly{}, false
	}
	return models.VolumeSpikeAnomaly{
		Date:          s[i].Date,
		Exchange:      ex,
		Volume:        c.Volume,
		NeighborAvg:   avg,
		ChangePercent: change * 100,
	}, true
}

func (v *Validator) checkPriceGap(s models.Series, i int, ex string, c models.DailyCandle) (models.PriceGapAnomaly, bool) {
	if i == 0 {
		return models.PriceGapAnomaly{}, false
	}
	prev, ok := s[i-1].Exchanges[ex]
	if !ok || !prev.IsComplete() || prev.Close <= 0 {
		return models.PriceGapAnomaly{}, false
	}
	change := math.Abs(c.Close-prev.Close) / prev.Close
	if change <= v.t.PriceGapRatio {
		return models.PriceGapAnomaly{}, false
	}
	return models.PriceGapAnomaly{
		Date:       s[i].Date,
		Exchange:   ex,
		PrevClose:  prev.Close,
		Close:      c.Close,
		GapPercent: change * 100,
	}, true
}

func sortedExchanges(rec models.MergedDayRecord) []string {
	out := make([]string, 0, len(rec.Exchanges))
	for ex := range rec.Exchanges {
		out = append(out, ex)
	}
	sort.Strings(out)
	return out
}
