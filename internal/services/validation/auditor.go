package validation

import (
	"math"
	"sort"
	"time"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/mathx"
	"BTCPulse/pkg/util"
)

// Auditor reports per-exchange calendar gaps and rolling volume outliers.
type Auditor struct {
	window int
	zLimit float64
}

func NewAuditor(window int, zLimit float64) *Auditor {
	if window < 2 {
		window = 7
	}
	if zLimit <= 0 {
		zLimit = 3
	}
	return &Auditor{window: window, zLimit: zLimit}
}

func (a *Auditor) Audit(s models.Series, now time.Time) models.AuditReport {
	rep := models.AuditReport{
		GeneratedAt:    now.UTC(),
		Coverage:       make(map[string]models.ExchangeCoverage),
		Gaps:           []models.ContinuityGap{},
		VolumeOutliers: []models.VolumeOutlier{},
	}

	exchanges := map[string]struct{}{}
	for _, rec := range s {
		for ex := range rec.Exchanges {
			exchanges[ex] = struct{}{}
		}
	}
	names := make([]string, 0, len(exchanges))
	for ex := range exchanges {
		names = append(names, ex)
	}
	sort.Strings(names)

	for _, ex := range names {
		cov, gaps := a.continuity(s, ex)
		rep.Coverage[ex] = cov
		rep.Gaps = append(rep.Gaps, gaps...)
		rep.VolumeOutliers = append(rep.VolumeOutliers, a.volumeOutliers(s, ex)...)
	}
	return rep
}

func (a *Auditor) continuity(s models.Series, ex string) (models.ExchangeCoverage, []models.ContinuityGap) {
	var (
		cov  models.ExchangeCoverage
		gaps []models.ContinuityGap
		prev string
	)
	for _, rec := range s {
		if _, ok := rec.Exchanges[ex]; !ok {
			continue
		}
		cov.Days++
		if cov.FirstDate == "" {
			cov.FirstDate = rec.Date
		}
		cov.LastDate = rec.Date
		if prev != "" {
			if diff, err := util.DaysBetween(prev, rec.Date); err == nil && diff > 1 {
				gaps = append(gaps, models.ContinuityGap{
					Exchange:    ex,
					StartDate:   prev,
					EndDate:     rec.Date,
					MissingDays: diff - 1,
				})
			}
		}
		prev = rec.Date
	}
	return cov, gaps
}

// volumeOutliers compares each volume with the preceding window of records.
// Days the exchange is absent count as zero volume inside the window.
func (a *Auditor) volumeOutliers(s models.Series, ex string) []models.VolumeOutlier {
	var out []models.VolumeOutlier
	window := make([]float64, a.window)
	for i := a.window; i < len(s); i++ {
		c, ok := s[i].Exchanges[ex]
		if !ok || !mathx.Finite(c.Volume) {
			continue
		}
		for j := range window {
			window[j] = 0
			if p, ok := s[i-a.window+j].Exchanges[ex]; ok && mathx.Finite(p.Volume) {
				window[j] = p.Volume
			}
		}
		sd := mathx.PopStdDev(window)
		if sd == 0 {
			continue
		}
		z := (c.Volume - mathx.Mean(window)) / sd
		if math.Abs(z) > a.zLimit {
			out = append(out, models.VolumeOutlier{Exchange: ex, Date: s[i].Date, Volume: c.Volume, ZScore: z})
		}
	}
	return out
}
