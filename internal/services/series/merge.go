// Package series merges per-exchange candle lists into one date-keyed series
// and reconciles a fresh series into a persisted one.
package series

import (
	"sort"

	"BTCPulse/internal/domain/models"
	"BTCPulse/pkg/util"
)

// Merge combines per-exchange candle lists into records sorted by date. A later
// candle for the same exchange and date replaces the earlier one; candles from
// different exchanges on the same date always coexist.
func Merge(byExchange map[string][]models.DailyCandle) models.Series {
	days := make(map[string]map[string]models.DailyCandle)

	exchanges := make([]string, 0, len(byExchange))
	for ex := range byExchange {
		exchanges = append(exchanges, ex)
	}
	sort.Strings(exchanges)

	for _, ex := range exchanges {
		for _, c := range byExchange[ex] {
			date, ok := normalizeDate(c.Date)
			if !ok {
				continue
			}
			c.Date = date
			rec, ok := days[date]
			if !ok {
				rec = make(map[string]models.DailyCandle, len(byExchange))
				days[date] = rec
			}
			rec[ex] = c
		}
	}

	return build(days)
}

// normalizeDate reduces any accepted timestamp form to its UTC calendar day.
func normalizeDate(s string) (string, bool) {
	if t, err := util.ParseDay(s); err == nil {
		return util.DayOf(t), true
	}
	if t, ok := util.ParseTime(s); ok {
		return util.DayOf(t), true
	}
	return "", false
}

func build(days map[string]map[string]models.DailyCandle) models.Series {
	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make(models.Series, len(dates))
	for i, d := range dates {
		out[i] = models.MergedDayRecord{Date: d, Exchanges: days[d]}
	}
	return out
}
