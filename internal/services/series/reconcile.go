package series

import "BTCPulse/internal/domain/models"

// Reconcile folds fresh into existing. Records are keyed by date and a fresh
// record replaces the existing record for the same date wholesale.
func Reconcile(existing, fresh models.Series) models.Series {
	days := make(map[string]map[string]models.DailyCandle, len(existing)+len(fresh))
	for _, rec := range existing {
		days[rec.Date] = rec.Exchanges
	}
	for _, rec := range fresh {
		days[rec.Date] = rec.Exchanges
	}
	return build(days)
}

// Since returns the records dated on or after date.
func Since(s models.Series, date string) models.Series {
	for i, rec := range s {
		if rec.Date >= date {
			return s[i:]
		}
	}
	return models.Series{}
}
