package repository

import (
	"strings"
	"time"
)

// Timeframe represents candle aggregation buckets.
type Timeframe string

const (
	TF1D Timeframe = "1D"
	TF1W Timeframe = "1W"
	TF1M Timeframe = "1M"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1D, TF1W, TF1M:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1D }

// ParseTimeframe converts a raw string to a timeframe. Empty input yields the default.
func ParseTimeframe(s string) (Timeframe, bool) {
	if s == "" {
		return DefaultTimeframe(), true
	}
	tf := Timeframe(strings.ToUpper(s))
	return tf, IsValidTimeframe(tf)
}

// Period is a trailing statistics window.
type Period string

const (
	Period1M Period = "1M"
	Period3M Period = "3M"
	Period6M Period = "6M"
	Period1Y Period = "1Y"
)

// Start returns the first instant covered by the period when looking back from now.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1M:
		return now.AddDate(0, -1, 0)
	case Period3M:
		return now.AddDate(0, -3, 0)
	case Period6M:
		return now.AddDate(0, -6, 0)
	case Period1Y:
		return now.AddDate(-1, 0, 0)
	default:
		return now
	}
}

func (p Period) Valid() bool {
	switch p {
	case Period1M, Period3M, Period6M, Period1Y:
		return true
	}
	return false
}

// ParsePeriod converts a raw string to a period. Empty input yields 1M.
func ParsePeriod(s string) (Period, bool) {
	if s == "" {
		return Period1M, true
	}
	p := Period(strings.ToUpper(s))
	return p, p.Valid()
}
