package models

import (
	"sort"
	"time"
)

// MergedDayRecord groups every exchange's candle for a single date.
type MergedDayRecord struct {
	Date      string                 `json:"date"`
	Exchanges map[string]DailyCandle `json:"exchanges"`
}

// Candle returns the candle for exchange, if present.
func (r MergedDayRecord) Candle(exchange string) (DailyCandle, bool) {
	c, ok := r.Exchanges[exchange]
	return c, ok
}

// Series is a list of merged day records ordered strictly by date.
type Series []MergedDayRecord

func (s Series) FirstDate() string {
	if len(s) == 0 {
		return ""
	}
	return s[0].Date
}

func (s Series) LastDate() string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1].Date
}

// LastDay returns the last date as a UTC day, or the zero time for an empty series.
func (s Series) LastDay() time.Time {
	t, err := time.ParseInLocation(DayLayout, s.LastDate(), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Window returns the n records ending right before index end, clipped to the series bounds.
func (s Series) Window(end, n int) Series {
	if end > len(s) {
		end = len(s)
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	if end <= start {
		return Series{}
	}
	return s[start:end]
}

// Tail returns the last n records.
func (s Series) Tail(n int) Series {
	return s.Window(len(s), n)
}

// Candles returns the candles of one exchange in series order, skipping days it is absent.
func (s Series) Candles(exchange string) []DailyCandle {
	out := make([]DailyCandle, 0, len(s))
	for _, rec := range s {
		if c, ok := rec.Exchanges[exchange]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Closes returns the close prices of one exchange in series order.
func (s Series) Closes(exchange string) []float64 {
	candles := s.Candles(exchange)
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// IsSorted reports whether dates are strictly increasing.
func (s Series) IsSorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Date <= s[i-1].Date {
			return false
		}
	}
	return true
}

// Sorted returns a copy ordered by date. Duplicate dates keep their relative order.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Index returns the position of date in the series, or -1.
func (s Series) Index(date string) int {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case s[mid].Date == date:
			return mid
		case s[mid].Date < date:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}
