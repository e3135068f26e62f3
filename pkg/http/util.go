package http

import (
	"time"

	xutil "BTCPulse/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseTime accepts unix seconds or milliseconds, RFC3339 and YYYY-MM-DD.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// SplitCSV splits a comma separated query value, dropping blanks.
func SplitCSV(s string) []string { return xutil.SplitCSV(s) }
