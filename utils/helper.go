package utils

import (
	"strconv"
	"strings"
	"time"
)

// Reporting periods understood by PeriodRange.
const (
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
	PeriodAll       = "all"
)

var (
	periodAllStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	periodAllEnd   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

// PeriodRange returns the [start, end) window of the reporting period containing now.
// Unknown or empty periods fall back to the calendar month.
func PeriodRange(period string, now time.Time) (time.Time, time.Time) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case PeriodAll:
		return periodAllStart, periodAllEnd
	case PeriodYearly, "annual":
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0)
	case PeriodQuarterly:
		return GetQuarterRange(now.Year(), now.Month(), now.Location())
	default:
		return GetMonthRange(now)
	}
}

// GetMonthRange returns the start of the month containing t and the start of the next one.
func GetMonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// GetQuarterRange returns the [start, end) window for the quarter containing the specified month.
func GetQuarterRange(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	startMonth := ((int(month)-1)/3)*3 + 1
	start := time.Date(year, time.Month(startMonth), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 3, 0)
}

// FormatNumber renders integral values without decimals and everything else with two.
func FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
