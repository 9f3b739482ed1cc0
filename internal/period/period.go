// Package period provides calendar month helpers shared by reporting and
// request parsing. All month arithmetic is done on UTC fields.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var monthParamRegex = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Of returns the UTC calendar month containing t.
func Of(t time.Time) YearMonth {
	u := t.UTC()
	return YearMonth{Year: u.Year(), Month: u.Month()}
}

// Key renders the month as YYYY-MM.
func (ym YearMonth) Key() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Time returns the first day of the month at 00:00 UTC.
func (ym YearMonth) Time() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts the month by n, which may be negative.
func (ym YearMonth) AddMonths(n int) YearMonth {
	return Of(ym.Time().AddDate(0, n, 0))
}

// Range returns the first and last calendar dates of the month.
func (ym YearMonth) Range() (time.Time, time.Time) {
	return MonthRange(ym.Year, ym.Month)
}

// MonthKey formats t's UTC year and month as YYYY-MM. Local offsets never
// shift the result.
func MonthKey(t time.Time) string {
	return Of(t).Key()
}

// EnumerateMonths lists the first day (00:00 UTC) of every month from
// start's month through end's month inclusive. It is empty when start's
// month is after end's month.
func EnumerateMonths(start, end time.Time) []time.Time {
	cur := Of(start).Time()
	last := Of(end).Time()

	var months []time.Time
	for !cur.After(last) {
		months = append(months, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// ParseMonthParam parses a YYYY-MM query value. ok is false for anything
// that is not exactly four digits, a dash, and a month in 01..12; callers
// fall back to a default month in that case.
func ParseMonthParam(s string) (YearMonth, bool) {
	m := monthParamRegex.FindStringSubmatch(s)
	if m == nil {
		return YearMonth{}, false
	}

	year, err := strconv.Atoi(m[1])
	if err != nil {
		return YearMonth{}, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return YearMonth{}, false
	}

	return YearMonth{Year: year, Month: time.Month(month)}, true
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MonthRange returns the first and last calendar dates of a month at 00:00 UTC.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// YearRange returns January 1st and December 31st of year at 00:00 UTC.
func YearRange(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// ShortLabel renders a month as a short name and two-digit year, e.g. "Jan 24".
func ShortLabel(t time.Time) string {
	return t.UTC().Format("Jan 06")
}

// LongLabel renders a month as its full name and year, e.g. "January 2024".
func LongLabel(t time.Time) string {
	return t.UTC().Format("January 2006")
}
