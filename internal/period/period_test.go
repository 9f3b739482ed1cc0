package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthKey(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	la := time.FixedZone("PST", -8*60*60)

	tests := []struct {
		in   time.Time
		name string
		want string
	}{
		{name: "utc mid month", in: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), want: "2024-03"},
		{name: "positive offset reads utc fields", in: time.Date(2024, 4, 1, 3, 0, 0, 0, tokyo), want: "2024-03"},
		{name: "negative offset reads utc fields", in: time.Date(2023, 12, 31, 20, 0, 0, 0, la), want: "2024-01"},
		{name: "single digit month is padded", in: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), want: "2025-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthKey(tt.in))
		})
	}
}

func TestEnumerateMonths(t *testing.T) {
	t.Run("inclusive across a year boundary", func(t *testing.T) {
		start := time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)

		months := EnumerateMonths(start, end)
		require.Len(t, months, 4)

		keys := make([]string, 0, len(months))
		for _, m := range months {
			keys = append(keys, MonthKey(m))
			assert.Equal(t, 1, m.Day())
			assert.Equal(t, time.UTC, m.Location())
			assert.Zero(t, m.Hour())
		}
		assert.Equal(t, []string{"2023-11", "2023-12", "2024-01", "2024-02"}, keys)
	})

	t.Run("same month yields one entry", func(t *testing.T) {
		d := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)
		assert.Len(t, EnumerateMonths(d, d.AddDate(0, 0, 10)), 1)
	})

	t.Run("start after end is empty", func(t *testing.T) {
		start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
		assert.Empty(t, EnumerateMonths(start, end))
	})
}

func TestParseMonthParam(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   YearMonth
		wantOK bool
	}{
		{name: "valid", in: "2024-03", want: YearMonth{Year: 2024, Month: time.March}, wantOK: true},
		{name: "december", in: "1999-12", want: YearMonth{Year: 1999, Month: time.December}, wantOK: true},
		{name: "month zero", in: "2024-00"},
		{name: "month thirteen", in: "2024-13"},
		{name: "single digit month", in: "2024-3"},
		{name: "trailing text", in: "2024-03x"},
		{name: "empty", in: ""},
		{name: "wrong separator", in: "2024/03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMonthParam(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(-5, 1, 12))
	assert.Equal(t, 12, Clamp(40, 1, 12))
	assert.Equal(t, 6, Clamp(6, 1, 12))
}

func TestRangesAndLabels(t *testing.T) {
	start, end := MonthRange(2024, time.February)
	assert.Equal(t, "2024-02-01", start.Format("2006-01-02"))
	assert.Equal(t, "2024-02-29", end.Format("2006-01-02"))

	ys, ye := YearRange(2023)
	assert.Equal(t, "2023-01-01", ys.Format("2006-01-02"))
	assert.Equal(t, "2023-12-31", ye.Format("2006-01-02"))

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Jan 24", ShortLabel(jan))
	assert.Equal(t, "January 2024", LongLabel(jan))

	assert.Equal(t, "2023-12", YearMonth{Year: 2024, Month: time.January}.AddMonths(-1).Key())
}
