// Package running turns WHOOP workouts into per-local-day running totals.
package running

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RunningSportID is WHOOP's sport identifier for running.
const RunningSportID = 0

// Date is a calendar date with no time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of d, for date arithmetic.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Activity is the subset of a workout the aggregation needs.
type Activity struct {
	ID             string
	SportID        int
	Start          time.Time // UTC
	End            time.Time // UTC
	TimezoneOffset string    // "+02:00", "-05:00", "Z"
}

// DailyTotals maps a local calendar date to accumulated running time.
type DailyTotals map[Date]time.Duration

// Dates returns the keys in ascending order.
func (t DailyTotals) Dates() []Date {
	dates := make([]Date, 0, len(t))
	for d := range t {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Total is the sum over all dates.
func (t DailyTotals) Total() time.Duration {
	var sum time.Duration
	for _, d := range t {
		sum += d
	}
	return sum
}

// ParseOffset turns a "+HH:MM" / "-HH:MM" / "Z" offset into a fixed zone.
func ParseOffset(offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	if offset == "" || offset == "Z" {
		return time.UTC, nil
	}

	sign := 1
	switch offset[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, fmt.Errorf("timezone offset %q has no sign", offset)
	}

	hh, mm, ok := strings.Cut(offset[1:], ":")
	if !ok && len(hh) == 4 {
		hh, mm = hh[:2], hh[2:]
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours > 14 {
		return nil, fmt.Errorf("invalid hours in timezone offset %q", offset)
	}
	minutes := 0
	if mm != "" {
		minutes, err = strconv.Atoi(mm)
		if err != nil || minutes >= 60 {
			return nil, fmt.Errorf("invalid minutes in timezone offset %q", offset)
		}
	}

	secs := sign * (hours*3600 + minutes*60)
	return time.FixedZone("UTC"+offset, secs), nil
}
