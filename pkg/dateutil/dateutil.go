package dateutil

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// TruncateHour drops minutes, seconds and nanoseconds, keeping the wall-clock hour.
// Unlike time.Truncate it works on the wall clock, not on absolute time.
func TruncateHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// NextHourBoundary returns the first wall-clock hour boundary strictly after t
func NextHourBoundary(t time.Time) time.Time {
	return TruncateHour(t).Add(time.Hour)
}

// IsSameDay returns true if two dates are on the same day
func IsSameDay(date1, date2 time.Time) bool {
	return date1.Year() == date2.Year() &&
		date1.Month() == date2.Month() &&
		date1.Day() == date2.Day()
}

// DateOf returns the calendar date of t, ignoring the time of day
func DateOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}

// MonthDay formats the recurring month-day key (MM-DD) of a date
func MonthDay(d civil.Date) string {
	return fmt.Sprintf("%02d-%02d", int(d.Month), d.Day)
}

// DaysInMonth returns the number of days of the given month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseDate parses date string in various formats
func ParseDate(dateStr string) (civil.Date, error) {
	dateStr = strings.TrimSpace(dateStr)
	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return civil.DateOf(t), nil
		}
	}

	return civil.Date{}, fmt.Errorf("unrecognized date %q", dateStr)
}

// ParseDateTime parses a naive local timestamp. The result carries time.UTC
// only as a neutral location; no zone conversion is ever applied.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatDateTime formats a naive timestamp the way the ledger files print it
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
