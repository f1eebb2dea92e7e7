package calendar

import (
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/username/duty-pay/pkg/dateutil"
	"go.uber.org/zap"
)

// Holiday is one row of a holiday source
type Holiday struct {
	Date         civil.Date
	Scope        string // nacional, autonomico, local
	Municipality string
	Description  string
}

type localKey struct {
	date         civil.Date
	municipality string
}

// HolidayCalendar classifies dates of one billing year using three
// independent layers queried in fixed order:
//  1. recurring special month-days (MM-DD, any year)
//  2. national and regional holidays of the year
//  3. local holidays of the year, keyed by municipality
//
// It is read-only after construction and safe to share between runs.
type HolidayCalendar struct {
	year                int
	defaultMunicipality string
	specials            map[string]struct{}
	national            map[civil.Date]Holiday
	local               map[localKey]Holiday
}

// NewHolidayCalendar builds the three lookup layers. Entries that cannot be
// used (malformed month-days, rows from another year) are logged and skipped.
func NewHolidayCalendar(
	year int,
	defaultMunicipality string,
	specials []string,
	national []Holiday,
	local []Holiday,
	logger *zap.Logger,
) *HolidayCalendar {
	hc := &HolidayCalendar{
		year:                year,
		defaultMunicipality: normalizeMunicipality(defaultMunicipality),
		specials:            make(map[string]struct{}, len(specials)),
		national:            make(map[civil.Date]Holiday, len(national)),
		local:               make(map[localKey]Holiday, len(local)),
	}

	for _, md := range specials {
		key, ok := normalizeMonthDay(md)
		if !ok {
			logger.Warn("Ignoring malformed special date", zap.String("month_day", md))
			continue
		}
		hc.specials[key] = struct{}{}
	}

	for _, h := range national {
		if h.Date.Year != year {
			logger.Debug("Ignoring holiday outside calendar year",
				zap.String("date", h.Date.String()),
				zap.Int("year", year))
			continue
		}
		if _, dup := hc.national[h.Date]; !dup {
			hc.national[h.Date] = h
		}
	}

	for _, h := range local {
		if h.Date.Year != year {
			continue
		}
		muni := normalizeMunicipality(h.Municipality)
		if muni == "" {
			logger.Warn("Ignoring local holiday without municipality",
				zap.String("date", h.Date.String()))
			continue
		}
		key := localKey{date: h.Date, municipality: muni}
		if _, dup := hc.local[key]; !dup {
			hc.local[key] = h
		}
	}

	logger.Info("Holiday calendar built",
		zap.Int("year", year),
		zap.Int("specials", len(hc.specials)),
		zap.Int("national", len(hc.national)),
		zap.Int("local", len(hc.local)))

	return hc
}

// Year returns the billing year the calendar was built for
func (hc *HolidayCalendar) Year() int {
	return hc.year
}

// Classify returns the day type of the calendar date of t. A blank
// municipality falls back to the calendar's default municipality.
func (hc *HolidayCalendar) Classify(t time.Time, municipality string) DayType {
	date := dateutil.DateOf(t)

	if _, ok := hc.specials[dateutil.MonthDay(date)]; ok {
		return DayTypeSpecial
	}

	if _, ok := hc.national[date]; ok {
		return DayTypeHoliday
	}

	muni := normalizeMunicipality(municipality)
	if muni == "" {
		muni = hc.defaultMunicipality
	}
	if _, ok := hc.local[localKey{date: date, municipality: muni}]; ok {
		return DayTypeHoliday
	}

	return DayTypeNormal
}

// Holidays lists the national and local holidays of the year, ordered by date.
// Local rows come after national rows on the same date.
func (hc *HolidayCalendar) Holidays() []Holiday {
	out := make([]Holiday, 0, len(hc.national)+len(hc.local))
	for _, h := range hc.national {
		out = append(out, h)
	}
	for _, h := range hc.local {
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		if (out[i].Municipality == "") != (out[j].Municipality == "") {
			return out[i].Municipality == ""
		}
		return out[i].Municipality < out[j].Municipality
	})
	return out
}

func normalizeMunicipality(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeMonthDay accepts "MM-DD" and "M-D" and returns the padded key
func normalizeMonthDay(s string) (string, bool) {
	t, err := time.Parse("1-2", strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return t.Format("01-02"), true
}
