package calendar

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// YearCalendars implements Classifier across years: each date is answered by
// the HolidayCalendar of its own year, loaded from the source on first use.
// A duty running from 31 December into 1 January sees both years' holidays.
type YearCalendars struct {
	source              FileSource
	defaultMunicipality string
	logger              *zap.Logger

	mu    sync.Mutex
	years map[int]*HolidayCalendar
}

// NewYearCalendars creates a new YearCalendars
func NewYearCalendars(source FileSource, defaultMunicipality string, logger *zap.Logger) *YearCalendars {
	return &YearCalendars{
		source:              source,
		defaultMunicipality: defaultMunicipality,
		logger:              logger,
		years:               make(map[int]*HolidayCalendar),
	}
}

// Add registers a prebuilt calendar, replacing any loaded for its year
func (yc *YearCalendars) Add(hc *HolidayCalendar) {
	yc.mu.Lock()
	defer yc.mu.Unlock()
	yc.years[hc.Year()] = hc
}

// Year returns the calendar of year, loading it if needed
func (yc *YearCalendars) Year(year int) *HolidayCalendar {
	yc.mu.Lock()
	defer yc.mu.Unlock()

	if hc, ok := yc.years[year]; ok {
		return hc
	}

	yc.logger.Debug("Loading holiday calendar", zap.Int("year", year))
	hc := yc.source.Load(year, yc.defaultMunicipality, yc.logger)
	yc.years[year] = hc
	return hc
}

// Classify implements Classifier
func (yc *YearCalendars) Classify(t time.Time, municipality string) DayType {
	return yc.Year(t.Year()).Classify(t, municipality)
}
