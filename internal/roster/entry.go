package roster

import (
	"strconv"
	"strings"
	"time"

	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/tariff"
	"github.com/username/duty-pay/pkg/dateutil"
)

// MaxEntries caps a monthly roster
const MaxEntries = 24

// Entry is one day-picker row: days of the billing month and whole hours.
// All fields are raw text as typed.
type Entry struct {
	DayStart      string `json:"day_start"`
	HourStart     string `json:"hour_start"`
	DayEnd        string `json:"day_end"`
	HourEnd       string `json:"hour_end"`
	Municipality  string `json:"municipality"`
	Grade         string `json:"grade"`
	DutyType      string `json:"duty_type,omitempty"`
	StartOverride string `json:"start_override,omitempty"`
	EndOverride   string `json:"end_override,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (e Entry) blank() bool {
	return strings.TrimSpace(e.DayStart+e.HourStart+e.DayEnd+e.HourEnd+e.Municipality+e.Grade+
		e.DutyType+e.StartOverride+e.EndOverride+e.Notes) == ""
}

// FromEntries turns day-picker rows of one month into duty records. Rows that
// are blank, incomplete, out of range or end before they start are skipped
// and counted. Only the first MaxEntries rows are considered.
func FromEntries(year int, month time.Month, defaultMunicipality string, entries []Entry) ([]billing.DutyRecord, int) {
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	days := dateutil.DaysInMonth(year, month)
	duties := []billing.DutyRecord{}
	skipped := 0

	for _, e := range entries {
		if e.blank() {
			continue
		}

		d1, ok1 := parseBounded(e.DayStart, 1, days)
		h1, ok2 := parseBounded(e.HourStart, 0, 23)
		d2, ok3 := parseBounded(e.DayEnd, 1, days)
		h2, ok4 := parseBounded(e.HourEnd, 0, 23)
		grade, err := tariff.ParseGrade(e.Grade)
		if !ok1 || !ok2 || !ok3 || !ok4 || err != nil {
			skipped++
			continue
		}

		start := time.Date(year, month, d1, h1, 0, 0, 0, time.UTC)
		end := time.Date(year, month, d2, h2, 0, 0, 0, time.UTC)
		if !end.After(start) {
			skipped++
			continue
		}

		startDay, err := parseOverride(strings.TrimSpace(e.StartOverride))
		if err != nil {
			skipped++
			continue
		}
		endDay, err := parseOverride(strings.TrimSpace(e.EndOverride))
		if err != nil {
			skipped++
			continue
		}

		municipality := strings.TrimSpace(e.Municipality)
		if municipality == "" {
			municipality = strings.TrimSpace(defaultMunicipality)
		}

		duties = append(duties, billing.DutyRecord{
			Start:        start,
			End:          end,
			Municipality: municipality,
			Grade:        grade,
			DutyType:     strings.TrimSpace(e.DutyType),
			StartDay:     startDay,
			EndDay:       endDay,
			Notes:        strings.TrimSpace(e.Notes),
		})
	}

	return duties, skipped
}

func parseBounded(s string, min, max int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < min || n > max {
		return 0, false
	}
	return n, true
}
