package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/internal/roster"
	"github.com/username/duty-pay/internal/tariff"
	"github.com/username/duty-pay/pkg/dateutil"
)

// DutyDTO is a duty as posted by clients. Timestamps are naive wall-clock
// values, "2006-01-02 15:04" or ISO "2006-01-02T15:04:05".
type DutyDTO struct {
	Start         string `json:"start"`
	End           string `json:"end"`
	Municipality  string `json:"municipality"`
	Grade         string `json:"grade"`
	DutyType      string `json:"duty_type,omitempty"`
	StartOverride string `json:"start_override,omitempty"`
	EndOverride   string `json:"end_override,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// BillingRequest is the body of POST /api/billing. Either Duties or Entries
// may be used; Entries need Year and Month.
type BillingRequest struct {
	Year               int            `json:"year,omitempty"`
	Month              int            `json:"month,omitempty"`
	WithholdingPercent string         `json:"withholding_percent"`
	Duties             []DutyDTO      `json:"duties"`
	Entries            []roster.Entry `json:"entries,omitempty"`
	Archive            bool           `json:"archive,omitempty"`
}

// BillingResponse is returned by POST /api/billing
type BillingResponse struct {
	RunID      string          `json:"run_id,omitempty"`
	Skipped    int             `json:"skipped_entries"`
	TotalGross decimal.Decimal `json:"total_gross"`
	TotalNet   decimal.Decimal `json:"total_net"`
	*billing.Result
}

// DayDTO is returned by GET /api/calendar/{date}
type DayDTO struct {
	Date         string           `json:"date"`
	Municipality string           `json:"municipality"`
	DayType      calendar.DayType `json:"day_type"`
}

// HolidayDTO is one loaded holiday
type HolidayDTO struct {
	Date         string `json:"date"`
	Scope        string `json:"scope"`
	Municipality string `json:"municipality,omitempty"`
	Description  string `json:"description,omitempty"`
}

// TariffsDTO is returned by GET /api/tariffs. Only the rows of the table's
// mode are set.
type TariffsDTO struct {
	Mode        tariff.Mode     `json:"mode"`
	Flat        []FlatRateDTO   `json:"flat,omitempty"`
	Multipliers []MultiplierDTO `json:"multipliers,omitempty"`
}

// FlatRateDTO is one flat tariff row
type FlatRateDTO struct {
	Grade   tariff.Grade    `json:"grade"`
	Normal  decimal.Decimal `json:"normal"`
	Holiday decimal.Decimal `json:"holiday"`
	Special decimal.Decimal `json:"special"`
}

// MultiplierDTO is one multiplier tariff row
type MultiplierDTO struct {
	Grade             tariff.Grade    `json:"grade"`
	DutyType          string          `json:"duty_type"`
	Base              decimal.Decimal `json:"base"`
	HolidayMultiplier decimal.Decimal `json:"holiday_multiplier"`
	SpecialMultiplier decimal.Decimal `json:"special_multiplier"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	DutyIndex *int   `json:"duty_index,omitempty"`
}

// toRecord converts a posted duty. Blank municipalities take the default.
func (d DutyDTO) toRecord(defaultMunicipality string) (billing.DutyRecord, error) {
	var rec billing.DutyRecord
	var err error

	if rec.Start, err = dateutil.ParseDateTime(d.Start); err != nil {
		return rec, fmt.Errorf("start: %w", err)
	}
	if rec.End, err = dateutil.ParseDateTime(d.End); err != nil {
		return rec, fmt.Errorf("end: %w", err)
	}
	if rec.Grade, err = tariff.ParseGrade(d.Grade); err != nil {
		return rec, fmt.Errorf("grade: %w", err)
	}
	if rec.StartDay, err = parseOverride(d.StartOverride); err != nil {
		return rec, fmt.Errorf("start_override: %w", err)
	}
	if rec.EndDay, err = parseOverride(d.EndOverride); err != nil {
		return rec, fmt.Errorf("end_override: %w", err)
	}

	rec.Municipality = strings.TrimSpace(d.Municipality)
	if rec.Municipality == "" {
		rec.Municipality = defaultMunicipality
	}
	rec.DutyType = strings.TrimSpace(d.DutyType)
	rec.Notes = strings.TrimSpace(d.Notes)
	return rec, nil
}

func parseOverride(s string) (*calendar.DayType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	dt, err := calendar.ParseDayType(s)
	if err != nil {
		return nil, err
	}
	return &dt, nil
}

func toTariffsDTO(t *tariff.Table) TariffsDTO {
	dto := TariffsDTO{Mode: t.Mode()}
	switch t.Mode() {
	case tariff.ModeMultiplier:
		for _, r := range t.MultiplierRates() {
			dto.Multipliers = append(dto.Multipliers, MultiplierDTO{
				Grade:             r.Grade,
				DutyType:          r.DutyType,
				Base:              r.Base,
				HolidayMultiplier: r.HolidayMultiplier,
				SpecialMultiplier: r.SpecialMultiplier,
			})
		}
	default:
		for _, r := range t.FlatRates() {
			dto.Flat = append(dto.Flat, FlatRateDTO{
				Grade:   r.Grade,
				Normal:  r.Normal,
				Holiday: r.Holiday,
				Special: r.Special,
			})
		}
	}
	return dto
}
