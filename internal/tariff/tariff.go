package tariff

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/duty-pay/internal/calendar"
)

// ErrUndefinedTariff is returned when no price row exists for the requested
// grade (flat mode) or grade and duty type pair (multiplier mode).
var ErrUndefinedTariff = errors.New("undefined tariff")

// Grade is the resident's year of training
type Grade string

const (
	GradeR1 Grade = "R1"
	GradeR2 Grade = "R2"
	GradeR3 Grade = "R3"
	GradeR4 Grade = "R4"
	GradeR5 Grade = "R5"
)

// Grades lists every valid grade in order
var Grades = []Grade{GradeR1, GradeR2, GradeR3, GradeR4, GradeR5}

// ParseGrade normalizes "r2", " R2 " and similar into a Grade
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range Grades {
		if g == valid {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown grade %q (expected R1..R5)", s)
}

// Mode selects how a block's hourly price is derived
type Mode string

const (
	// ModeFlat prices each day type directly, keyed by grade
	ModeFlat Mode = "flat"
	// ModeMultiplier prices a base rate times a day-type multiplier, keyed by grade and duty type
	ModeMultiplier Mode = "multiplier"
)

// ParseMode validates a configured pricing mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFlat, "":
		return ModeFlat, nil
	case ModeMultiplier:
		return ModeMultiplier, nil
	default:
		return "", fmt.Errorf("unknown pricing mode %q (expected flat or multiplier)", s)
	}
}

// FlatRate is one row of the flat table
type FlatRate struct {
	Grade   Grade           `json:"grade"`
	Normal  decimal.Decimal `json:"normal"`
	Holiday decimal.Decimal `json:"holiday"`
	Special decimal.Decimal `json:"special"`
}

// For returns the price of a day type. Only the three declared columns
// exist; there is no cross-column fallback.
func (r FlatRate) For(dayType calendar.DayType) (decimal.Decimal, bool) {
	switch dayType {
	case calendar.DayTypeNormal:
		return r.Normal, true
	case calendar.DayTypeHoliday:
		return r.Holiday, true
	case calendar.DayTypeSpecial:
		return r.Special, true
	default:
		return decimal.Zero, false
	}
}

// MultiplierRate is one row of the multiplier table
type MultiplierRate struct {
	Grade             Grade           `json:"grade"`
	DutyType          string          `json:"duty_type"`
	Base              decimal.Decimal `json:"base"`
	HolidayMultiplier decimal.Decimal `json:"holiday_multiplier"`
	SpecialMultiplier decimal.Decimal `json:"special_multiplier"`
}

// Multiplier returns the factor applied to the base rate; normal days are 1
func (r MultiplierRate) Multiplier(dayType calendar.DayType) (decimal.Decimal, bool) {
	switch dayType {
	case calendar.DayTypeNormal:
		return decimal.NewFromInt(1), true
	case calendar.DayTypeHoliday:
		return r.HolidayMultiplier, true
	case calendar.DayTypeSpecial:
		return r.SpecialMultiplier, true
	default:
		return decimal.Zero, false
	}
}

type multiplierKey struct {
	grade    Grade
	dutyType string
}

// Table is a read-only tariff table. Exactly one of the two variants is
// populated, chosen by the constructor and recorded in mode.
type Table struct {
	mode       Mode
	flat       map[Grade]FlatRate
	multiplier map[multiplierKey]MultiplierRate
}

// NewFlatTable builds a flat-mode table. The first row of a grade wins.
func NewFlatTable(rates []FlatRate) *Table {
	t := &Table{mode: ModeFlat, flat: make(map[Grade]FlatRate, len(rates))}
	for _, r := range rates {
		if _, dup := t.flat[r.Grade]; !dup {
			t.flat[r.Grade] = r
		}
	}
	return t
}

// NewMultiplierTable builds a multiplier-mode table. The first row of a
// (grade, duty type) pair wins.
func NewMultiplierTable(rates []MultiplierRate) *Table {
	t := &Table{mode: ModeMultiplier, multiplier: make(map[multiplierKey]MultiplierRate, len(rates))}
	for _, r := range rates {
		key := multiplierKey{grade: r.Grade, dutyType: normalizeDutyType(r.DutyType)}
		if _, dup := t.multiplier[key]; !dup {
			t.multiplier[key] = r
		}
	}
	return t
}

// Mode reports which pricing variant the table holds
func (t *Table) Mode() Mode {
	return t.mode
}

// Flat returns the flat row of a grade
func (t *Table) Flat(grade Grade) (FlatRate, error) {
	if t.mode != ModeFlat {
		return FlatRate{}, fmt.Errorf("flat lookup on a %s table", t.mode)
	}
	r, ok := t.flat[grade]
	if !ok {
		return FlatRate{}, fmt.Errorf("%w: grade=%s", ErrUndefinedTariff, grade)
	}
	return r, nil
}

// Multipliers returns the multiplier row of an exact (grade, duty type) pair
func (t *Table) Multipliers(grade Grade, dutyType string) (MultiplierRate, error) {
	if t.mode != ModeMultiplier {
		return MultiplierRate{}, fmt.Errorf("multiplier lookup on a %s table", t.mode)
	}
	r, ok := t.multiplier[multiplierKey{grade: grade, dutyType: normalizeDutyType(dutyType)}]
	if !ok {
		return MultiplierRate{}, fmt.Errorf("%w: grade=%s duty_type=%q", ErrUndefinedTariff, grade, dutyType)
	}
	return r, nil
}

// Rate returns the hourly price of one block. dutyType is ignored in flat mode.
func (t *Table) Rate(grade Grade, dutyType string, dayType calendar.DayType) (decimal.Decimal, error) {
	switch t.mode {
	case ModeFlat:
		row, err := t.Flat(grade)
		if err != nil {
			return decimal.Zero, err
		}
		price, ok := row.For(dayType)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: grade=%s day_type=%s", ErrUndefinedTariff, grade, dayType)
		}
		return price, nil

	case ModeMultiplier:
		row, err := t.Multipliers(grade, dutyType)
		if err != nil {
			return decimal.Zero, err
		}
		factor, ok := row.Multiplier(dayType)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: grade=%s duty_type=%q day_type=%s",
				ErrUndefinedTariff, grade, dutyType, dayType)
		}
		return row.Base.Mul(factor), nil

	default:
		return decimal.Zero, fmt.Errorf("tariff table has no pricing mode")
	}
}

// FlatRates returns the flat rows sorted by grade
func (t *Table) FlatRates() []FlatRate {
	out := make([]FlatRate, 0, len(t.flat))
	for _, r := range t.flat {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grade < out[j].Grade })
	return out
}

// MultiplierRates returns the multiplier rows sorted by grade and duty type
func (t *Table) MultiplierRates() []MultiplierRate {
	out := make([]MultiplierRate, 0, len(t.multiplier))
	for _, r := range t.multiplier {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Grade != out[j].Grade {
			return out[i].Grade < out[j].Grade
		}
		return out[i].DutyType < out[j].DutyType
	})
	return out
}

func normalizeDutyType(s string) string {
	return strings.TrimSpace(s)
}
