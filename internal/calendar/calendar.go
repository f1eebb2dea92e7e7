package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DayType represents the pay category of a calendar day.
// Precedence when several rules match the same date: special > holiday > normal.
type DayType int

const (
	DayTypeNormal DayType = iota + 1
	DayTypeHoliday
	DayTypeSpecial
)

// String returns the label used in ledgers and reports
func (t DayType) String() string {
	switch t {
	case DayTypeNormal:
		return "normal"
	case DayTypeHoliday:
		return "holiday"
	case DayTypeSpecial:
		return "special"
	default:
		return fmt.Sprintf("DayType(%d)", int(t))
	}
}

// ParseDayType accepts the English labels and the Spanish ones used by the
// roster files (festivo, especial).
func ParseDayType(s string) (DayType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return DayTypeNormal, nil
	case "holiday", "festivo":
		return DayTypeHoliday, nil
	case "special", "especial":
		return DayTypeSpecial, nil
	default:
		return 0, fmt.Errorf("unknown day type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (t DayType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *DayType) UnmarshalText(b []byte) error {
	parsed, err := ParseDayType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Classifier answers which day type applies to a date in a municipality.
// Implementations must always answer; missing data means DayTypeNormal.
type Classifier interface {
	Classify(date time.Time, municipality string) DayType
}
