package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/username/duty-pay/internal/tariff"
	"github.com/username/duty-pay/pkg/dateutil"
)

var (
	// ErrInvalidInterval is returned when a duty's end is not after its start
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidWithholding is returned when a withholding input is not numeric.
	// Numeric values out of range are clamped, never rejected.
	ErrInvalidWithholding = errors.New("invalid withholding")
)

// DutyError identifies the record that aborted a batch
type DutyError struct {
	Index int // zero-based position in the input
	Start time.Time
	End   time.Time
	Grade tariff.Grade
	Err   error
}

func (e *DutyError) Error() string {
	return fmt.Sprintf("duty #%d (%s → %s, grade %s): %v",
		e.Index+1,
		dateutil.FormatDateTime(e.Start),
		dateutil.FormatDateTime(e.End),
		e.Grade,
		e.Err)
}

func (e *DutyError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err was caused by the duties or the tariff
// table rather than by the program
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, tariff.ErrUndefinedTariff) ||
		errors.Is(err, ErrInvalidWithholding)
}
