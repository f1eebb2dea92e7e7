package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/internal/tariff"
	"github.com/username/duty-pay/pkg/dateutil"
	"go.uber.org/zap"
)

// BilledHours is what every block is paid as, whatever its real length
var BilledHours = decimal.NewFromInt(1)

// DutyRecord is one on-call shift as entered by the resident
type DutyRecord struct {
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end"`
	Municipality string            `json:"municipality"`
	Grade        tariff.Grade      `json:"grade"`
	DutyType     string            `json:"duty_type,omitempty"`
	StartDay     *calendar.DayType `json:"start_day_override,omitempty"`
	EndDay       *calendar.DayType `json:"end_day_override,omitempty"`
	Notes        string            `json:"notes,omitempty"`
}

// PricedBlock is one ledger row
type PricedBlock struct {
	DutyIndex    int              `json:"duty_index"`
	Block        HourBlock        `json:"block"`
	Municipality string           `json:"municipality"`
	Grade        tariff.Grade     `json:"grade"`
	DutyType     string           `json:"duty_type,omitempty"`
	DayType      calendar.DayType `json:"day_type"`
	Overridden   bool             `json:"overridden"`
	Hours        decimal.Decimal  `json:"hours"`
	HourlyRate   decimal.Decimal  `json:"hourly_rate"`
	Amount       decimal.Decimal  `json:"amount"`
}

// DutySummary is the per-shift financial result
type DutySummary struct {
	DutyIndex          int             `json:"duty_index"`
	Grade              tariff.Grade    `json:"grade"`
	DutyType           string          `json:"duty_type,omitempty"`
	Start              time.Time       `json:"start"`
	End                time.Time       `json:"end"`
	Blocks             int             `json:"blocks"`
	Gross              decimal.Decimal `json:"gross"`
	WithholdingPercent decimal.Decimal `json:"withholding_percent"`
	Net                decimal.Decimal `json:"net"`
	Municipality       string          `json:"municipality"`
	Notes              string          `json:"notes,omitempty"`
}

// Result holds the outputs of one billing run, in input order
type Result struct {
	Mode               tariff.Mode     `json:"mode"`
	WithholdingPercent decimal.Decimal `json:"withholding_percent"`
	Ledger             []PricedBlock   `json:"ledger"`
	Summaries          []DutySummary   `json:"summaries"`
	Rollup             []RollupRow     `json:"rollup"`
}

// TotalGross sums the gross of every duty
func (r *Result) TotalGross() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Summaries {
		total = total.Add(s.Gross)
	}
	return RoundMoney(total)
}

// TotalNet sums the net of every duty
func (r *Result) TotalNet() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Summaries {
		total = total.Add(s.Net)
	}
	return RoundMoney(total)
}

// Engine prices duty records against a calendar and a tariff table.
// It holds no mutable state; one engine may serve many runs.
type Engine struct {
	calendar calendar.Classifier
	tariffs  *tariff.Table
	logger   *zap.Logger
}

// NewEngine creates a new billing engine
func NewEngine(cal calendar.Classifier, tariffs *tariff.Table, logger *zap.Logger) *Engine {
	return &Engine{
		calendar: cal,
		tariffs:  tariffs,
		logger:   logger,
	}
}

// Tariffs returns the table the engine prices with
func (e *Engine) Tariffs() *tariff.Table {
	return e.tariffs
}

// Compute bills every duty. The first invalid interval or undefined tariff
// aborts the whole batch with a *DutyError and no partial result.
func (e *Engine) Compute(duties []DutyRecord, withholding decimal.Decimal) (*Result, error) {
	pct := ClampWithholding(withholding)
	if !pct.Equal(withholding) {
		e.logger.Warn("Withholding percent clamped",
			zap.String("requested", withholding.String()),
			zap.String("applied", pct.String()))
	}

	result := &Result{
		Mode:               e.tariffs.Mode(),
		WithholdingPercent: pct,
		Ledger:             []PricedBlock{},
		Summaries:          make([]DutySummary, 0, len(duties)),
	}

	for i, duty := range duties {
		blocks, summary, err := e.bill(i, duty, pct)
		if err != nil {
			dutyErr := &DutyError{Index: i, Start: duty.Start, End: duty.End, Grade: duty.Grade, Err: err}
			e.logger.Error("Billing aborted", zap.Error(dutyErr))
			return nil, dutyErr
		}
		result.Ledger = append(result.Ledger, blocks...)
		result.Summaries = append(result.Summaries, summary)
	}

	result.Rollup = Rollup(result.Mode, result.Ledger)

	e.logger.Info("Billing computed",
		zap.Int("duties", len(duties)),
		zap.Int("blocks", len(result.Ledger)),
		zap.String("gross", result.TotalGross().StringFixed(moneyPlaces)),
		zap.String("net", result.TotalNet().StringFixed(moneyPlaces)))

	return result, nil
}

func (e *Engine) bill(index int, duty DutyRecord, pct decimal.Decimal) ([]PricedBlock, DutySummary, error) {
	hourBlocks, err := Split(duty.Start, duty.End)
	if err != nil {
		return nil, DutySummary{}, err
	}

	dutyType := ""
	if e.tariffs.Mode() == tariff.ModeMultiplier {
		dutyType = duty.DutyType
	}

	priced := make([]PricedBlock, 0, len(hourBlocks))
	gross := decimal.Zero
	for _, block := range hourBlocks {
		dayType, overridden := e.dayType(duty, block)

		rate, err := e.tariffs.Rate(duty.Grade, dutyType, dayType)
		if err != nil {
			return nil, DutySummary{}, err
		}

		amount := RoundMoney(rate.Mul(BilledHours))
		gross = gross.Add(amount)

		priced = append(priced, PricedBlock{
			DutyIndex:    index,
			Block:        block,
			Municipality: duty.Municipality,
			Grade:        duty.Grade,
			DutyType:     dutyType,
			DayType:      dayType,
			Overridden:   overridden,
			Hours:        BilledHours,
			HourlyRate:   rate,
			Amount:       amount,
		})
	}

	gross = RoundMoney(gross)
	summary := DutySummary{
		DutyIndex:          index,
		Grade:              duty.Grade,
		DutyType:           dutyType,
		Start:              duty.Start,
		End:                duty.End,
		Blocks:             len(priced),
		Gross:              gross,
		WithholdingPercent: pct,
		Net:                Net(gross, pct),
		Municipality:       duty.Municipality,
		Notes:              duty.Notes,
	}

	e.logger.Debug("Duty priced",
		zap.Int("index", index),
		zap.String("grade", string(duty.Grade)),
		zap.Int("blocks", len(priced)),
		zap.String("gross", gross.StringFixed(moneyPlaces)))

	return priced, summary, nil
}

// dayType resolves a block's day type. A start override covers only blocks
// starting on the duty's start date, an end override only blocks starting on
// its end date; every other date goes to the calendar. On a same-day duty
// the start override wins.
func (e *Engine) dayType(duty DutyRecord, block HourBlock) (calendar.DayType, bool) {
	if duty.StartDay != nil && dateutil.IsSameDay(block.Start, duty.Start) {
		return *duty.StartDay, true
	}
	if duty.EndDay != nil && dateutil.IsSameDay(block.Start, duty.End) {
		return *duty.EndDay, true
	}
	return e.calendar.Classify(block.Start, duty.Municipality), false
}

// Validate checks a record without pricing it
func (d DutyRecord) Validate() error {
	if !d.End.After(d.Start) {
		return fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidInterval, dateutil.FormatDateTime(d.End), dateutil.FormatDateTime(d.Start))
	}
	if _, err := tariff.ParseGrade(string(d.Grade)); err != nil {
		return err
	}
	return nil
}
