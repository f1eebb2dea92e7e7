package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/internal/tariff"
	"github.com/username/duty-pay/pkg/dateutil"
	"go.uber.org/zap"
)

// Roster CSV columns
const (
	ColumnStart         = "inicio_datetime"
	ColumnEnd           = "fin_datetime"
	ColumnMunicipality  = "municipio"
	ColumnGrade         = "grado"
	ColumnNotes         = "observaciones"
	ColumnDutyType      = "tipo_guardia"
	ColumnStartOverride = "override_inicio"
	ColumnEndOverride   = "override_fin"
)

var requiredColumns = []string{ColumnStart, ColumnEnd, ColumnGrade}

// RowError reports a roster line that could not become a duty record
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadFile reads the duty roster at path
func ReadFile(path string, logger *zap.Logger) ([]billing.DutyRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer file.Close()

	duties, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}

	logger.Info("Roster loaded",
		zap.String("file", path),
		zap.Int("duties", len(duties)))

	return duties, nil
}

// Read parses roster rows. Fully blank rows are skipped; any other bad row
// fails with a *RowError so the caller can point at the line.
func Read(r io.Reader) ([]billing.DutyRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return []billing.DutyRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %s", col)
		}
	}

	duties := []billing.DutyRecord{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &RowError{Line: parseErr.StartLine, Err: parseErr.Err}
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		if isBlank(record) {
			continue
		}

		duty, rowErr := parseRow(cell)
		if rowErr != nil {
			rowErr.Line = line
			return nil, rowErr
		}
		duties = append(duties, duty)
	}

	return duties, nil
}

func parseRow(cell func(string) string) (billing.DutyRecord, *RowError) {
	var duty billing.DutyRecord
	var err error

	if duty.Start, err = dateutil.ParseDateTime(cell(ColumnStart)); err != nil {
		return duty, &RowError{Column: ColumnStart, Err: err}
	}
	if duty.End, err = dateutil.ParseDateTime(cell(ColumnEnd)); err != nil {
		return duty, &RowError{Column: ColumnEnd, Err: err}
	}
	if duty.Grade, err = tariff.ParseGrade(cell(ColumnGrade)); err != nil {
		return duty, &RowError{Column: ColumnGrade, Err: err}
	}
	if duty.StartDay, err = parseOverride(cell(ColumnStartOverride)); err != nil {
		return duty, &RowError{Column: ColumnStartOverride, Err: err}
	}
	if duty.EndDay, err = parseOverride(cell(ColumnEndOverride)); err != nil {
		return duty, &RowError{Column: ColumnEndOverride, Err: err}
	}

	duty.Municipality = cell(ColumnMunicipality)
	duty.DutyType = cell(ColumnDutyType)
	duty.Notes = cell(ColumnNotes)

	if err := duty.Validate(); err != nil {
		return duty, &RowError{Err: err}
	}

	return duty, nil
}

func parseOverride(s string) (*calendar.DayType, error) {
	if s == "" {
		return nil, nil
	}
	dt, err := calendar.ParseDayType(s)
	if err != nil {
		return nil, err
	}
	return &dt, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
