package tariff

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	flatColumns       = []string{"grado", "eur_hora_normal", "eur_hora_festivo", "eur_hora_especial"}
	multiplierColumns = []string{"grado", "tipo_guardia", "eur_hora_base", "mult_festivo", "mult_especial"}
)

// LoadFile reads a tariff CSV in the given mode. File-level problems
// (missing columns, bad numbers, unknown grades) are errors; a grade that is
// simply absent only fails later, at lookup time.
func LoadFile(path string, mode Mode, logger *zap.Logger) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tariff file: %w", err)
	}
	defer file.Close()

	table, err := Load(file, mode, logger)
	if err != nil {
		return nil, fmt.Errorf("tariff file %s: %w", path, err)
	}

	logger.Info("Tariff table loaded",
		zap.String("file", path),
		zap.String("mode", string(mode)))

	return table, nil
}

// Load parses tariff rows from r
func Load(r io.Reader, mode Mode, logger *zap.Logger) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	required := flatColumns
	if mode == ModeMultiplier {
		required = multiplierColumns
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	var flat []FlatRate
	var multi []MultiplierRate
	seen := make(map[string]bool)

	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		cell := func(col string) string { return strings.TrimSpace(record[index[col]]) }
		number := func(col string) (decimal.Decimal, error) {
			raw := strings.ReplaceAll(cell(col), ",", ".")
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return decimal.Zero, fmt.Errorf("line %d: column %s: invalid number %q", line, col, cell(col))
			}
			if d.IsNegative() {
				return decimal.Zero, fmt.Errorf("line %d: column %s: negative value %s", line, col, d)
			}
			return d, nil
		}

		grade, err := ParseGrade(cell("grado"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		switch mode {
		case ModeMultiplier:
			dutyType := cell("tipo_guardia")
			key := string(grade) + "|" + dutyType
			if seen[key] {
				logger.Warn("Duplicate tariff row ignored",
					zap.Int("line", line),
					zap.String("grade", string(grade)),
					zap.String("duty_type", dutyType))
				continue
			}
			seen[key] = true

			row := MultiplierRate{Grade: grade, DutyType: dutyType}
			if row.Base, err = number("eur_hora_base"); err != nil {
				return nil, err
			}
			if row.HolidayMultiplier, err = number("mult_festivo"); err != nil {
				return nil, err
			}
			if row.SpecialMultiplier, err = number("mult_especial"); err != nil {
				return nil, err
			}
			multi = append(multi, row)

		default:
			if seen[string(grade)] {
				logger.Warn("Duplicate tariff row ignored",
					zap.Int("line", line),
					zap.String("grade", string(grade)))
				continue
			}
			seen[string(grade)] = true

			row := FlatRate{Grade: grade}
			if row.Normal, err = number("eur_hora_normal"); err != nil {
				return nil, err
			}
			if row.Holiday, err = number("eur_hora_festivo"); err != nil {
				return nil, err
			}
			if row.Special, err = number("eur_hora_especial"); err != nil {
				return nil, err
			}
			flat = append(flat, row)
		}
	}

	if mode == ModeMultiplier {
		return NewMultiplierTable(multi), nil
	}
	return NewFlatTable(flat), nil
}
