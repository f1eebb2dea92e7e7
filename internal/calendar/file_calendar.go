package calendar

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/username/duty-pay/pkg/dateutil"
	"go.uber.org/zap"
)

// Columns of a holiday CSV file. Any of them may be missing.
const (
	columnDate         = "fecha"
	columnScope        = "ambito"
	columnMunicipality = "municipio"
	columnDescription  = "descripcion"
)

// FileSource locates the yearly holiday files of a data directory.
// File names may contain a {year} placeholder.
type FileSource struct {
	DataDir      string
	NationalFile string
	LocalFile    string
	Specials     []string
}

// LoadHolidayFile reads a holiday CSV. It never fails: a missing or unreadable
// file yields no holidays and bad rows are skipped, so classification always
// degrades to "normal".
func LoadHolidayFile(path string, logger *zap.Logger) []Holiday {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("Holiday file not found, layer left empty", zap.String("file", path))
		} else {
			logger.Warn("Failed to open holiday file, layer left empty",
				zap.String("file", path), zap.Error(err))
		}
		return nil
	}
	defer file.Close()

	holidays, err := parseHolidays(file, logger)
	if err != nil {
		logger.Warn("Failed to read holiday file, layer left empty",
			zap.String("file", path), zap.Error(err))
		return nil
	}

	logger.Info("Holiday file loaded",
		zap.String("file", path),
		zap.Int("holidays", len(holidays)))

	return holidays
}

func parseHolidays(r io.Reader, logger *zap.Logger) ([]Holiday, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := index[columnDate]; !ok {
		logger.Warn("Holiday file has no fecha column")
		return nil, nil
	}

	field := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var holidays []Holiday
	line := 1
	for {
		record, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		raw := field(record, columnDate)
		date, err := dateutil.ParseDate(raw)
		if err != nil {
			logger.Warn("Skipping holiday row with bad date",
				zap.Int("line", line), zap.String("fecha", raw))
			continue
		}

		holidays = append(holidays, Holiday{
			Date:         date,
			Scope:        field(record, columnScope),
			Municipality: field(record, columnMunicipality),
			Description:  field(record, columnDescription),
		})
	}

	return holidays, nil
}

// Load builds the calendar of a year from the source's files
func (fs FileSource) Load(year int, defaultMunicipality string, logger *zap.Logger) *HolidayCalendar {
	national := LoadHolidayFile(fs.path(fs.NationalFile, year), logger)
	local := LoadHolidayFile(fs.path(fs.LocalFile, year), logger)
	return NewHolidayCalendar(year, defaultMunicipality, fs.Specials, national, local, logger)
}

func (fs FileSource) path(template string, year int) string {
	name := strings.ReplaceAll(template, "{year}", strconv.Itoa(year))
	if name == "" || filepath.IsAbs(name) || fs.DataDir == "" {
		return name
	}
	return filepath.Join(fs.DataDir, name)
}
