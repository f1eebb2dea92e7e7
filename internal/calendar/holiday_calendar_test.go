package calendar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 10, 0, 0, 0, time.UTC)
}

func date(year int, month time.Month, d int) civil.Date {
	return civil.Date{Year: year, Month: month, Day: d}
}

func newTestCalendar() *HolidayCalendar {
	return NewHolidayCalendar(2025, "Sevilla",
		[]string{"12-24", "12-25", "1-1"},
		[]Holiday{
			{Date: date(2025, time.January, 1), Scope: "nacional", Description: "Año Nuevo"},
			{Date: date(2025, time.February, 28), Scope: "autonomico", Description: "Día de Andalucía"},
			{Date: date(2025, time.December, 25), Scope: "nacional", Description: "Navidad"},
			{Date: date(2024, time.August, 15), Scope: "nacional", Description: "wrong year"},
		},
		[]Holiday{
			{Date: date(2025, time.June, 19), Scope: "local", Municipality: "Sevilla", Description: "Corpus"},
			{Date: date(2025, time.May, 30), Scope: "local", Municipality: "  dos hermanas ", Description: "Feria"},
			{Date: date(2025, time.July, 25), Scope: "local", Municipality: "", Description: "no municipality"},
		},
		zap.NewNop(),
	)
}

func TestHolidayCalendar_Classify(t *testing.T) {
	cal := newTestCalendar()

	tests := []struct {
		name         string
		date         time.Time
		municipality string
		want         DayType
	}{
		{"ordinary weekday", day(2025, time.September, 5), "Sevilla", DayTypeNormal},
		{"regional holiday", day(2025, time.February, 28), "Utrera", DayTypeHoliday},
		{"special beats national", day(2025, time.December, 25), "Sevilla", DayTypeSpecial},
		{"special recurs every year", day(2031, time.December, 24), "", DayTypeSpecial},
		{"padded special key", day(2025, time.January, 1), "Sevilla", DayTypeSpecial},
		{"local holiday in its municipality", day(2025, time.June, 19), "Sevilla", DayTypeHoliday},
		{"local holiday case insensitive", day(2025, time.June, 19), "  sEVILLA ", DayTypeHoliday},
		{"local holiday elsewhere", day(2025, time.June, 19), "Utrera", DayTypeNormal},
		{"blank municipality uses default", day(2025, time.June, 19), "   ", DayTypeHoliday},
		{"trimmed stored municipality", day(2025, time.May, 30), "Dos Hermanas", DayTypeHoliday},
		{"holiday from another year ignored", day(2025, time.August, 15), "Sevilla", DayTypeNormal},
		{"local row without municipality ignored", day(2025, time.July, 25), "", DayTypeNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.Classify(tt.date, tt.municipality))
		})
	}
}

func TestHolidayCalendar_ClassifyIgnoresTimeOfDay(t *testing.T) {
	cal := newTestCalendar()

	assert.Equal(t, DayTypeHoliday, cal.Classify(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), ""))
	assert.Equal(t, DayTypeHoliday, cal.Classify(time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC), ""))
	assert.Equal(t, DayTypeNormal, cal.Classify(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), ""))
}

func TestHolidayCalendar_EmptyLayers(t *testing.T) {
	cal := NewHolidayCalendar(2025, "", nil, nil, nil, zap.NewNop())

	assert.Equal(t, DayTypeNormal, cal.Classify(day(2025, time.December, 25), ""))
	assert.Empty(t, cal.Holidays())
}

func TestHolidayCalendar_MalformedSpecialsSkipped(t *testing.T) {
	cal := NewHolidayCalendar(2025, "", []string{"13-40", "xmas", "01-06"}, nil, nil, zap.NewNop())

	assert.Equal(t, DayTypeSpecial, cal.Classify(day(2025, time.January, 6), ""))
	assert.Len(t, cal.specials, 1)
}

func TestHolidayCalendar_Holidays(t *testing.T) {
	cal := newTestCalendar()

	holidays := cal.Holidays()
	require.Len(t, holidays, 5)
	assert.Equal(t, date(2025, time.January, 1), holidays[0].Date)
	assert.Equal(t, date(2025, time.December, 25), holidays[len(holidays)-1].Date)
}

func TestParseDayType(t *testing.T) {
	tests := []struct {
		input   string
		want    DayType
		wantErr bool
	}{
		{"normal", DayTypeNormal, false},
		{"Festivo", DayTypeHoliday, false},
		{" holiday ", DayTypeHoliday, false},
		{"ESPECIAL", DayTypeSpecial, false},
		{"special", DayTypeSpecial, false},
		{"weekend", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDayType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHolidayFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "festivos.csv", strings.Join([]string{
		"fecha,ambito,municipio,descripcion",
		"2025-06-19,local,Sevilla,Corpus Christi",
		"not-a-date,local,Sevilla,broken",
		"2025-05-30,local,Dos Hermanas",
		"",
	}, "\n"))

	holidays := LoadHolidayFile(path, zap.NewNop())

	require.Len(t, holidays, 2)
	assert.Equal(t, Holiday{
		Date:         date(2025, time.June, 19),
		Scope:        "local",
		Municipality: "Sevilla",
		Description:  "Corpus Christi",
	}, holidays[0])
	assert.Equal(t, "Dos Hermanas", holidays[1].Municipality)
	assert.Empty(t, holidays[1].Description)
}

func TestLoadHolidayFile_DegradesToEmpty(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.csv")},
		{"empty file", writeFile(t, dir, "empty.csv", "")},
		{"header only", writeFile(t, dir, "header.csv", "fecha,ambito,municipio,descripcion\n")},
		{"no date column", writeFile(t, dir, "nodate.csv", "dia,municipio\n2025-01-01,Sevilla\n")},
		{"broken quoting", writeFile(t, dir, "broken.csv", "fecha\n\"2025-01-01\n")},
		{"directory", dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, LoadHolidayFile(tt.path, zap.NewNop()))
		})
	}
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "festivos_es_andalucia_2025.csv",
		"fecha,ambito,municipio,descripcion\n2025-02-28,autonomico,,Día de Andalucía\n")
	writeFile(t, dir, "festivos_locales_sevilla_2025.csv",
		"fecha,ambito,municipio,descripcion\n2025-06-19,local,Sevilla,Corpus\n")

	source := FileSource{
		DataDir:      dir,
		NationalFile: "festivos_es_andalucia_{year}.csv",
		LocalFile:    "festivos_locales_sevilla_{year}.csv",
		Specials:     []string{"12-25"},
	}

	cal := source.Load(2025, "Sevilla", zap.NewNop())
	assert.Equal(t, 2025, cal.Year())
	assert.Equal(t, DayTypeHoliday, cal.Classify(day(2025, time.February, 28), ""))
	assert.Equal(t, DayTypeHoliday, cal.Classify(day(2025, time.June, 19), ""))
	assert.Equal(t, DayTypeSpecial, cal.Classify(day(2025, time.December, 25), ""))

	// 2026 files do not exist: every layer but the specials is empty
	next := source.Load(2026, "Sevilla", zap.NewNop())
	assert.Equal(t, DayTypeNormal, next.Classify(day(2026, time.February, 28), ""))
	assert.Equal(t, DayTypeSpecial, next.Classify(day(2026, time.December, 25), ""))
}
