package roster

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/internal/tariff"
	"go.uber.org/zap"
)

func TestRead(t *testing.T) {
	input := strings.Join([]string{
		"inicio_datetime,fin_datetime,municipio,grado,observaciones,override_inicio",
		"2025-09-05 08:00,2025-09-05 11:00,Sevilla,R2,mañana,",
		",,,,,",
		"2025-09-06T23:30,2025-09-07 01:30:00,,r1,,festivo",
	}, "\n")

	duties, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, duties, 2)

	assert.Equal(t, time.Date(2025, 9, 5, 8, 0, 0, 0, time.UTC), duties[0].Start)
	assert.Equal(t, "Sevilla", duties[0].Municipality)
	assert.Equal(t, tariff.GradeR2, duties[0].Grade)
	assert.Equal(t, "mañana", duties[0].Notes)
	assert.Nil(t, duties[0].StartDay)

	assert.Equal(t, tariff.GradeR1, duties[1].Grade)
	assert.Empty(t, duties[1].Municipality)
	require.NotNil(t, duties[1].StartDay)
	assert.Equal(t, calendar.DayTypeHoliday, *duties[1].StartDay)
	assert.Nil(t, duties[1].EndDay)
}

func TestRead_RowErrors(t *testing.T) {
	header := "inicio_datetime,fin_datetime,municipio,grado,observaciones,override_fin"

	tests := []struct {
		name   string
		row    string
		column string
		line   int
	}{
		{"bad start", "ayer,2025-09-05 11:00,Sevilla,R2,,", ColumnStart, 2},
		{"bad grade", "2025-09-05 08:00,2025-09-05 11:00,Sevilla,R9,,", ColumnGrade, 2},
		{"bad override", "2025-09-05 08:00,2025-09-05 11:00,Sevilla,R2,,domingo", ColumnEndOverride, 2},
		{"end before start", "2025-09-05 12:00,2025-09-05 11:00,Sevilla,R2,,", "", 2},
		{"malformed quoting", "2025-09-05 08:00,2025-09-05 \"11:00,Sevilla,R2,,", "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(header + "\n" + tt.row + "\n"))
			require.Error(t, err)

			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, tt.line, rowErr.Line)
			assert.Equal(t, tt.column, rowErr.Column)
		})
	}
}

func TestRead_EndBeforeStartIsInvalidInterval(t *testing.T) {
	input := "inicio_datetime,fin_datetime,grado\n2025-09-05 12:00,2025-09-05 12:00,R2\n"

	_, err := Read(strings.NewReader(input))
	assert.ErrorIs(t, err, billing.ErrInvalidInterval)
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("inicio_datetime,municipio,grado\n"))
	assert.ErrorContains(t, err, "fin_datetime")
}

func TestRead_Empty(t *testing.T) {
	duties, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotNil(t, duties)
	assert.Empty(t, duties)
}

func TestFromEntries(t *testing.T) {
	entries := []Entry{
		{DayStart: "05", HourStart: "08", DayEnd: "05", HourEnd: "11", Grade: "R2", Notes: "  tarde "},
		{},
		{DayStart: "05", HourStart: "08", DayEnd: "05", HourEnd: "11"},                                       // no grade
		{DayStart: "31", HourStart: "08", DayEnd: "31", HourEnd: "11", Grade: "R2"},                          // September has 30 days
		{DayStart: "06", HourStart: "24", DayEnd: "06", HourEnd: "11", Grade: "R2"},                          // hour out of range
		{DayStart: "07", HourStart: "10", DayEnd: "07", HourEnd: "09", Grade: "R2"},                          // end before start
		{DayStart: "07", HourStart: "10", DayEnd: "08", HourEnd: "10", Grade: "r3", Municipality: "Utrera", StartOverride: "especial"},
		{DayStart: "09", HourStart: "10", DayEnd: "09", HourEnd: "12", Grade: "R3", EndOverride: "domingo"}, // bad override
	}

	duties, skipped := FromEntries(2025, time.September, "Sevilla", entries)

	require.Len(t, duties, 2)
	assert.Equal(t, 5, skipped)

	assert.Equal(t, time.Date(2025, 9, 5, 8, 0, 0, 0, time.UTC), duties[0].Start)
	assert.Equal(t, time.Date(2025, 9, 5, 11, 0, 0, 0, time.UTC), duties[0].End)
	assert.Equal(t, "Sevilla", duties[0].Municipality, "blank municipality takes the default")
	assert.Equal(t, "tarde", duties[0].Notes)

	assert.Equal(t, "Utrera", duties[1].Municipality)
	assert.Equal(t, tariff.GradeR3, duties[1].Grade)
	require.NotNil(t, duties[1].StartDay)
	assert.Equal(t, calendar.DayTypeSpecial, *duties[1].StartDay)
}

func TestFromEntries_PartialRowsCountAsSkipped(t *testing.T) {
	entries := []Entry{
		{},
		{Notes: "   "},
		{DutyType: "presencial"},
		{StartOverride: "festivo"},
		{EndOverride: "especial"},
	}

	duties, skipped := FromEntries(2025, time.September, "Sevilla", entries)
	assert.Empty(t, duties)
	assert.Equal(t, 3, skipped)
}

func TestFromEntries_Cap(t *testing.T) {
	entries := make([]Entry, MaxEntries+5)
	for i := range entries {
		entries[i] = Entry{DayStart: "1", HourStart: "8", DayEnd: "1", HourEnd: "9", Grade: "R1"}
	}

	duties, skipped := FromEntries(2025, time.September, "", entries)
	assert.Len(t, duties, MaxEntries)
	assert.Zero(t, skipped)
}

func sampleResult() *billing.Result {
	start := time.Date(2025, 9, 5, 23, 30, 0, 0, time.UTC)
	return &billing.Result{
		Mode:               tariff.ModeFlat,
		WithholdingPercent: decimal.NewFromInt(15),
		Ledger: []billing.PricedBlock{{
			Block:        billing.HourBlock{Start: start, End: start.Add(30 * time.Minute)},
			Municipality: "Sevilla",
			Grade:        tariff.GradeR2,
			DayType:      calendar.DayTypeNormal,
			Hours:        decimal.NewFromInt(1),
			HourlyRate:   decimal.NewFromInt(20),
			Amount:       decimal.NewFromInt(20),
		}},
		Summaries: []billing.DutySummary{{
			Grade:              tariff.GradeR2,
			Start:              start,
			End:                start.Add(30 * time.Minute),
			Blocks:             1,
			Gross:              decimal.NewFromInt(20),
			WithholdingPercent: decimal.NewFromInt(15),
			Net:                decimal.NewFromInt(17),
			Municipality:       "Sevilla",
			Notes:              "noche, urgencias",
		}},
		Rollup: []billing.RollupRow{{
			Grade:       tariff.GradeR2,
			TotalHours:  decimal.NewFromInt(1),
			TotalAmount: decimal.NewFromInt(20),
		}},
	}
}

func TestWriters(t *testing.T) {
	result := sampleResult()

	var ledger bytes.Buffer
	require.NoError(t, WriteLedger(&ledger, result.Ledger))
	assert.Equal(t,
		"inicio_bloque,fin_bloque,municipio,grado,tipo_guardia,tipo_dia,horas,eur_hora,importe\n"+
			"2025-09-05 23:30:00,2025-09-06 00:00:00,Sevilla,R2,,normal,1.0,20.0000,20.0000\n",
		ledger.String())

	var summary bytes.Buffer
	require.NoError(t, WriteSummaries(&summary, result.Summaries))
	assert.Contains(t, summary.String(), "R2,,2025-09-05 23:30:00,2025-09-06 00:00:00,1,20.0000,15.0000,17.0000,Sevilla,\"noche, urgencias\"\n")

	var rollup bytes.Buffer
	require.NoError(t, WriteRollup(&rollup, result.Rollup))
	assert.Equal(t, "grado,tipo_guardia,total_horas,total_importe\nR2,,1.0,20.0000\n", rollup.String())
}

func TestWriters_EmptyKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRollup(&buf, nil))
	assert.Equal(t, "grado,tipo_guardia,total_horas,total_importe\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteLedger(&buf, nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")

	paths, err := WriteAll(dir, 2025, time.September, sampleResult(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "detalle_2025-09.csv"), paths.Ledger)
	assert.Equal(t, filepath.Join(dir, "resumen_2025-09.csv"), paths.Summary)
	assert.Equal(t, filepath.Join(dir, "resumen_grado_2025-09.csv"), paths.Rollup)

	for _, p := range []string{paths.Ledger, paths.Summary, paths.Rollup} {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}

	data, err := os.ReadFile(paths.Summary)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "grado,tipo_guardia,inicio,fin"))
}
