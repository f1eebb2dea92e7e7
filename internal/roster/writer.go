package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/pkg/dateutil"
	"go.uber.org/zap"
)

var (
	ledgerHeader  = []string{"inicio_bloque", "fin_bloque", "municipio", "grado", "tipo_guardia", "tipo_dia", "horas", "eur_hora", "importe"}
	summaryHeader = []string{"grado", "tipo_guardia", "inicio", "fin", "bloques", "importe_bruto", "retencion_pct", "importe_neto", "municipio", "observaciones"}
	rollupHeader  = []string{"grado", "tipo_guardia", "total_horas", "total_importe"}
)

// OutputFiles are the paths written for one billing month
type OutputFiles struct {
	Ledger  string
	Summary string
	Rollup  string
}

// OutputPaths names the files of a month inside dir
func OutputPaths(dir string, year int, month time.Month) OutputFiles {
	suffix := fmt.Sprintf("%04d-%02d.csv", year, int(month))
	return OutputFiles{
		Ledger:  filepath.Join(dir, "detalle_"+suffix),
		Summary: filepath.Join(dir, "resumen_"+suffix),
		Rollup:  filepath.Join(dir, "resumen_grado_"+suffix),
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(4)
}

// WriteLedger writes one row per priced block
func WriteLedger(w io.Writer, ledger []billing.PricedBlock) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader); err != nil {
		return err
	}
	for _, b := range ledger {
		if err := cw.Write([]string{
			dateutil.FormatDateTime(b.Block.Start),
			dateutil.FormatDateTime(b.Block.End),
			b.Municipality,
			string(b.Grade),
			b.DutyType,
			b.DayType.String(),
			b.Hours.StringFixed(1),
			money(b.HourlyRate),
			money(b.Amount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaries writes one row per duty, in input order
func WriteSummaries(w io.Writer, summaries []billing.DutySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := cw.Write([]string{
			string(s.Grade),
			s.DutyType,
			dateutil.FormatDateTime(s.Start),
			dateutil.FormatDateTime(s.End),
			strconv.Itoa(s.Blocks),
			money(s.Gross),
			money(s.WithholdingPercent),
			money(s.Net),
			s.Municipality,
			s.Notes,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRollup writes the grade-level totals. The duty type column stays
// empty in flat mode.
func WriteRollup(w io.Writer, rows []billing.RollupRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rollupHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			string(r.Grade),
			r.DutyType,
			r.TotalHours.StringFixed(1),
			money(r.TotalAmount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAll writes the three output files of a month into dir
func WriteAll(dir string, year int, month time.Month, result *billing.Result, logger *zap.Logger) (OutputFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return OutputFiles{}, fmt.Errorf("failed to create output dir: %w", err)
	}

	paths := OutputPaths(dir, year, month)
	writes := []struct {
		path  string
		write func(io.Writer) error
	}{
		{paths.Ledger, func(w io.Writer) error { return WriteLedger(w, result.Ledger) }},
		{paths.Summary, func(w io.Writer) error { return WriteSummaries(w, result.Summaries) }},
		{paths.Rollup, func(w io.Writer) error { return WriteRollup(w, result.Rollup) }},
	}

	for _, out := range writes {
		if err := writeFile(out.path, out.write); err != nil {
			return OutputFiles{}, err
		}
		logger.Info("Output written", zap.String("file", out.path))
	}

	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
