package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/report"
	"github.com/username/duty-pay/internal/roster"
	"github.com/username/duty-pay/internal/store/sqlite"
	"github.com/username/duty-pay/pkg/dateutil"
	"go.uber.org/zap"
)

func computeCmd() *cobra.Command {
	var (
		year                int
		month               int
		input               string
		entriesFile         string
		defaultMunicipality string
		outputDir           string
		withholding         string
		pdf                 bool
		archive             bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute duty pay for one month from a roster CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cfgYear, cfgMonth := cfg.Billing.GetPeriod(time.Now())
			if !cmd.Flags().Changed("year") {
				year = cfgYear
			}
			if !cmd.Flags().Changed("month") {
				month = int(cfgMonth)
			}
			if year < 2000 || year > 2100 || month < 1 || month > 12 {
				return fmt.Errorf("invalid billing month %04d-%02d", year, month)
			}
			if cmd.Flags().Changed("municipality-default") {
				cfg.Billing.DefaultMunicipality = defaultMunicipality
			}
			if !cmd.Flags().Changed("output-dir") {
				outputDir = cfg.Output.Dir
			}
			if !cmd.Flags().Changed("pdf") {
				pdf = cfg.Output.PDF
			}
			if input == "" && entriesFile == "" {
				return fmt.Errorf("--input or --entries is required")
			}

			pct := cfg.Billing.GetWithholding()
			if cmd.Flags().Changed("withholding") {
				if pct, err = billing.ParseWithholding(withholding); err != nil {
					return err
				}
			}

			engine, _, err := initializeEngine(cfg, year)
			if err != nil {
				return err
			}

			duties, err := loadDuties(input, entriesFile, year, time.Month(month), cfg.Billing.DefaultMunicipality)
			if err != nil {
				return err
			}
			warnOutsideMonth(duties, year, time.Month(month))

			result, err := engine.Compute(duties, pct)
			if err != nil {
				return fmt.Errorf("billing failed: %w", err)
			}

			files, err := roster.WriteAll(outputDir, year, time.Month(month), result, logger)
			if err != nil {
				return err
			}

			var runID string
			if archive {
				store, err := openStore(cfg)
				if err != nil {
					return err
				}
				if store == nil {
					return fmt.Errorf("--archive needs store.path in the config")
				}
				defer store.Close()

				runID, err = store.SaveRun(context.Background(), sqlite.RunFromResult(year, time.Month(month), result))
				if err != nil {
					return fmt.Errorf("failed to archive run: %w", err)
				}
				logger.Info("Run archived", zap.String("run_id", runID))
			}

			var pdfPath string
			if pdf {
				pdfPath = filepath.Join(outputDir, fmt.Sprintf("guardias_%04d-%02d.pdf", year, month))
				if err := report.WriteStatement(pdfPath, report.Statement{
					Year:   year,
					Month:  time.Month(month),
					RunID:  runID,
					Result: result,
				}); err != nil {
					return fmt.Errorf("failed to write statement: %w", err)
				}
			}

			printResult(year, time.Month(month), result)
			outPrintln("\nFiles:")
			outPrintf("  %s\n  %s\n  %s\n", files.Ledger, files.Summary, files.Rollup)
			if pdfPath != "" {
				outPrintf("  %s\n", pdfPath)
			}
			if runID != "" {
				outPrintf("\nArchived as run %s\n", runID)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Billing year (default from config or current)")
	cmd.Flags().IntVar(&month, "month", 0, "Billing month 1-12 (default from config or current)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Duty roster CSV")
	cmd.Flags().StringVar(&entriesFile, "entries", "", "Day-picker entries JSON (days of the billing month)")
	cmd.Flags().StringVar(&defaultMunicipality, "municipality-default", "", "Municipality for duties without one")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "output", "Directory for CSV and PDF output")
	cmd.Flags().StringVar(&withholding, "withholding", "", "Withholding percentage, e.g. 15 or 15,5")
	cmd.Flags().BoolVar(&pdf, "pdf", false, "Also write a PDF statement")
	cmd.Flags().BoolVar(&archive, "archive", false, "Save the run in the SQLite archive")

	return cmd
}

// loadDuties reads the roster CSV and appends day-picker entries, if any
func loadDuties(input, entriesFile string, year int, month time.Month, defaultMunicipality string) ([]billing.DutyRecord, error) {
	duties := []billing.DutyRecord{}

	if input != "" {
		fromCSV, err := roster.ReadFile(input, logger)
		if err != nil {
			return nil, err
		}
		for i := range fromCSV {
			if fromCSV[i].Municipality == "" {
				fromCSV[i].Municipality = defaultMunicipality
			}
		}
		duties = append(duties, fromCSV...)
	}

	if entriesFile != "" {
		data, err := os.ReadFile(entriesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read entries: %w", err)
		}
		var entries []roster.Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse entries: %w", err)
		}
		fromEntries, skipped := roster.FromEntries(year, month, defaultMunicipality, entries)
		if skipped > 0 {
			logger.Warn("Incomplete day-picker entries skipped", zap.Int("skipped", skipped))
		}
		duties = append(duties, fromEntries...)
	}

	return duties, nil
}

// warnOutsideMonth logs duties that start outside the billing month. They
// are still billed.
func warnOutsideMonth(duties []billing.DutyRecord, year int, month time.Month) {
	for i, d := range duties {
		if d.Start.Year() != year || d.Start.Month() != month {
			logger.Warn("Duty starts outside the billing month",
				zap.Int("duty", i+1),
				zap.String("start", dateutil.FormatDateTime(d.Start)),
				zap.String("period", fmt.Sprintf("%04d-%02d", year, int(month))))
		}
	}
}

func printResult(year int, month time.Month, result *billing.Result) {
	outPrintf("\nDuty pay %04d-%02d (tariffs: %s, withholding %s%%)\n", year, int(month), result.Mode, result.WithholdingPercent.String())
	outPrintln("═══════════════════════════════════════════════════════════════════════════════")
	outPrintln("   # | Grade | Start            | End              | Blocks |      Gross |        Net")
	outPrintln("-----+-------+------------------+------------------+--------+------------+-----------")
	for _, s := range result.Summaries {
		outPrintf("%4d | %-5s | %s | %s | %6d | %10s | %10s\n",
			s.DutyIndex+1,
			s.Grade,
			s.Start.Format("2006-01-02 15:04"),
			s.End.Format("2006-01-02 15:04"),
			s.Blocks,
			s.Gross.StringFixed(2),
			s.Net.StringFixed(2))
	}

	if len(result.Rollup) > 0 {
		outPrintln("\nBy grade:")
		for _, r := range result.Rollup {
			label := string(r.Grade)
			if r.DutyType != "" {
				label += " / " + r.DutyType
			}
			outPrintf("  %-20s %6sh %12s\n", label, r.TotalHours.StringFixed(1), r.TotalAmount.StringFixed(2))
		}
	}

	outPrintf("\n  Gross: %s\n  Net:   %s\n", result.TotalGross().StringFixed(2), result.TotalNet().StringFixed(2))
	if len(result.Summaries) == 0 {
		outPrintln("  (no duties)")
	}
}
