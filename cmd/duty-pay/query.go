package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/pkg/dateutil"
)

func classifyCmd() *cobra.Command {
	var dateStr string
	var municipality string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the day type of a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			date, err := dateutil.ParseDate(dateStr)
			if err != nil {
				return err
			}
			if municipality == "" {
				municipality = cfg.Billing.DefaultMunicipality
			}

			cal := calendar.NewYearCalendars(cfg.Calendar.Source(), cfg.Billing.DefaultMunicipality, logger)
			dayType := cal.Classify(date.In(time.UTC), municipality)

			outPrintf("%s %s (%s): %s\n", date, date.In(time.UTC).Weekday(), municipality, dayType)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dateStr, "date", "d", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&municipality, "municipality", "m", "", "Municipality (default from config)")
	cmd.MarkFlagRequired("date")

	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List archived runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("store.path is not configured")
			}
			defer store.Close()

			ctx := context.Background()

			if len(args) == 1 {
				run, err := store.LoadRun(ctx, args[0])
				if err != nil {
					return err
				}
				outPrintf("Run %s, created %s\n", run.ID, run.CreatedAt.Format(time.RFC3339))
				printResult(run.Year, run.Month, run.Result)
				return nil
			}

			runs, err := store.ListRuns(ctx)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				outPrintln("No archived runs")
				return nil
			}

			outPrintln("Run ID                               | Period  | Mode       | Duties |      Gross |        Net | Created")
			outPrintln("-------------------------------------+---------+------------+--------+------------+------------+---------------------")
			for _, r := range runs {
				outPrintf("%-36s | %04d-%02d | %-10s | %6d | %10s | %10s | %s\n",
					r.ID,
					r.Year,
					int(r.Month),
					r.Mode,
					r.Duties,
					r.Gross.StringFixed(2),
					r.Net.StringFixed(2),
					r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	return cmd
}
