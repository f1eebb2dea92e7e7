package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/duty-pay/internal/api"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var addr string
	var year int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the billing HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("year") {
				year, _ = cfg.Billing.GetPeriod(time.Now())
			}

			engine, cal, err := initializeEngine(cfg, year)
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			handler := api.NewHandler(engine, cal, store, cfg.Billing.DefaultMunicipality, logger)
			router := api.NewRouter(handler, cfg.Server.GetAllowedOrigins())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting API",
				zap.Int("calendar_year", year),
				zap.String("tariff_mode", string(engine.Tariffs().Mode())),
				zap.Bool("archive", store != nil))

			return api.Serve(ctx, addr, router, cfg.Server.GetReadTimeout(), logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().IntVar(&year, "year", 0, "Calendar year to preload (default from config or current)")

	return cmd
}
