package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/duty-pay/internal/tariff"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
billing:
  year: 2025
  month: 9
  default_municipality: Utrera
  withholding_percent: 15.5
calendar:
  data_dir: /srv/festivos
  special_dates: ["12-25"]
tariffs:
  mode: multiplier
  file: tarifas_mult.csv
store:
  path: runs.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2025, cfg.Billing.Year)
	assert.Equal(t, 9, cfg.Billing.Month)
	assert.Equal(t, "Utrera", cfg.Billing.DefaultMunicipality)
	assert.Equal(t, "15.5", cfg.Billing.GetWithholding().String())

	assert.Equal(t, "/srv/festivos", cfg.Calendar.DataDir)
	assert.Equal(t, "festivos_es_andalucia_{year}.csv", cfg.Calendar.NationalFile, "unset keys keep defaults")
	assert.Equal(t, []string{"12-25"}, cfg.Calendar.SpecialDates)

	assert.Equal(t, tariff.ModeMultiplier, cfg.Tariffs.GetMode())
	assert.Equal(t, "runs.db", cfg.Store.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "output", cfg.Output.Dir)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "billing:\n  year: 2025\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Sevilla", cfg.Billing.DefaultMunicipality)
	assert.True(t, cfg.Billing.GetWithholding().IsZero())
	assert.Equal(t, DefaultSpecialDates, cfg.Calendar.SpecialDates)
	assert.Equal(t, tariff.ModeFlat, cfg.Tariffs.GetMode())
	assert.Equal(t, filepath.Join("config", "tarifas.csv"), cfg.Tariffs.File)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "billing:\n  year: 2025\n  month: 9\n")
	t.Setenv("DUTYPAY_BILLING_MONTH", "10")
	t.Setenv("DUTYPAY_TARIFFS_MODE", "multiplier")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Billing.Month)
	assert.Equal(t, "multiplier", cfg.Tariffs.Mode)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"year out of range", "billing:\n  year: 1999\n"},
		{"month out of range", "billing:\n  month: 13\n"},
		{"unknown mode", "tariffs:\n  mode: hourly\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoad_WithholdingClamped(t *testing.T) {
	tests := []struct {
		content string
		want    decimal.Decimal
	}{
		{"billing:\n  withholding_percent: 120\n", decimal.NewFromInt(100)},
		{"billing:\n  withholding_percent: -5\n", decimal.Zero},
		{"billing:\n  withholding_percent: 15.5\n", decimal.RequireFromString("15.5")},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(cfg.Billing.GetWithholding()), "got %s", cfg.Billing.GetWithholding())
		})
	}
}

func TestGetPeriod(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	year, month := (&BillingConfig{}).GetPeriod(now)
	assert.Equal(t, 2026, year)
	assert.Equal(t, time.March, month)

	year, month = (&BillingConfig{Year: 2025, Month: 9}).GetPeriod(now)
	assert.Equal(t, 2025, year)
	assert.Equal(t, time.September, month)
}

func TestServerGetters(t *testing.T) {
	s := ServerConfig{ReadTimeout: "nonsense"}
	assert.Equal(t, 15*time.Second, s.GetReadTimeout())
	assert.Equal(t, []string{"*"}, s.GetAllowedOrigins())

	s = ServerConfig{ReadTimeout: "3s", AllowedOrigins: []string{"http://localhost:3000"}}
	assert.Equal(t, 3*time.Second, s.GetReadTimeout())
	assert.Equal(t, []string{"http://localhost:3000"}, s.GetAllowedOrigins())
}

func TestCalendarSource(t *testing.T) {
	c := CalendarConfig{DataDir: "data", NationalFile: "n_{year}.csv", SpecialDates: []string{"12-25"}}
	src := c.Source()

	assert.Equal(t, "data", src.DataDir)
	assert.Equal(t, "n_{year}.csv", src.NationalFile)
	assert.Equal(t, []string{"12-25"}, src.Specials)
}
