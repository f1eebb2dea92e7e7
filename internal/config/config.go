package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/internal/tariff"
)

// EnvPrefix prefixes environment overrides, e.g. DUTYPAY_BILLING_YEAR
const EnvPrefix = "DUTYPAY"

// DefaultSpecialDates are the recurring MM-DD days billed at the special rate
var DefaultSpecialDates = []string{"12-24", "12-25", "12-31", "01-01", "01-05"}

// Config represents application configuration
type Config struct {
	Billing  BillingConfig  `mapstructure:"billing"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Tariffs  TariffsConfig  `mapstructure:"tariffs"`
	Output   OutputConfig   `mapstructure:"output"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BillingConfig selects the month and the payroll defaults
type BillingConfig struct {
	Year                int     `mapstructure:"year"`
	Month               int     `mapstructure:"month"`
	DefaultMunicipality string  `mapstructure:"default_municipality"`
	WithholdingPercent  float64 `mapstructure:"withholding_percent"`
}

// CalendarConfig points at the holiday files. File names may contain {year}.
type CalendarConfig struct {
	DataDir      string   `mapstructure:"data_dir"`
	NationalFile string   `mapstructure:"national_file"`
	LocalFile    string   `mapstructure:"local_file"`
	SpecialDates []string `mapstructure:"special_dates"`
}

// TariffsConfig represents the tariff table source
type TariffsConfig struct {
	Mode string `mapstructure:"mode"` // "flat" or "multiplier"
	File string `mapstructure:"file"`
}

// OutputConfig represents where results are written
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
	PDF bool   `mapstructure:"pdf"`
}

// StoreConfig represents the run archive. An empty path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig represents the HTTP API settings
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    string   `mapstructure:"read_timeout"`
}

// LoggingConfig represents logger settings
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("billing.year", 0)
	v.SetDefault("billing.month", 0)
	v.SetDefault("billing.default_municipality", "Sevilla")
	v.SetDefault("billing.withholding_percent", 0)

	v.SetDefault("calendar.data_dir", "data")
	v.SetDefault("calendar.national_file", "festivos_es_andalucia_{year}.csv")
	v.SetDefault("calendar.local_file", "festivos_locales_sevilla_{year}.csv")
	v.SetDefault("calendar.special_dates", DefaultSpecialDates)

	v.SetDefault("tariffs.mode", string(tariff.ModeFlat))
	v.SetDefault("tariffs.file", filepath.Join("config", "tarifas.csv"))

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.pdf", false)

	v.SetDefault("store.path", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "15s")

	v.SetDefault("logging.file", "")
	v.SetDefault("logging.level", "info")
}

// Load loads configuration from file. With an empty path the usual locations
// are searched and defaults apply when no file is found.
func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.duty-pay")
		v.AddConfigPath("/etc/duty-pay")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Billing.Year != 0 && (c.Billing.Year < 2000 || c.Billing.Year > 2100) {
		return fmt.Errorf("billing.year must be between 2000 and 2100, got %d", c.Billing.Year)
	}
	if c.Billing.Month != 0 && (c.Billing.Month < 1 || c.Billing.Month > 12) {
		return fmt.Errorf("billing.month must be between 1 and 12, got %d", c.Billing.Month)
	}

	if _, err := tariff.ParseMode(c.Tariffs.Mode); err != nil {
		return fmt.Errorf("tariffs.mode: %w", err)
	}
	if c.Tariffs.File == "" {
		return fmt.Errorf("tariffs.file is required")
	}

	if c.Logging.Level != "" {
		switch strings.ToLower(c.Logging.Level) {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be debug, info, warn or error, got '%s'", c.Logging.Level)
		}
	}

	return nil
}

// GetWithholding returns the withholding percentage clamped to [0, 100]
func (c *BillingConfig) GetWithholding() decimal.Decimal {
	return billing.ClampWithholding(decimal.NewFromFloat(c.WithholdingPercent))
}

// GetPeriod returns the configured month, falling back to the current one
// for unset parts.
func (c *BillingConfig) GetPeriod(now time.Time) (int, time.Month) {
	year, month := c.Year, time.Month(c.Month)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = now.Month()
	}
	return year, month
}

// GetMode returns the parsed tariff mode
func (c *TariffsConfig) GetMode() tariff.Mode {
	mode, err := tariff.ParseMode(c.Mode)
	if err != nil {
		return tariff.ModeFlat
	}
	return mode
}

// Source returns the holiday file source described by the config
func (c *CalendarConfig) Source() calendar.FileSource {
	return calendar.FileSource{
		DataDir:      c.DataDir,
		NationalFile: c.NationalFile,
		LocalFile:    c.LocalFile,
		Specials:     c.SpecialDates,
	}
}

// GetReadTimeout returns the HTTP read timeout
func (c *ServerConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == "" {
		return 15 * time.Second
	}
	duration, err := time.ParseDuration(c.ReadTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return duration
}

// GetAllowedOrigins returns the CORS origins, "*" when none are set
func (c *ServerConfig) GetAllowedOrigins() []string {
	if len(c.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.AllowedOrigins
}

// ExpandEnvVars expands environment variables in path settings
func (c *Config) ExpandEnvVars() {
	c.Calendar.DataDir = os.ExpandEnv(c.Calendar.DataDir)
	c.Tariffs.File = os.ExpandEnv(c.Tariffs.File)
	c.Output.Dir = os.ExpandEnv(c.Output.Dir)
	c.Store.Path = os.ExpandEnv(c.Store.Path)
	c.Logging.File = os.ExpandEnv(c.Logging.File)
}
