package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"yieldscraper/internal/curve"
	"yieldscraper/internal/logging"
	"yieldscraper/internal/version"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Output    OutputConfig    `mapstructure:"output"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	API       APIConfig       `mapstructure:"api"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig describes the publisher pages and how politely to fetch them.
type SourceConfig struct {
	URLTemplate       string        `mapstructure:"url_template" validate:"required,contains=%d"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent         string        `mapstructure:"user_agent"`
	RetryCount        int           `mapstructure:"retry_count" validate:"gte=0,lte=10"`
	RetryWait         time.Duration `mapstructure:"retry_wait" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	StartMarker       string        `mapstructure:"start_marker" validate:"required"`
	EndMarker         string        `mapstructure:"end_marker" validate:"required"`
	EarliestYear      int           `mapstructure:"earliest_year" validate:"gte=1900"`
}

// ScrapeConfig controls record assembly and the per-year failure policy.
type ScrapeConfig struct {
	Maturities    []int  `mapstructure:"maturities" validate:"required,min=1,dive,gt=0"`
	Workers       int    `mapstructure:"workers" validate:"gte=1,lte=32"`
	FailurePolicy string `mapstructure:"failure_policy" validate:"oneof=skip abort"`
	StrictShape   bool   `mapstructure:"strict_shape"`
	StrictDates   bool   `mapstructure:"strict_dates"`
}

// OutputConfig names the dataset file.
type OutputConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables persistence.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// SchedulerConfig governs the refresh cadence of the watch command.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	Offset       time.Duration `mapstructure:"offset" validate:"gte=0"`
	StartupDelay time.Duration `mapstructure:"startup_delay" validate:"gte=0"`
	RunOnStart   bool          `mapstructure:"run_on_start"`
}

// AlertingConfig defines the inversion alert.
type AlertingConfig struct {
	Enabled       bool           `mapstructure:"enabled"`
	ShortMaturity int            `mapstructure:"short_maturity" validate:"gt=0"`
	LongMaturity  int            `mapstructure:"long_maturity" validate:"gtfield=ShortMaturity"`
	ThresholdBps  float64        `mapstructure:"threshold_bps"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot delivery settings.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token" validate:"required_if=Enabled true"`
	ChatID   string        `mapstructure:"chat_id" validate:"required_if=Enabled true"`
	APIBase  string        `mapstructure:"api_base" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig locates the node-exporter textfile. Empty disables it.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// APIConfig configures the read-only HTTP server.
type APIConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points" validate:"gt=0"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("YIELDSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "yieldscraper")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("source.url_template", "https://www.treasury.gov/resource-center/data-chart-center/interest-rates/Pages/TextView.aspx?data=yieldYear&year=%d")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.user_agent", version.UserAgent())
	v.SetDefault("source.retry_count", 2)
	v.SetDefault("source.retry_wait", "1s")
	v.SetDefault("source.requests_per_second", 2.0)
	v.SetDefault("source.burst", 1)
	v.SetDefault("source.start_marker", "t-chart")
	v.SetDefault("source.end_marker", "End Main Content Area")
	v.SetDefault("source.earliest_year", 1990)

	v.SetDefault("scrape.maturities", curve.DefaultMaturities)
	v.SetDefault("scrape.workers", 1)
	v.SetDefault("scrape.failure_policy", "skip")
	v.SetDefault("scrape.strict_shape", false)
	v.SetDefault("scrape.strict_dates", false)

	v.SetDefault("output.path", "all_yield_data.csv")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x5949454c))

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.offset", "0s")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.short_maturity", 24)
	v.SetDefault("alerting.long_maturity", 120)
	v.SetDefault("alerting.threshold_bps", 0.0)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "30s")

	v.SetDefault("export.max_data_points", 2000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToWeakSliceHookFunc(","),
		)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct tag validation and the cross-field checks tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	schedule := curve.Schedule(c.Scrape.Maturities)
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("scrape.maturities: %w", err)
	}
	if year := time.Now().Year(); c.Source.EarliestYear > year {
		return fmt.Errorf("source.earliest_year %d is after the current year %d", c.Source.EarliestYear, year)
	}
	if c.Scheduler.Offset >= c.Scheduler.Interval {
		return fmt.Errorf("scheduler.offset must be shorter than scheduler.interval")
	}
	if c.Alerting.Enabled {
		if schedule.Index(c.Alerting.ShortMaturity) < 0 {
			return fmt.Errorf("alerting.short_maturity %d is not in scrape.maturities", c.Alerting.ShortMaturity)
		}
		if schedule.Index(c.Alerting.LongMaturity) < 0 {
			return fmt.Errorf("alerting.long_maturity %d is not in scrape.maturities", c.Alerting.LongMaturity)
		}
	}
	return nil
}

// Schedule returns the configured maturity schedule.
func (c *Config) Schedule() curve.Schedule {
	s, err := curve.NewSchedule(c.Scrape.Maturities)
	if err != nil {
		// Validate rejects invalid schedules before a Config is handed out.
		return curve.DefaultSchedule()
	}
	return s
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
