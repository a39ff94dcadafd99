package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Lookup  LookupConfig  `yaml:"lookup" mapstructure:"lookup"`
	Scrape  ScrapeConfig  `yaml:"scrape" mapstructure:"scrape"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Events  EventsConfig  `yaml:"events" mapstructure:"events"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LookupConfig holds the parcel lookup endpoint and its static auth headers.
type LookupConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	AuthToken   string `yaml:"auth_token" mapstructure:"auth_token"`
	AuthEmail   string `yaml:"auth_email" mapstructure:"auth_email"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PauseMillis int    `yaml:"pause_ms" mapstructure:"pause_ms"`
}

// Pause returns the minimum spacing between lookup requests.
func (l LookupConfig) Pause() time.Duration {
	return time.Duration(l.PauseMillis) * time.Millisecond
}

// ScrapeConfig configures the status loop.
type ScrapeConfig struct {
	Limit          int    `yaml:"limit" mapstructure:"limit"`
	StaleAfterMins int    `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
	LogTimezone    string `yaml:"log_timezone" mapstructure:"log_timezone"`
}

// StaleAfter returns how long a PROCESSING row may sit before it is reset.
func (s ScrapeConfig) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterMins) * time.Minute
}

// Location resolves LogTimezone, used to stamp audit log entries.
func (s ScrapeConfig) Location() (*time.Location, error) {
	if s.LogTimezone == "" || s.LogTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.LogTimezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", s.LogTimezone)
	}
	return loc, nil
}

// ReportConfig configures flattened report output.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	Format    string `yaml:"format" mapstructure:"format"`
}

// StorageConfig holds S3-compatible settings for report uploads.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
	Region    string `yaml:"region" mapstructure:"region"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// EventsConfig configures the optional Kafka result publisher.
type EventsConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// Enabled reports whether result events should be published.
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0 && e.Topic != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgent mimics a desktop browser; the lookup service rejects bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/114.0.0.0 Safari/537.36 Edg/114.0.1823.82"

// LoadDotEnv loads variables from a .env file in the working directory, if present.
// Existing environment variables win.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARCELS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "parcel_data.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("lookup.base_url", "https://green.parcels.id.land/parcels/parcels/by_location.json")
	v.SetDefault("lookup.auth_token", "")
	v.SetDefault("lookup.auth_email", "")
	v.SetDefault("lookup.user_agent", DefaultUserAgent)
	v.SetDefault("lookup.timeout_secs", 0)
	v.SetDefault("lookup.pause_ms", 500)
	v.SetDefault("scrape.limit", 0)
	v.SetDefault("scrape.stale_after_mins", 30)
	v.SetDefault("scrape.log_timezone", "Local")
	v.SetDefault("report.output_dir", "Output")
	v.SetDefault("report.format", "csv")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "parcels")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given mode
// ("scrape", "store", "upload", "events").
func (c *Config) Validate(mode string) error {
	switch mode {
	case "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			return eris.Errorf("config: unsupported store driver %q (valid: sqlite, postgres)", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required (PARCELS_STORE_DATABASE_URL)")
		}
	case "scrape":
		if err := c.Validate("store"); err != nil {
			return err
		}
		if c.Lookup.BaseURL == "" {
			return eris.New("config: lookup.base_url is required (PARCELS_LOOKUP_BASE_URL)")
		}
		if c.Lookup.AuthToken == "" {
			return eris.New("config: lookup.auth_token is required (PARCELS_LOOKUP_AUTH_TOKEN)")
		}
		if c.Lookup.AuthEmail == "" {
			return eris.New("config: lookup.auth_email is required (PARCELS_LOOKUP_AUTH_EMAIL)")
		}
		if c.Lookup.PauseMillis < 0 {
			return eris.Errorf("config: lookup.pause_ms must not be negative, got %d", c.Lookup.PauseMillis)
		}
		if _, err := c.Scrape.Location(); err != nil {
			return err
		}
	case "upload":
		if c.Storage.Endpoint == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return eris.New("config: storage.endpoint, storage.access_key and storage.secret_key are required for upload")
		}
		if c.Storage.Bucket == "" {
			return eris.New("config: storage.bucket is required for upload")
		}
	case "events":
		if !c.Events.Enabled() {
			return eris.New("config: events.brokers and events.topic are required")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
