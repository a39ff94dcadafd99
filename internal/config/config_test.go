package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "parcel_data.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "https://green.parcels.id.land/parcels/parcels/by_location.json", cfg.Lookup.BaseURL)
	assert.Equal(t, DefaultUserAgent, cfg.Lookup.UserAgent)
	assert.Equal(t, 500*time.Millisecond, cfg.Lookup.Pause())
	assert.Equal(t, 0, cfg.Lookup.TimeoutSecs)
	assert.Equal(t, 30*time.Minute, cfg.Scrape.StaleAfter())
	assert.Equal(t, "Output", cfg.Report.OutputDir)
	assert.Equal(t, "csv", cfg.Report.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Events.Enabled())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/parcels
lookup:
  auth_token: tok
  auth_email: ops@example.com
  pause_ms: 100
scrape:
  limit: 25
  log_timezone: Asia/Dubai
events:
  brokers: ["localhost:9092"]
  topic: parcel-results
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/parcels", cfg.Store.DatabaseURL)
	assert.Equal(t, "tok", cfg.Lookup.AuthToken)
	assert.Equal(t, 100*time.Millisecond, cfg.Lookup.Pause())
	assert.Equal(t, 25, cfg.Scrape.Limit)
	assert.Equal(t, "Asia/Dubai", cfg.Scrape.LogTimezone)
	assert.True(t, cfg.Events.Enabled())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PARCELS_LOOKUP_AUTH_TOKEN", "env-token")
	t.Setenv("PARCELS_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Lookup.AuthToken)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	assert.False(t, LoadDotEnv())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PARCELS_TEST_DOTENV=yes\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PARCELS_TEST_DOTENV") }) //nolint:errcheck

	assert.True(t, LoadDotEnv())
	assert.Equal(t, "yes", os.Getenv("PARCELS_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "x.db"},
			Lookup: LookupConfig{BaseURL: "http://lookup", AuthToken: "t", AuthEmail: "e", PauseMillis: 500},
			Scrape: ScrapeConfig{LogTimezone: "Local"},
		}
	}

	tests := []struct {
		name    string
		mode    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "scrape ok", mode: "scrape", mutate: func(*Config) {}},
		{name: "bad driver", mode: "store", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "unsupported store driver"},
		{name: "missing dsn", mode: "store", mutate: func(c *Config) { c.Store.DatabaseURL = "" }, wantErr: "database_url"},
		{name: "missing token", mode: "scrape", mutate: func(c *Config) { c.Lookup.AuthToken = "" }, wantErr: "auth_token"},
		{name: "missing email", mode: "scrape", mutate: func(c *Config) { c.Lookup.AuthEmail = "" }, wantErr: "auth_email"},
		{name: "negative pause", mode: "scrape", mutate: func(c *Config) { c.Lookup.PauseMillis = -1 }, wantErr: "pause_ms"},
		{name: "bad timezone", mode: "scrape", mutate: func(c *Config) { c.Scrape.LogTimezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "upload missing creds", mode: "upload", mutate: func(*Config) {}, wantErr: "storage.endpoint"},
		{name: "events disabled", mode: "events", mutate: func(*Config) {}, wantErr: "events.brokers"},
		{name: "unknown mode", mode: "serve", mutate: func(*Config) {}, wantErr: "unknown validation mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScrapeLocation(t *testing.T) {
	loc, err := ScrapeConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = ScrapeConfig{LogTimezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
