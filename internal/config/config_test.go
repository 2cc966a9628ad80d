package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HTTP_ADDR", "DATABASE_DRIVER", "DATABASE_URL", "MESSAGING_DRIVER", "KAFKA_BROKERS",
	"STORAGE_DRIVER", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SQLITE_PATH", "SESSION_IDLE",
	"CLOUDINARY_HOST", "TAX_RATE", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	rates, err := cfg.Pricing.Rates()
	require.NoError(t, err)
	assert.Equal(t, "0.18", rates.Tax.String())
	assert.Equal(t, "0.18", rates.BundleDiscount.String())
	assert.True(t, rates.DefaultShipping.IsZero())
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
http:
  addr: ":9000"
database:
  driver: memory
messaging:
  driver: memory
storage:
  driver: redis
  redis_addr: "cache:6379"
  cart_ttl: 24h
  session_idle: 10m
pricing:
  tax_rate: 0.16
  bundle_discount: 0.2
  default_shipping: 12.50
log:
  level: debug
  format: text
`)
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "cache:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 3, cfg.Storage.RedisDB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Messaging.Brokers)

	rates, err := cfg.Pricing.Rates()
	require.NoError(t, err)
	assert.Equal(t, "0.16", rates.Tax.String())
	assert.Equal(t, "0.2", rates.BundleDiscount.String())
	assert.Equal(t, "12.5", rates.DefaultShipping.String())

	ttl, err := cfg.Storage.TTL()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)

	idle, err := cfg.Storage.IdleTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, idle)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "http: [unterminated"))

	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"tax rate of one", func(c *Config) { c.Pricing.TaxRate = "1" }, "pricing.tax_rate"},
		{"negative discount", func(c *Config) { c.Pricing.BundleDiscount = "-0.1" }, "pricing.bundle_discount"},
		{"garbage rate", func(c *Config) { c.Pricing.TaxRate = "abc" }, "invalid pricing.tax_rate"},
		{"negative shipping", func(c *Config) { c.Pricing.DefaultShipping = "-5" }, "default_shipping"},
		{"storage driver", func(c *Config) { c.Storage.Driver = "etcd" }, "unknown storage driver"},
		{"messaging driver", func(c *Config) { c.Messaging.Driver = "nats" }, "unknown messaging driver"},
		{"no brokers", func(c *Config) { c.Messaging.Brokers = nil }, "messaging.brokers"},
		{"database driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"no database url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"bad ttl", func(c *Config) { c.Storage.CartTTL = "soon" }, "storage.cart_ttl"},
		{"bad session idle", func(c *Config) { c.Storage.SessionIdle = "later" }, "storage.session_idle"},
		{"zero session idle", func(c *Config) { c.Storage.SessionIdle = "0s" }, "must be positive"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}
