package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/chantier-erp/chantier-erp/internal/ledger"
)

func validConfig() *Config {
	return &Config{
		PGDSN:              "postgres://localhost/chantier",
		RedisAddr:          "127.0.0.1:6379",
		CacheTTL:           time.Minute,
		RateLimitPerMinute: 60,
		LogFormat:          "json",
		CollationLocale:    "fr",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("MONTH_ONLY_BUCKETS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.True(t, cfg.MonthOnlyBuckets)
	require.Equal(t, "15 5 * * *", cfg.WarmupCron)
	require.Equal(t, language.French, cfg.Locale())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "LOG_FORMAT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty dsn", func(c *Config) { c.PGDSN = "" }, "PG_DSN"},
		{"empty redis", func(c *Config) { c.RedisAddr = "" }, "REDIS_ADDR"},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, "CACHE_TTL"},
		{"zero rate", func(c *Config) { c.RateLimitPerMinute = 0 }, "RATE_LIMIT"},
		{"bad locale", func(c *Config) { c.CollationLocale = "not a tag!" }, "COLLATION_LOCALE"},
	}
	require.NoError(t, validConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestAgingPolicyFile(t *testing.T) {
	cfg := validConfig()
	policy, err := cfg.AgingPolicy()
	require.NoError(t, err)
	require.Equal(t, ledger.DefaultAgingPolicy(), policy)

	path := filepath.Join(t.TempDir(), "aging.yml")
	require.NoError(t, os.WriteFile(path, []byte("bounds: [15, 45]\n"), 0o600))
	cfg.AgingPolicyFile = path
	policy, err = cfg.AgingPolicy()
	require.NoError(t, err)
	require.Equal(t, []int{15, 45}, policy.Bounds)

	require.NoError(t, os.WriteFile(path, []byte("bounds: [45, 15]\n"), 0o600))
	_, err = cfg.AgingPolicy()
	require.ErrorIs(t, err, ledger.ErrInvalidAgingPolicy)

	cfg.AgingPolicyFile = filepath.Join(t.TempDir(), "missing.yml")
	_, err = cfg.AgingPolicy()
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "INFO", parseLevel(nil).String())
	require.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
	require.Equal(t, "WARN", parseLevel(&Config{LogLevel: "WARNING"}).String())
	require.Equal(t, "ERROR", parseLevel(&Config{LogLevel: "error"}).String())
	require.NotNil(t, NewLogger(&Config{LogFormat: "json"}))
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
