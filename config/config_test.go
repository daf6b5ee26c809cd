package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "0.15", cfg.InterestRate().String())
	assert.Equal(t, "0.035", cfg.StoreShare().String())
	assert.Equal(t, 8*time.Hour, cfg.JWTExpiration())
	every, err := cfg.AuditEvery()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, every)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STORE_REVENUE_SHARE", "0.05")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("AUDIT_INTERVAL", "0")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "0.05", cfg.StoreShare().String())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
	every, err := cfg.AuditEvery()
	require.NoError(t, err)
	assert.Zero(t, every)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SEED_DEMO=true\nTIMEZONE=UTC\n"), 0o600))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port: 8080, StoreDriver: "sqlite", DBPath: "x.db", JWTSecret: "s",
			JWTExpirationHours: 1, Timezone: "UTC", DefaultInterestRate: 0.15,
			StoreRevenueShare: 0.035, PlatformRevenueShare: 0.6667, AuditInterval: "1h",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"bad driver", func(c *Config) { c.StoreDriver = "mongo" }, false},
		{"redis without url", func(c *Config) { c.StoreDriver = "redis"; c.RedisURL = "" }, false},
		{"rate above one", func(c *Config) { c.DefaultInterestRate = 1.5 }, false},
		{"negative share", func(c *Config) { c.StoreRevenueShare = -0.1 }, false},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, false},
		{"bad interval", func(c *Config) { c.AuditInterval = "soon" }, false},
		{"dev secret in production", func(c *Config) { c.Env = "production"; c.JWTSecret = "dev-secret-change-me" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
