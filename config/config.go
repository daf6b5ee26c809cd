package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port        int    `mapstructure:"PORT"`
	Env         string `mapstructure:"APP_ENV"` // development | production
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// Storage
	StoreDriver string `mapstructure:"STORE_DRIVER"` // sqlite | memory | redis
	DBPath      string `mapstructure:"DB_PATH"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	// Auth
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	JWTExpirationHours     int    `mapstructure:"JWT_EXPIRATION_HOURS"`
	BootstrapAdminPassword string `mapstructure:"BOOTSTRAP_ADMIN_PASSWORD"`
	SeedDemo               bool   `mapstructure:"SEED_DEMO"`

	// Business
	Timezone             string  `mapstructure:"TIMEZONE"`
	DefaultInterestRate  float64 `mapstructure:"DEFAULT_INTEREST_RATE"`
	StoreRevenueShare    float64 `mapstructure:"STORE_REVENUE_SHARE"`
	PlatformRevenueShare float64 `mapstructure:"PLATFORM_REVENUE_SHARE"`
	AuditInterval        string  `mapstructure:"AUDIT_INTERVAL"` // Go duration, "0" disables

	// Logging
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSize    int    `mapstructure:"LOG_MAX_SIZE"` // megabytes
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAge     int    `mapstructure:"LOG_MAX_AGE"` // days
	LogCompress   bool   `mapstructure:"LOG_COMPRESS"`
}

var keys = []string{
	"PORT", "APP_ENV", "CORS_ORIGINS",
	"STORE_DRIVER", "DB_PATH", "REDIS_URL", "REDIS_PREFIX",
	"JWT_SECRET", "JWT_EXPIRATION_HOURS", "BOOTSTRAP_ADMIN_PASSWORD", "SEED_DEMO",
	"TIMEZONE", "DEFAULT_INTEREST_RATE", "STORE_REVENUE_SHARE", "PLATFORM_REVENUE_SHARE", "AUDIT_INTERVAL",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE", "LOG_MAX_BACKUPS", "LOG_MAX_AGE", "LOG_COMPRESS",
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with the .env lookup rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Sensible defaults for development
	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "./data/ledger.db")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("REDIS_PREFIX", "colmado:")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("JWT_EXPIRATION_HOURS", 8)
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "admin")
	v.SetDefault("SEED_DEMO", false)
	v.SetDefault("TIMEZONE", "America/Santo_Domingo")
	v.SetDefault("DEFAULT_INTEREST_RATE", 0.15)
	v.SetDefault("STORE_REVENUE_SHARE", 0.035)
	v.SetDefault("PLATFORM_REVENUE_SHARE", 0.6667)
	v.SetDefault("AUDIT_INTERVAL", "1h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE", 30)
	v.SetDefault("LOG_COMPRESS", true)

	// Optional .env file for local development, does not fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.StoreDriver {
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q must be sqlite, memory or redis", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() && c.JWTSecret == "dev-secret-change-me" {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.JWTExpirationHours <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_HOURS must be positive"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if c.DefaultInterestRate <= 0 || c.DefaultInterestRate > 1 {
		errs = append(errs, errors.New("DEFAULT_INTEREST_RATE must be in (0, 1]"))
	}
	for name, share := range map[string]float64{
		"STORE_REVENUE_SHARE":    c.StoreRevenueShare,
		"PLATFORM_REVENUE_SHARE": c.PlatformRevenueShare,
	} {
		if share < 0 || share > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1]", name))
		}
	}
	if _, err := c.AuditEvery(); err != nil {
		errs = append(errs, fmt.Errorf("AUDIT_INTERVAL: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Location returns the time zone used for report date windows.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AuditEvery returns the audit interval; zero disables the scheduler.
func (c *Config) AuditEvery() (time.Duration, error) {
	if c.AuditInterval == "" || c.AuditInterval == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.AuditInterval)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("must not be negative")
	}
	return d, nil
}

func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

func (c *Config) InterestRate() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultInterestRate)
}

func (c *Config) StoreShare() decimal.Decimal {
	return decimal.NewFromFloat(c.StoreRevenueShare)
}

func (c *Config) PlatformShare() decimal.Decimal {
	return decimal.NewFromFloat(c.PlatformRevenueShare)
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
