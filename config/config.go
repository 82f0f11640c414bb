// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // billing.timezone must resolve in minimal images

	"gopkg.in/yaml.v3"

	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Billing  BillingConfig  `yaml:"billing"`
	Locking  LockingConfig  `yaml:"locking"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// BillingConfig holds the days that govern a billing month.
type BillingConfig struct {
	ConfirmationDay      int    `yaml:"confirmation_day"`
	PaymentDueDay        int    `yaml:"payment_due_day"`
	CreditValidityMonths int    `yaml:"credit_validity_months"`
	Timezone             string `yaml:"timezone"` // IANA name, default UTC
}

// LockingConfig selects the per-student lock used when consuming credit
// and reporting payments.
type LockingConfig struct {
	Mode          string        `yaml:"mode"` // "memory" or "redis"
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PeriodConfig converts the billing section into the calendar configuration
// used by the domain.
func (c *Config) PeriodConfig() (period.Config, error) {
	loc, err := time.LoadLocation(c.Billing.Timezone)
	if err != nil {
		return period.Config{}, fmt.Errorf("billing.timezone: %w", err)
	}
	pc := period.Config{
		ConfirmationDay:      c.Billing.ConfirmationDay,
		PaymentDueDay:        c.Billing.PaymentDueDay,
		CreditValidityMonths: c.Billing.CreditValidityMonths,
		Location:             loc,
	}
	if err := pc.Validate(); err != nil {
		return period.Config{}, err
	}
	return pc, nil
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	TUTORBILL_SERVER_HOST              - Server host (default: 0.0.0.0)
//	TUTORBILL_SERVER_PORT              - Server port (default: 8080)
//	TUTORBILL_DATABASE_DRIVER          - sqlite or postgres (default: sqlite)
//	TUTORBILL_DATABASE_DSN             - Database DSN (default: tutorbill.db)
//	TUTORBILL_CONFIRMATION_DAY         - Invoice confirmation day (default: 20)
//	TUTORBILL_PAYMENT_DUE_DAY          - Payment due day (default: 25)
//	TUTORBILL_CREDIT_VALIDITY_MONTHS   - Makeup credit lifetime (default: 1)
//	TUTORBILL_TIMEZONE                 - IANA timezone (default: UTC)
//	TUTORBILL_LOCK_MODE                - memory or redis (default: memory)
//	TUTORBILL_REDIS_ADDR               - Redis address for redis locking
//	TUTORBILL_LOG_LEVEL                - debug, info, warn, error (default: info)
//	TUTORBILL_LOG_FORMAT               - json or console (default: json)
//	TUTORBILL_METRICS_ENABLED          - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	cfg.Metrics.Enabled = true

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads the file when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies TUTORBILL_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("TUTORBILL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TUTORBILL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TUTORBILL_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("TUTORBILL_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("TUTORBILL_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TUTORBILL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Billing configuration
	if v := os.Getenv("TUTORBILL_CONFIRMATION_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Billing.ConfirmationDay = n
		}
	}
	if v := os.Getenv("TUTORBILL_PAYMENT_DUE_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Billing.PaymentDueDay = n
		}
	}
	if v := os.Getenv("TUTORBILL_CREDIT_VALIDITY_MONTHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Billing.CreditValidityMonths = n
		}
	}
	if v := os.Getenv("TUTORBILL_TIMEZONE"); v != "" {
		cfg.Billing.Timezone = v
	}

	// Locking configuration
	if v := os.Getenv("TUTORBILL_LOCK_MODE"); v != "" {
		cfg.Locking.Mode = v
	}
	if v := os.Getenv("TUTORBILL_REDIS_ADDR"); v != "" {
		cfg.Locking.RedisAddr = v
	}
	if v := os.Getenv("TUTORBILL_REDIS_PASSWORD"); v != "" {
		cfg.Locking.RedisPassword = v
	}
	if v := os.Getenv("TUTORBILL_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Locking.RedisDB = n
		}
	}

	// Logging configuration
	if v := os.Getenv("TUTORBILL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TUTORBILL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("TUTORBILL_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("TUTORBILL_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "tutorbill.db"
	}

	if cfg.Billing.ConfirmationDay == 0 {
		cfg.Billing.ConfirmationDay = period.DefaultConfirmationDay
	}
	if cfg.Billing.PaymentDueDay == 0 {
		cfg.Billing.PaymentDueDay = period.DefaultPaymentDueDay
	}
	if cfg.Billing.CreditValidityMonths == 0 {
		cfg.Billing.CreditValidityMonths = period.DefaultCreditValidityMonths
	}
	if cfg.Billing.Timezone == "" {
		cfg.Billing.Timezone = "UTC"
	}

	if cfg.Locking.Mode == "" {
		cfg.Locking.Mode = "memory"
	}
	if cfg.Locking.TTL == 0 {
		cfg.Locking.TTL = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'postgres', got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %q", cfg.Database.Driver)
	}

	if _, err := cfg.PeriodConfig(); err != nil {
		return err
	}

	validLockModes := map[string]bool{"memory": true, "redis": true}
	if !validLockModes[cfg.Locking.Mode] {
		return fmt.Errorf("locking.mode must be 'memory' or 'redis', got %q", cfg.Locking.Mode)
	}
	if cfg.Locking.Mode == "redis" && cfg.Locking.RedisAddr == "" {
		return fmt.Errorf("locking.redis_addr is required when locking.mode is 'redis'")
	}
	if cfg.Locking.TTL < 0 {
		return fmt.Errorf("locking.ttl must not be negative")
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
