// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. ADMISSION_DATABASE_URL.
const EnvPrefix = "ADMISSION_"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// ScanRateLimit is the number of scans one gate may submit per minute; 0 disables the limiter.
	ScanRateLimit int `yaml:"scan_rate_limit" env:"SCAN_RATE_LIMIT"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`       // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"FORMAT"`     // json|console
	Sampling bool   `yaml:"sampling" env:"SAMPLING"` // enable sampling in prod
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver" env:"DRIVER"` // postgres|sqlite|memory
	URL         string `yaml:"url" env:"URL"`
	Path        string `yaml:"path" env:"PATH"`
	MaxConns    int32  `yaml:"max_conns" env:"MAX_CONNS"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"URL"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

type PolicyConfig struct {
	CheckInAllowed  bool `yaml:"check_in_allowed"`
	CheckOutAllowed bool `yaml:"check_out_allowed"`
	ReentryAllowed  bool `yaml:"reentry_allowed"`
}

type AdmissionConfig struct {
	LockTimeout   time.Duration `yaml:"lock_timeout" env:"LOCK_TIMEOUT"`
	CredentialTTL time.Duration `yaml:"credential_ttl" env:"CREDENTIAL_TTL"`
	CodeAttempts  int           `yaml:"code_attempts" env:"CODE_ATTEMPTS"`
	// DefaultPolicy applies to tickets without a configured policy.
	DefaultPolicy *PolicyConfig `yaml:"default_policy"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
}

type TelegramConfig struct {
	Token  string `yaml:"token" env:"TOKEN"`
	ChatID int64  `yaml:"chat_id" env:"CHAT_ID"`
}

type SchedulerConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval" env:"STATS_INTERVAL"`
}

type NotifyConfig struct {
	Workers int `yaml:"workers" env:"WORKERS"`
}

// FixturesConfig seeds the memory driver for local runs.
type FixturesConfig struct {
	Holders  map[string]string       `yaml:"holders"`  // ref -> "member:<id>" | "guest:<token>"
	Policies map[string]PolicyConfig `yaml:"policies"` // event ticket id -> defaults
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Admission AdmissionConfig `yaml:"admission"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Telegram  TelegramConfig  `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Notify    NotifyConfig    `yaml:"notify" envPrefix:"NOTIFY_"`
	Fixtures  FixturesConfig  `yaml:"fixtures"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path, applies ADMISSION_* environment
// overrides, fills defaults and validates. A missing file is allowed when path
// is empty, so the service can be configured from the environment alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 16
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.Path == "" {
		cfg.Database.Path = "admission.db"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Admission.LockTimeout <= 0 {
		cfg.Admission.LockTimeout = 4 * time.Second
	}
	if cfg.Admission.CredentialTTL <= 0 {
		cfg.Admission.CredentialTTL = 7 * 24 * time.Hour
	}
	if cfg.Admission.CodeAttempts <= 0 {
		cfg.Admission.CodeAttempts = 5
	}
	if cfg.Admission.DefaultPolicy == nil {
		cfg.Admission.DefaultPolicy = &PolicyConfig{CheckInAllowed: true, CheckOutAllowed: true}
	}
	if cfg.Scheduler.StatsInterval <= 0 {
		cfg.Scheduler.StatsInterval = 30 * time.Second
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 4
	}
}

// Validate performs the minimal checks needed to start the service.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q (postgres|sqlite|memory)", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.token is set")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
