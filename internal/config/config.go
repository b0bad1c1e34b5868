// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	// devJWTSecret signs tokens in sandbox when auth.jwt_secret is unset.
	devJWTSecret = "homeaura-dev-secret-change-me"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
	File     string `yaml:"file"`     // optional rotated log file
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// InitiateLimit caps payment initiations per user per InitiateWindow.
	InitiateLimit  int           `yaml:"initiate_limit"`
	InitiateWindow time.Duration `yaml:"initiate_window"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PhonePeConfig struct {
	MerchantID         string        `yaml:"merchant_id"`
	SaltKey            string        `yaml:"salt_key"`
	SaltIndex          string        `yaml:"salt_index"`
	BaseURL            string        `yaml:"base_url"`
	RecurringDebitPath string        `yaml:"recurring_debit_path"`
	Timeout            time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	// Environment is sandbox or production and alone decides which gateway is wired.
	Environment string        `yaml:"environment"`
	PublicURL   string        `yaml:"public_url"`   // frontend base for redirects
	CallbackURL string        `yaml:"callback_url"` // backend base the provider calls
	PhonePe     PhonePeConfig `yaml:"phonepe"`
}

type SchedulerConfig struct {
	ExpiryCron          string        `yaml:"expiry_cron"`
	Timezone            string        `yaml:"timezone"`
	RunTimeout          time.Duration `yaml:"run_timeout"`
	SweepBatchSize      int           `yaml:"sweep_batch_size"`
	SweepLockTTL        time.Duration `yaml:"sweep_lock_ttl"`
	RenewalNoticeDays   int           `yaml:"renewal_notice_days"`
	ReconcileInterval   time.Duration `yaml:"reconcile_interval"`
	ReconcileStaleAfter time.Duration `yaml:"reconcile_stale_after"`
	ReconcileBatch      int           `yaml:"reconcile_batch"`
	ReconcileWorkers    int           `yaml:"reconcile_workers"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	// SendInDev turns delivery on while running with -dev.
	SendInDev bool `yaml:"send_in_dev"`
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Mail      MailConfig      `yaml:"mail"`
	Telegram  TelegramConfig  `yaml:"telegram"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present), the YAML file at path, applies env
// overrides and defaults, then validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw YAML and runs the same override/default/validate chain as LoadConfig.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Database.URL, "DATABASE_URL")
	override(&c.Redis.URL, "REDIS_URL")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Payment.PhonePe.MerchantID, "PHONEPE_MERCHANT_ID")
	override(&c.Payment.PhonePe.SaltKey, "PHONEPE_SALT_KEY")
	override(&c.Mail.Password, "SMTP_PASSWORD")
	override(&c.Telegram.Token, "TELEGRAM_TOKEN")
	override(&c.Payment.Environment, "PAYMENT_ENVIRONMENT")
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5000
	}
	c.HTTP.ReadTimeout = orDuration(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = orDuration(c.HTTP.WriteTimeout, 30*time.Second)
	c.HTTP.RequestTimeout = orDuration(c.HTTP.RequestTimeout, 25*time.Second)
	c.HTTP.ShutdownTimeout = orDuration(c.HTTP.ShutdownTimeout, 15*time.Second)
	if c.HTTP.InitiateLimit <= 0 {
		c.HTTP.InitiateLimit = 10
	}
	c.HTTP.InitiateWindow = orDuration(c.HTTP.InitiateWindow, time.Minute)
	c.Auth.TokenTTL = orDuration(c.Auth.TokenTTL, 30*24*time.Hour)

	// No default: a missing environment must not fall back to the simulated gateway.
	c.Payment.Environment = strings.ToLower(strings.TrimSpace(c.Payment.Environment))
	if c.Auth.JWTSecret == "" && c.Payment.Environment == EnvSandbox {
		c.Auth.JWTSecret = devJWTSecret
	}
	if c.Payment.PhonePe.SaltIndex == "" {
		c.Payment.PhonePe.SaltIndex = "1"
	}
	if c.Payment.PhonePe.RecurringDebitPath == "" {
		c.Payment.PhonePe.RecurringDebitPath = "/v3/recurring/debit/execute"
	}
	c.Payment.PhonePe.Timeout = orDuration(c.Payment.PhonePe.Timeout, 10*time.Second)
	c.Payment.PublicURL = strings.TrimRight(c.Payment.PublicURL, "/")
	c.Payment.CallbackURL = strings.TrimRight(c.Payment.CallbackURL, "/")

	if c.Scheduler.ExpiryCron == "" {
		c.Scheduler.ExpiryCron = "0 3 * * *"
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "Asia/Kolkata"
	}
	c.Scheduler.RunTimeout = orDuration(c.Scheduler.RunTimeout, 20*time.Minute)
	c.Scheduler.SweepLockTTL = orDuration(c.Scheduler.SweepLockTTL, 30*time.Minute)
	if c.Scheduler.SweepBatchSize <= 0 {
		c.Scheduler.SweepBatchSize = 200
	}
	if c.Scheduler.RenewalNoticeDays <= 0 {
		c.Scheduler.RenewalNoticeDays = 7
	}
	c.Scheduler.ReconcileInterval = orDuration(c.Scheduler.ReconcileInterval, 5*time.Minute)
	c.Scheduler.ReconcileStaleAfter = orDuration(c.Scheduler.ReconcileStaleAfter, 15*time.Minute)
	if c.Scheduler.ReconcileBatch <= 0 {
		c.Scheduler.ReconcileBatch = 100
	}
	if c.Scheduler.ReconcileWorkers <= 0 {
		c.Scheduler.ReconcileWorkers = 4
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
}

// Validate rejects configurations that would silently run with the wrong gateway or no secrets.
func (c *Config) Validate() error {
	var errs []error
	switch c.Payment.Environment {
	case EnvSandbox, EnvProduction:
	case "":
		errs = append(errs, errors.New("payment.environment is required (PAYMENT_ENVIRONMENT)"))
	default:
		errs = append(errs, fmt.Errorf("payment.environment must be %q or %q, got %q", EnvSandbox, EnvProduction, c.Payment.Environment))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Payment.Environment == EnvProduction {
		pp := c.Payment.PhonePe
		if pp.MerchantID == "" {
			errs = append(errs, errors.New("payment.phonepe.merchant_id is required in production"))
		}
		if pp.SaltKey == "" {
			errs = append(errs, errors.New("payment.phonepe.salt_key is required in production"))
		}
		if pp.BaseURL == "" {
			errs = append(errs, errors.New("payment.phonepe.base_url is required in production"))
		}
		if c.Payment.CallbackURL == "" {
			errs = append(errs, errors.New("payment.callback_url is required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("auth.jwt_secret is required in production"))
		}
	}
	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "") {
		errs = append(errs, errors.New("mail.host and mail.from are required when mail is enabled"))
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// IsSandbox reports whether the sandbox gateway must be wired.
func (c *Config) IsSandbox() bool { return c.Payment.Environment == EnvSandbox }

// MailActive reports whether notices should be delivered by SMTP.
func (c *Config) MailActive() bool {
	return c.Mail.Enabled && (!c.Runtime.Dev || c.Mail.SendInDev)
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
