package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port int `yaml:"port"`
	// false — admin HTTP API не поднимаем (webhook тоже).
	Enabled bool `yaml:"enabled"`
	// TTF с кириллицей для PDF-квитанций; пусто — встроенный Helvetica.
	ReceiptFont string `yaml:"receipt_font"`
}

type DatabaseConfig struct {
	DSN string `yaml:"url"`
	// "postgres" или "memory" (локальная отладка без БД).
	Driver          string `yaml:"driver"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	RunMigrations   bool   `yaml:"run_migrations"`
	WorkflowStorage string `yaml:"workflow_storage"` // "memory" | "postgres"
}

type TelegramConfig struct {
	Token          string `yaml:"token"`
	WebhookURL     string `yaml:"webhook_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	PollTimeout    int    `yaml:"poll_timeout"`
	Workers        int    `yaml:"workers"`
	Debug          bool   `yaml:"debug"`
	SupportContact string `yaml:"support_username"`
}

type CaptchaConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type DealsConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	MaxAmountUSD float64       `yaml:"max_amount_usd"`
}

type PaymentsConfig struct {
	TRC20Address string `yaml:"trc20_address"`
	TONAddress   string `yaml:"ton_address"`
}

type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
	// read-only учётка для аудита, опционально
	AuditUsername     string        `yaml:"audit_username"`
	AuditPasswordHash string        `yaml:"audit_password_hash"`
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	AlertsTo     string `yaml:"alerts_to"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Captcha  CaptchaConfig  `yaml:"captcha"`
	Deals    DealsConfig    `yaml:"deals"`
	Payments PaymentsConfig `yaml:"payments"`
	Admin    AdminConfig    `yaml:"admin"`
	Email    EmailConfig    `yaml:"email"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoadConfig reads the YAML file at path, fills defaults and applies
// environment overrides for secrets.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.Token, "BOT_TOKEN")
	set(&c.Database.DSN, "DATABASE_URL")
	set(&c.Payments.TRC20Address, "TRC20_ADDRESS")
	set(&c.Payments.TONAddress, "TON_ADDRESS")
	set(&c.Admin.JWTSecret, "JWT_SECRET")
	set(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	set(&c.Telegram.SupportContact, "SUPPORT_USERNAME")
	set(&c.Telegram.WebhookSecret, "TELEGRAM_WEBHOOK_SECRET")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.WorkflowStorage == "" {
		c.Database.WorkflowStorage = "memory"
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 60
	}
	if c.Telegram.Workers <= 0 {
		c.Telegram.Workers = 8
	}
	if c.Telegram.SupportContact == "" {
		c.Telegram.SupportContact = "Anton_ozernote"
	}
	if c.Captcha.Timeout == 0 {
		c.Captcha.Timeout = 60 * time.Second
	}
	if c.Captcha.MaxAttempts == 0 {
		c.Captcha.MaxAttempts = 3
	}
	if c.Deals.TTL == 0 {
		c.Deals.TTL = 24 * time.Hour
	}
	if c.Deals.MaxAmountUSD == 0 {
		c.Deals.MaxAmountUSD = 100000
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports every missing required value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token (BOT_TOKEN) is required"))
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.url (DATABASE_URL) is required for postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	switch c.Database.WorkflowStorage {
	case "memory":
	case "postgres":
		if c.Database.Driver != "postgres" {
			errs = append(errs, errors.New("database.workflow_storage=postgres needs the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.workflow_storage %q is not supported", c.Database.WorkflowStorage))
	}
	if c.Payments.TRC20Address == "" && c.Payments.TONAddress == "" {
		errs = append(errs, errors.New("at least one of payments.trc20_address / payments.ton_address is required"))
	}
	if c.Server.Enabled && c.Admin.JWTSecret == "" {
		errs = append(errs, errors.New("admin.jwt_secret (JWT_SECRET) is required when server is enabled"))
	}
	if c.Telegram.WebhookURL != "" && !c.Server.Enabled {
		errs = append(errs, errors.New("telegram.webhook_url needs server.enabled"))
	}
	if c.Captcha.MaxAttempts < 1 {
		errs = append(errs, errors.New("captcha.max_attempts must be positive"))
	}
	if c.Deals.MaxAmountUSD <= 0 {
		errs = append(errs, errors.New("deals.max_amount_usd must be positive"))
	}
	return errors.Join(errs...)
}

// EmailEnabled — алерты по почте включаются только при заданном SMTP.
func (c *Config) EmailEnabled() bool {
	return c.Email.SMTPHost != "" && c.Email.AlertsTo != ""
}
