package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"
)

// Config is read once at startup by the server, worker and schedule_task commands
type Config struct {
	Port                    string        `env:"PORT" envDefault:"8080"`
	DatabaseURL             string        `env:"DATABASE_URL"`
	DBLogLevel              string        `env:"DB_LOG_LEVEL" envDefault:"warn"`
	RedisURL                string        `env:"REDIS_URL"`
	FirebaseCredentialsPath string        `env:"FIREBASE_CREDENTIALS_PATH" envDefault:"./firebase-service-account.json"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	PaymentMaxRetries   uint          `env:"PAYMENT_MAX_RETRIES" envDefault:"5"`
	RecentPaymentsLimit int           `env:"RECENT_PAYMENTS_LIMIT" envDefault:"5"`
	ReportCacheTTL      time.Duration `env:"REPORT_CACHE_TTL" envDefault:"5m"`
	NotifyReceipts      bool          `env:"NOTIFY_RECEIPTS" envDefault:"false"`

	WorkerInterval time.Duration `env:"WORKER_INTERVAL" envDefault:"1m"`
	AuditSchedule  string        `env:"LEDGER_AUDIT_RRULE" envDefault:"FREQ=DAILY;BYHOUR=2;BYMINUTE=0"`

	SMTP SMTPConfig `envPrefix:"SMTP_"`
	WAHA WAHAConfig `envPrefix:"WAHA_"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASS"`
	From     string `env:"FROM,expand" envDefault:"${EMAIL_FROM}"`
}

type WAHAConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://waha:3000"`
	APIKey  string `env:"API_KEY"`
	Session string `env:"SESSION" envDefault:"default"`
}

// Load reads .env if present, then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}
	return Parse()
}

// Parse reads the process environment only
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RecentPaymentsLimit <= 0 {
		return Config{}, fmt.Errorf("RECENT_PAYMENTS_LIMIT must be positive, got %d", cfg.RecentPaymentsLimit)
	}
	if cfg.PaymentMaxRetries == 0 {
		return Config{}, fmt.Errorf("PAYMENT_MAX_RETRIES must be positive")
	}
	return cfg, nil
}

// GormLogLevel maps DB_LOG_LEVEL to the gorm logger level
func (c Config) GormLogLevel() logger.LogLevel {
	switch strings.ToLower(c.DBLogLevel) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
