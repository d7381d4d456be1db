// Package config loads the immutable process configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds every recognized option. It is built once at startup and
// passed by value to the components that need it.
type Config struct {
	CacheExpirationMinutes int `env:"CACHE_EXPIRATION_MINUTES" envDefault:"10"`

	SquareAccessToken string `env:"SQUARE_ACCESS_TOKEN,required"`
	SquareBaseURL     string `env:"SQUARE_API_BASE_URL" envDefault:"https://connect.squareupsandbox.com/v2/"`
	SquareVersion     string `env:"SQUARE_VERSION" envDefault:"2024-10-17"`
	SquareLocationID  string `env:"SQUARE_LOCATION_ID,required"`

	WebhookURL       string   `env:"WEBHOOK_URL"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaChangeTopic string   `env:"KAFKA_CHANGE_TOPIC" envDefault:"catalog.changed"`

	StoreBackend  string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	PaymentLinkLeaseSeconds int `env:"PAYMENT_LINK_LEASE_SECONDS" envDefault:"10"`

	HTTPAddr           string `env:"HTTP_ADDR" envDefault:":8080"`
	HTTPTimeoutSeconds int    `env:"HTTP_TIMEOUT_SECONDS" envDefault:"30"`

	Debug     bool   `env:"DEBUG" envDefault:"false"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads .env files (when present) and parses the environment.
// Variables already set in the environment take precedence over files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c Config) Validate() error {
	if c.CacheExpirationMinutes < 0 {
		return fmt.Errorf("CACHE_EXPIRATION_MINUTES must not be negative")
	}
	if c.PaymentLinkLeaseSeconds <= 0 {
		return fmt.Errorf("PAYMENT_LINK_LEASE_SECONDS must be positive")
	}
	switch c.StoreBackend {
	case BackendRedis:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// PaymentLinkLease returns the lease TTL.
func (c Config) PaymentLinkLease() time.Duration {
	return time.Duration(c.PaymentLinkLeaseSeconds) * time.Second
}

// HTTPTimeout returns the provider request timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
