package config

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/Frida144/site-segnorito/internal/domain"
	pkgconfig "github.com/Frida144/site-segnorito/pkg/config"
)

// Storage backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8003"`

	// Storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"redis"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass      string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: 7 days)
	CartTTL    int    `env:"CART_TTL_HOURS" envDefault:"168"`
	StorageKey string `env:"CART_STORAGE_KEY" envDefault:"senorito_cart_v1"`

	// Presentation
	Locale         string `env:"CART_LOCALE" envDefault:"fr-FR"`
	CurrencySymbol string `env:"CART_CURRENCY_SYMBOL" envDefault:"€"`
	CurrencyCode   string `env:"CART_CURRENCY" envDefault:"EUR"`
	FeedbackMS     int    `env:"CART_FEEDBACK_MS" envDefault:"1200"`

	// Session
	SessionCookie string   `env:"SESSION_COOKIE" envDefault:"senorito_session"`
	CORSOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Kafka; no brokers disables event publication.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TTL returns the cart expiry.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// FeedbackDuration returns how long the add-to-cart confirmation shows.
func (c *Config) FeedbackDuration() time.Duration {
	return time.Duration(c.FeedbackMS) * time.Millisecond
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StorageBackend != BackendRedis && c.StorageBackend != BackendMemory {
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, c.StorageBackend)
	}
	if c.CartTTL < 0 {
		return fmt.Errorf("CART_TTL_HOURS must not be negative, got %d", c.CartTTL)
	}
	if c.StorageKey == "" {
		c.StorageKey = domain.DefaultStorageKey
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("CART_LOCALE %q is not a valid locale: %w", c.Locale, err)
	}
	if c.FeedbackMS <= 0 {
		return fmt.Errorf("CART_FEEDBACK_MS must be positive, got %d", c.FeedbackMS)
	}
	if c.SessionCookie == "" {
		return fmt.Errorf("SESSION_COOKIE is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}
