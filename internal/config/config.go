package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Authority     AuthorityConfig
	Escalation    EscalationConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the audit-trail database configuration
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"campuskit"`
	Password        string        `envconfig:"DB_PASSWORD"`
	Database        string        `envconfig:"DB_NAME" default:"campuskit"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds the token-store configuration. When Addr is empty
// the process falls back to the in-memory store.
type RedisConfig struct {
	Addr      string        `envconfig:"REDIS_ADDR"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"campuskit"`
	TokenTTL  time.Duration `envconfig:"REDIS_TOKEN_TTL" default:"720h"`
}

// AuthorityConfig points at the remote auth authority
type AuthorityConfig struct {
	BaseURL string        `envconfig:"AUTHORITY_BASE_URL" default:"http://localhost:9090"`
	Timeout time.Duration `envconfig:"AUTHORITY_TIMEOUT" default:"15s"`
}

// EscalationConfig tunes the admin-mode countdown
type EscalationConfig struct {
	Duration         time.Duration `envconfig:"ESCALATION_DURATION" default:"15m"`
	WarningThreshold time.Duration `envconfig:"ESCALATION_WARNING_THRESHOLD" default:"2m"`
	TickInterval     time.Duration `envconfig:"ESCALATION_TICK_INTERVAL" default:"1s"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string  `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string  `envconfig:"LOG_FORMAT" default:"json"`
	OTELEnabled    bool    `envconfig:"OTEL_ENABLED" default:"false"`
	SampleRatio    float64 `envconfig:"OTEL_TRACES_SAMPLER_RATIO" default:"1.0"`
	ServiceName    string  `envconfig:"OTEL_SERVICE_NAME" default:"campuskit"`
	ServiceVersion string  `envconfig:"OTEL_SERVICE_VERSION" default:"0.1.0"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATELIMIT_RPS" default:"10"`
	Burst             int     `envconfig:"RATELIMIT_BURST" default:"20"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Authority.BaseURL == "" {
		return fmt.Errorf("AUTHORITY_BASE_URL is required")
	}
	if c.Escalation.WarningThreshold >= c.Escalation.Duration {
		return fmt.Errorf("ESCALATION_WARNING_THRESHOLD must be shorter than ESCALATION_DURATION")
	}
	return nil
}
