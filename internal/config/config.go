// Package config loads the cleaning service's configuration from environment
// variables. Every field has a default, and the result is validated on
// startup so misconfiguration fails fast with every problem listed at once.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Clean    CleanConfig
	LLM      LLMConfig
	Quota    QuotaConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// StoreConfig selects where usage counters and job history live.
type StoreConfig struct {
	// Driver is memory, sqlite or postgres (default: memory)
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// URL is the sqlite path or PostgreSQL connection string.
	// DATABASE_URL is accepted for compatibility with hosted Postgres.
	URL string `env:"STORE_URL" envAlt:"DATABASE_URL"`

	// MaxConns is the PostgreSQL pool size (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the number of idle PostgreSQL connections kept open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime closes idle connections after this long (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// CleanConfig bounds cleaning work.
type CleanConfig struct {
	// MaxUploadBytes caps any request body regardless of tier (default: 500MB)
	MaxUploadBytes int64 `env:"CLEAN_MAX_UPLOAD_BYTES" default:"524288000"`

	// MaxConcurrent is the number of cleanings run at once (default: 4)
	MaxConcurrent int `env:"CLEAN_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a cleaning slot (default: 15s)
	MaxWaitTime time.Duration `env:"CLEAN_MAX_WAIT_TIME" default:"15s"`

	// Timeout bounds one cleaning from parse to report (default: 2m)
	Timeout time.Duration `env:"CLEAN_TIMEOUT" default:"2m"`

	// HistoryLimit is how many past cleanings the history endpoint returns (default: 20)
	HistoryLimit int `env:"CLEAN_HISTORY_LIMIT" default:"20"`
}

// LLMConfig configures the instruction interpreter's model.
type LLMConfig struct {
	// Provider is none, groq or ollama (default: none)
	Provider string `env:"LLM_PROVIDER" default:"none"`

	// BaseURL overrides the provider endpoint
	BaseURL string `env:"LLM_BASE_URL"`

	// APIKey authenticates against hosted providers
	APIKey string `env:"LLM_API_KEY" envAlt:"GROQ_API_KEY"`

	// Model overrides the provider's default model
	Model string `env:"LLM_MODEL"`

	// Timeout bounds one interpretation call (default: 15s)
	Timeout time.Duration `env:"LLM_TIMEOUT" default:"15s"`

	// MaxTokens caps the model's response (default: 512)
	MaxTokens int `env:"LLM_MAX_TOKENS" default:"512"`
}

// QuotaConfig holds tier policy and usage retention settings.
type QuotaConfig struct {
	// PolicyFile is an optional YAML file overriding the built-in tier policies
	PolicyFile string `env:"QUOTA_POLICY_FILE"`

	// PurgeInterval is how often stale usage records are deleted (default: 24h)
	PurgeInterval time.Duration `env:"QUOTA_PURGE_INTERVAL" default:"24h"`

	// RetainPeriods is how many past monthly periods are kept (default: 3)
	RetainPeriods int `env:"QUOTA_RETAIN_PERIODS" default:"3"`
}

// RateLimitConfig holds per-IP request rate limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// CleanLimit is requests per minute for the clean endpoint (default: 10)
	CleanLimit int `env:"RATE_LIMIT_CLEAN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// GatewayKeys are API keys of the account gateway. Account headers are
	// honored only on requests carrying one of them.
	GatewayKeys []string `env:"GATEWAY_API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
