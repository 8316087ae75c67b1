// Package config provides centralized configuration management for micareg.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Upload      UploadConfig
	Logging     LoggingConfig
	LLM         LLMConfig
	Remediation RemediationConfig
	Schema      SchemaConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds settings for the optional audit database.
// An empty URL disables audit persistence.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database URL was configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds limits for CSV files accepted over HTTP.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the number of uploads processed at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWait is how long an upload waits for a free slot (default: 30s)
	MaxWait time.Duration `env:"UPLOAD_MAX_WAIT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// LLMConfig holds settings for the remediation model client.
type LLMConfig struct {
	// APIKey authenticates against the model endpoint.
	APIKey string `env:"LLM_API_KEY" envAlt:"DEEPSEEK_API_KEY"`

	// Endpoint is the base URL of the chat completions API.
	Endpoint string `env:"LLM_ENDPOINT" default:"https://api.deepseek.com"`

	// Provider selects the wire flavour: openai (OpenAI-compatible) or azure.
	Provider string `env:"LLM_PROVIDER" default:"openai"`

	// Models are tried in order until one yields at least one proposal.
	Models []string `env:"LLM_MODELS" default:"deepseek-reasoner,deepseek-chat"`

	// Timeout bounds a single completion call (default: 60s)
	Timeout time.Duration `env:"LLM_TIMEOUT" default:"60s"`

	// Temperature is sent with every call (default: 0)
	Temperature float64 `env:"LLM_TEMPERATURE" default:"0"`

	// MaxTokens caps the completion length (default: 500)
	MaxTokens int `env:"LLM_MAX_TOKENS" default:"500"`
}

// RemediationConfig holds task generation and patch application settings.
type RemediationConfig struct {
	// MaxTasks caps the number of tasks generated per run (default: 50, max 1000)
	MaxTasks int `env:"REMEDIATION_MAX_TASKS" default:"50"`

	// RequireApproval rejects proposals that cannot be auto-applied (default: true)
	RequireApproval bool `env:"REMEDIATION_REQUIRE_APPROVAL" default:"true"`

	// AutoApplyThreshold is the confidence needed for auto-apply (default: 0.9)
	AutoApplyThreshold float64 `env:"REMEDIATION_AUTO_APPLY_THRESHOLD" default:"0.9"`

	// AutoApplyLowRisk enables auto-apply for low-risk proposals (default: false)
	AutoApplyLowRisk bool `env:"REMEDIATION_AUTO_APPLY_LOW_RISK" default:"false"`
}

// SchemaConfig holds register schema settings.
type SchemaConfig struct {
	// OverridesFile is an optional YAML file replacing built-in register descriptors.
	OverridesFile string `env:"SCHEMA_OVERRIDES"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
