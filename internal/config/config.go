// Package config provides centralized configuration management for the
// QR batch generator. It loads configuration from environment variables
// with sensible defaults and validates all settings on startup to fail
// fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Generate GenerateConfig
	Security SecurityConfig
	Rate     RateLimitConfig
	Audit    AuditConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response.
	// Batch runs are synchronous, so this must cover a full run (default: 15m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"15m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 15m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"15m"`
}

// DatabaseConfig holds the optional batch-history database settings.
// When URL is empty the history feature is disabled and the service
// runs purely against the filesystem.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (optional)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// UploadConfig holds input file handling settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted input file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" envAlt:"MAX_FILE_SIZE_BYTES" default:"52428800"`

	// Dir is the directory where uploaded files are saved (default: uploads)
	Dir string `env:"UPLOAD_DIR" default:"uploads"`
}

// GenerateConfig holds QR generation pipeline settings.
type GenerateConfig struct {
	// OutputDir is the root under which per-batch output trees are created (default: qr_output)
	OutputDir string `env:"OUTPUT_DIR" default:"qr_output"`

	// Workers is the fixed size of the per-row worker pool (default: 6)
	Workers int `env:"GENERATE_WORKERS" envAlt:"MAX_WORKERS" default:"6"`

	// MaxConcurrent is the maximum number of batches processed in parallel (default: 2)
	MaxConcurrent int `env:"GENERATE_MAX_CONCURRENT" default:"2"`

	// MaxWait is how long an upload waits for a batch slot (default: 30s)
	MaxWait time.Duration `env:"GENERATE_MAX_WAIT" default:"30s"`

	// TaskDelay is an artificial per-row delay used for throttling (default: 0)
	TaskDelay time.Duration `env:"GENERATE_TASK_DELAY" default:"0s"`

	// MaxPayloadLen is the maximum accepted QR payload length in characters (default: 500)
	MaxPayloadLen int `env:"GENERATE_MAX_PAYLOAD_LEN" envAlt:"MAX_QR_CONTENT_LENGTH" default:"500"`
}

// SecurityConfig holds input integrity settings.
type SecurityConfig struct {
	// RequireSignature requires an HMAC-SHA256 signature over every uploaded file (default: false)
	RequireSignature bool `env:"REQUIRE_SIGNATURE" default:"false"`

	// SignatureSecret is the shared secret for signature verification
	SignatureSecret string `env:"SIGNATURE_SECRET"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 60)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// LogPath is the append-only JSONL audit log location (default: generate_audit.jsonl)
	LogPath string `env:"AUDIT_LOG_PATH" default:"generate_audit.jsonl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// AppLogPath is an optional diagnostic log file; empty logs to stdout
	AppLogPath string `env:"APP_LOG_PATH"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HistoryEnabled reports whether the batch-history store is configured.
func (c *Config) HistoryEnabled() bool {
	return c.Database.URL != ""
}
