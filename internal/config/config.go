// Package config provides centralized configuration management for sheetsync.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
//
// Missing upstream credentials are deliberately not a validation error: the
// service starts and reports sync as unavailable until they are provided.
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
	Source   SourceConfig
	Sync     SyncConfig
	Schedule ScheduleConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, a full
	// reset can run longer than any sensible fixed limit)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for every route except the
	// run triggers (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// Driver selects the store implementation: postgres, sqlite or memory (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string (required for the postgres driver)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: sheetsync.db)
	SQLitePath string `env:"SQLITE_PATH" default:"sheetsync.db"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ApplySchema creates tables on startup when they do not exist (default: true)
	ApplySchema bool `env:"DB_APPLY_SCHEMA" default:"true"`
}

// Source kinds.
const (
	SourceGoogle = "google"
	SourceXLSX   = "xlsx"
	SourceCSV    = "csv"
)

// SourceConfig describes where sheet rows are pulled from.
type SourceConfig struct {
	// Kind selects the connector: google, xlsx or csv (default: google)
	Kind string `env:"SOURCE_KIND" default:"google"`

	// SpreadsheetID is the Google spreadsheet to read
	SpreadsheetID string `env:"GOOGLE_SPREADSHEET_ID" envAlt:"SPREADSHEET_ID"`

	// CredentialsJSON is an inline service-account key
	CredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`

	// CredentialsFile is a path to a service-account key file
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS"`

	// WorkbookPath is the .xlsx file read by the xlsx connector
	WorkbookPath string `env:"SOURCE_XLSX_PATH"`

	// CSVDir holds one <sheet key>.csv file per registered sheet
	CSVDir string `env:"SOURCE_CSV_DIR"`

	// RegistryFile is an optional YAML file adding or replacing sheet definitions
	RegistryFile string `env:"SHEETS_REGISTRY_FILE"`

	// FetchTimeout bounds a single upstream fetch (default: 60s)
	FetchTimeout time.Duration `env:"SOURCE_FETCH_TIMEOUT" default:"60s"`
}

// SyncConfig holds orchestrator settings.
type SyncConfig struct {
	// RowWorkers is the number of rows reconciled concurrently within one run (default: 4)
	RowWorkers int `env:"SYNC_ROW_WORKERS" default:"4"`

	// MaxConcurrentRuns caps sheet runs executing at once across the process (default: 2)
	MaxConcurrentRuns int `env:"SYNC_MAX_CONCURRENT_RUNS" default:"2"`

	// MaxWaitTime is how long a trigger waits for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"SYNC_MAX_WAIT" default:"30s"`

	// StaleThreshold marks the status report stale when the last run is older (default: 15m)
	StaleThreshold time.Duration `env:"SYNC_STALE_THRESHOLD" default:"15m"`

	// ValidateSample is the default drift-check sample size (default: 20)
	ValidateSample int `env:"SYNC_VALIDATE_SAMPLE" default:"20"`

	// RecentRuns is the default number of run logs in the status report (default: 20)
	RecentRuns int `env:"SYNC_RECENT_RUNS" default:"20"`
}

// ScheduleConfig holds the in-process scheduled sync settings.
type ScheduleConfig struct {
	// Interval between scheduled runs; 0 disables the scheduler (default: 0)
	Interval time.Duration `env:"SYNC_SCHEDULE_INTERVAL" default:"0s"`

	// Mode is the mode used by scheduled runs (default: incremental)
	Mode string `env:"SYNC_SCHEDULE_MODE" default:"incremental"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// TriggerLimit is requests per minute for sync trigger endpoints (default: 10)
	TriggerLimit int `env:"RATE_LIMIT_TRIGGER" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// CronSecret authenticates the scheduled trigger; empty disables it
	CronSecret string `env:"CRON_SECRET"`

	// RoleHeader carries the caller's role as asserted by the upstream auth proxy
	RoleHeader string `env:"ROLE_HEADER" default:"X-User-Role"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File additionally writes logs to a rotating file when set
	File string `env:"LOG_FILE"`

	// FileMaxSizeMB is the size at which the log file is rotated (default: 100)
	FileMaxSizeMB int `env:"LOG_FILE_MAX_SIZE_MB" default:"100"`

	// FileMaxBackups is the number of rotated files kept (default: 5)
	FileMaxBackups int `env:"LOG_FILE_MAX_BACKUPS" default:"5"`

	// FileMaxAgeDays is how long rotated files are kept (default: 28)
	FileMaxAgeDays int `env:"LOG_FILE_MAX_AGE_DAYS" default:"28"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HasGoogleCredentials reports whether a service-account key is configured.
func (c *SourceConfig) HasGoogleCredentials() bool {
	return c.CredentialsJSON != "" || c.CredentialsFile != ""
}
