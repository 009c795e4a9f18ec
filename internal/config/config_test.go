package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}
	if cfg.Source.Kind != SourceGoogle {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, SourceGoogle)
	}
	if cfg.Sync.StaleThreshold != 15*time.Minute {
		t.Errorf("Sync.StaleThreshold = %v, want %v", cfg.Sync.StaleThreshold, 15*time.Minute)
	}
	if cfg.Sync.RowWorkers != 4 {
		t.Errorf("Sync.RowWorkers = %d, want %d", cfg.Sync.RowWorkers, 4)
	}
	if cfg.Schedule.Interval != 0 {
		t.Errorf("Schedule.Interval = %v, want 0", cfg.Schedule.Interval)
	}
	if cfg.Security.RoleHeader != "X-User-Role" {
		t.Errorf("Security.RoleHeader = %q, want %q", cfg.Security.RoleHeader, "X-User-Role")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v, want enabled at /metrics", cfg.Metrics)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SYNC_ROW_WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOURCE_KIND", "xlsx")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Sync.RowWorkers != 8 {
		t.Errorf("Sync.RowWorkers = %d, want %d", cfg.Sync.RowWorkers, 8)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Source.Kind != SourceXLSX {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, SourceXLSX)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "postgres://localhost/alttest")
	t.Setenv("SPREADSHEET_ID", "sheet-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}
	if cfg.Source.SpreadsheetID != "sheet-123" {
		t.Errorf("Source.SpreadsheetID = %q, want %q", cfg.Source.SpreadsheetID, "sheet-123")
	}
}

func TestLoad_PostgresWithoutURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("DB_DRIVER", "postgres")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %v, want mention of DATABASE_URL", err)
	}
}

func TestLoad_MemoryDriverNeedsNoURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("DB_DRIVER", "memory")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoad_MissingCredentialsIsNotAnError(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("GOOGLE_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.HasGoogleCredentials() {
		t.Error("HasGoogleCredentials() = true, want false")
	}
}

func TestLoad_Duration(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("SYNC_SCHEDULE_INTERVAL", "1m30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Schedule.Interval != 90*time.Second {
		t.Errorf("Schedule.Interval = %v, want %v", cfg.Schedule.Interval, 90*time.Second)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SYNC_STALE_THRESHOLD", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(expected) {
		t.Fatalf("TrustedProxies length = %d, want %d", len(cfg.Security.TrustedProxies), len(expected))
	}
	for i, v := range expected {
		if cfg.Security.TrustedProxies[i] != v {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], v)
		}
	}
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: DriverPostgres, URL: "postgres://localhost/test", MaxConns: 20, MinConns: 2},
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Source:   SourceConfig{Kind: SourceGoogle, FetchTimeout: time.Minute},
		Sync: SyncConfig{
			RowWorkers: 4, MaxConcurrentRuns: 2, MaxWaitTime: time.Second,
			StaleThreshold: 15 * time.Minute, ValidateSample: 20, RecentRuns: 20,
		},
		Schedule: ScheduleConfig{Mode: "incremental"},
		Rate:     RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Security: SecurityConfig{RoleHeader: "X-User-Role"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "DB_DRIVER"},
		{"min above max", func(c *Config) { c.Database.MinConns = 50 }, "DB_MAX_CONNS"},
		{"unknown source", func(c *Config) { c.Source.Kind = "dropbox" }, "SOURCE_KIND"},
		{"zero row workers", func(c *Config) { c.Sync.RowWorkers = 0 }, "SYNC_ROW_WORKERS"},
		{"bad schedule mode", func(c *Config) { c.Schedule.Mode = "everything" }, "SYNC_SCHEDULE_MODE"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "METRICS_PATH"},
		{"sqlite without path", func(c *Config) {
			c.Database.Driver = DriverSQLite
			c.Database.SQLitePath = ""
		}, "SQLITE_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Sync.RowWorkers = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if got := strings.Count(err.Error(), "\n  - "); got != 3 {
		t.Errorf("Validate() reported %d problems, want 3: %v", got, err)
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = "postgres://user:hunter2@db/prod"
	cfg.Security.CronSecret = "s3cret"
	cfg.Source.CredentialsJSON = `{"private_key":"xyz"}`

	s := cfg.String()
	for _, secret := range []string{"hunter2", "s3cret", "private_key"} {
		if strings.Contains(s, secret) {
			t.Errorf("String() leaks %q: %s", secret, s)
		}
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want masked fields", s)
	}
}

func TestAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"127.0.0.1", 9000, "127.0.0.1:9000"},
	}
	for _, tt := range tests {
		c := ServerConfig{Host: tt.host, Port: tt.port}
		if got := c.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}
