package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.BusyTimeoutMs != 5000 {
		t.Errorf("BusyTimeoutMs = %d, want 5000", cfg.Database.BusyTimeoutMs)
	}
	if cfg.Session.SignOutTimeout != 2*time.Second {
		t.Errorf("SignOutTimeout = %v, want 2s", cfg.Session.SignOutTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "negative busy timeout",
			mutate:  func(c *Config) { c.Database.BusyTimeoutMs = -1 },
			wantErr: true,
		},
		{
			name:    "sign out timeout too small",
			mutate:  func(c *Config) { c.Session.SignOutTimeout = 10 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "login link ttl too small",
			mutate:  func(c *Config) { c.Session.LoginLinkTTL = time.Second },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabasePathDefaultsToDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/tmp/tablee-test"
	cfg.Database.Path = ""

	want := filepath.Join("/tmp/tablee-test", "tablee.db")
	if got := cfg.DatabasePath(); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}

	cfg.Database.Path = "/elsewhere/db.sqlite"
	if got := cfg.DatabasePath(); got != "/elsewhere/db.sqlite" {
		t.Errorf("DatabasePath() = %q, want explicit path", got)
	}
}

func TestSessionPathDefaultsToDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/tmp/tablee-test"
	cfg.Session.File = ""

	want := filepath.Join("/tmp/tablee-test", "session.json")
	if got := cfg.SessionPath(); got != want {
		t.Errorf("SessionPath() = %q, want %q", got, want)
	}
}

func TestLoaderEnvOverride(t *testing.T) {
	t.Setenv("TABLEE_DATABASE_PATH", "/override/tablee.db")
	t.Setenv("TABLEE_LOGGING_LEVEL", "debug")

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}

	if cfg.Database.Path != "/override/tablee.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}
