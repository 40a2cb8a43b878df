// Package config handles tablee configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for tablee.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Session settings
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global tablee settings.
type GlobalConfig struct {
	// DataDir is where tablee stores its data (default: ~/.local/share/tablee).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/tablee).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeout is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// SessionConfig contains signed-in session settings.
type SessionConfig struct {
	// File is where the session token is persisted.
	File string `yaml:"file" mapstructure:"file"`

	// SignOutTimeout bounds how long sign-out waits on the auth service
	// before falling back to clearing the session locally.
	SignOutTimeout time.Duration `yaml:"sign_out_timeout" mapstructure:"sign_out_timeout"`

	// LoginLinkTTL is how long a one-time login link stays valid.
	LoginLinkTTL time.Duration `yaml:"login_link_ttl" mapstructure:"login_link_ttl"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows message timestamps in the thread view.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "tablee"),
			ConfigDir: filepath.Join(homeDir, ".config", "tablee"),
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/tablee.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Session: SessionConfig{
			File:           "", // Will be set to DataDir/session.json
			SignOutTimeout: 2 * time.Second,
			LoginLinkTTL:   15 * time.Minute,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
			CompactMode:    false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}

	if c.Session.SignOutTimeout < 100*time.Millisecond {
		return fmt.Errorf("session.sign_out_timeout must be at least 100ms")
	}

	if c.Session.LoginLinkTTL < time.Minute {
		return fmt.Errorf("session.login_link_ttl must be at least 1m")
	}

	switch c.Logging.Format {
	case "", "json", "console":
		// ok
	default:
		return fmt.Errorf("logging.format must be one of json, console")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "tablee.db")
}

// SessionPath returns the full session file path.
func (c *Config) SessionPath() string {
	if c.Session.File != "" {
		return c.Session.File
	}
	return filepath.Join(c.Global.DataDir, "session.json")
}
