// Package config loads sessionguard settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/sessionguard/pkg/inactivity"
	"github.com/Veraticus/sessionguard/pkg/refresh"
)

// Config holds all configuration for sessionguard
type Config struct {
	Notifications NotificationsConfig `yaml:"notifications"`
	Display       DisplayConfig       `yaml:"display"`
	Security      SecurityConfig      `yaml:"security"`
	API           APIConfig           `yaml:"api"`
	Log           LogConfig           `yaml:"log"`
	Control       ControlConfig       `yaml:"control"`

	// Behavior flags
	Quiet bool `yaml:"quiet" env:"SESSIONGUARD_QUIET"`

	// Wrapped admin client
	Command string   `yaml:"command" env:"SESSIONGUARD_COMMAND"`
	Args    []string `yaml:"args" env:"SESSIONGUARD_ARGS"`
}

// NotificationsConfig controls outbound notifications.
type NotificationsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	NtfyTopic  string `yaml:"ntfy_topic" env:"SESSIONGUARD_TOPIC"`
	NtfyServer string `yaml:"ntfy_server" env:"SESSIONGUARD_SERVER"`
	Icon       string `yaml:"icon"`
}

// DisplayConfig controls the refresh poller and status line.
type DisplayConfig struct {
	AutoRefresh     bool `yaml:"auto_refresh"`
	RefreshInterval int  `yaml:"refresh_interval" env:"SESSIONGUARD_REFRESH_INTERVAL"`
	StatusLine      bool `yaml:"status_line"`
}

// SecurityConfig holds the inactivity thresholds. Timeouts are in minutes.
type SecurityConfig struct {
	AutoLock              bool   `yaml:"auto_lock" env:"SESSIONGUARD_AUTO_LOCK"`
	LockTimeout           int    `yaml:"lock_timeout" env:"SESSIONGUARD_LOCK_TIMEOUT"`
	SessionTimeoutEnabled bool   `yaml:"session_timeout_enabled"`
	SessionTimeout        int    `yaml:"session_timeout" env:"SESSIONGUARD_SESSION_TIMEOUT"`
	LockCommand           string `yaml:"lock_command"`
}

// APIConfig points at the admin backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"SESSIONGUARD_API_URL"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token" env:"SESSIONGUARD_API_TOKEN"`
}

// LogConfig controls the log file and its rotation.
type LogConfig struct {
	File       string `yaml:"file" env:"SESSIONGUARD_LOG_FILE"`
	Level      string `yaml:"level" env:"SESSIONGUARD_LOG_LEVEL"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ControlConfig configures the local control API. An empty address
// disables it.
type ControlConfig struct {
	Listen string `yaml:"listen" env:"SESSIONGUARD_CONTROL_LISTEN"`
}

// Log rotation defaults, shared with the logging package.
const (
	DefaultLogMaxSizeMB  = 10 // MB
	DefaultLogMaxBackups = 3  // number of backup files
	DefaultLogMaxAgeDays = 28 // days
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Notifications: NotificationsConfig{
			Enabled:    true,
			NtfyServer: "https://ntfy.sh",
		},
		Display: DisplayConfig{
			AutoRefresh:     true,
			RefreshInterval: 60,
			StatusLine:      true,
		},
		Security: SecurityConfig{
			AutoLock:              false,
			LockTimeout:           30,
			SessionTimeoutEnabled: true,
			SessionTimeout:        1440,
		},
		API: APIConfig{
			BaseURL: "http://localhost:3000",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}

// InactivitySettings converts the security section for the inactivity
// monitor.
func (c *Config) InactivitySettings() inactivity.Settings {
	return inactivity.Settings{
		AutoLockEnabled:       c.Security.AutoLock,
		LockTimeoutMinutes:    c.Security.LockTimeout,
		SessionTimeoutEnabled: c.Security.SessionTimeoutEnabled,
		SessionTimeoutMinutes: c.Security.SessionTimeout,
	}
}

// RefreshSettings converts the display section for the refresh poller.
func (c *Config) RefreshSettings() refresh.Settings {
	return refresh.Settings{
		Enabled:         c.Display.AutoRefresh,
		IntervalSeconds: c.Display.RefreshInterval,
	}
}

// Load loads configuration from the default path and environment
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads configuration from path, which may not exist, and applies
// environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the config file path
func Path() string {
	// Check for explicit config path
	if path := os.Getenv("SESSIONGUARD_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sessionguard", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "sessionguard", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("SESSIONGUARD_TOPIC", &cfg.Notifications.NtfyTopic)
	setString("SESSIONGUARD_SERVER", &cfg.Notifications.NtfyServer)
	setString("SESSIONGUARD_API_URL", &cfg.API.BaseURL)
	setString("SESSIONGUARD_API_TOKEN", &cfg.API.Token)
	setString("SESSIONGUARD_COMMAND", &cfg.Command)
	setString("SESSIONGUARD_LOG_FILE", &cfg.Log.File)
	setString("SESSIONGUARD_LOG_LEVEL", &cfg.Log.Level)
	setString("SESSIONGUARD_CONTROL_LISTEN", &cfg.Control.Listen)

	if args := os.Getenv("SESSIONGUARD_ARGS"); args != "" {
		cfg.Args = nil
		for _, arg := range strings.Split(args, ",") {
			if arg = strings.TrimSpace(arg); arg != "" {
				cfg.Args = append(cfg.Args, arg)
			}
		}
	}

	if err := parseBool("SESSIONGUARD_QUIET", &cfg.Quiet); err != nil {
		return err
	}
	if err := parseBool("SESSIONGUARD_AUTO_LOCK", &cfg.Security.AutoLock); err != nil {
		return err
	}
	if err := parseInt("SESSIONGUARD_LOCK_TIMEOUT", &cfg.Security.LockTimeout); err != nil {
		return err
	}
	if err := parseInt("SESSIONGUARD_SESSION_TIMEOUT", &cfg.Security.SessionTimeout); err != nil {
		return err
	}
	if err := parseInt("SESSIONGUARD_REFRESH_INTERVAL", &cfg.Display.RefreshInterval); err != nil {
		return err
	}

	return nil
}

func parseBool(key string, dst *bool) error {
	v := os.Getenv(key)
	switch v {
	case "":
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		return fmt.Errorf("invalid %s value: %q (use true/false)", key, v)
	}
	return nil
}

func parseInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Notifications.Enabled && cfg.Notifications.NtfyTopic == "" && !cfg.Quiet {
		return fmt.Errorf("notifications.ntfy_topic is required when not in quiet mode")
	}

	// Zero thresholds are legal and leave the feature effectively off.
	if cfg.Security.LockTimeout < 0 {
		return fmt.Errorf("security.lock_timeout must be non-negative")
	}

	if cfg.Security.SessionTimeout < 0 {
		return fmt.Errorf("security.session_timeout must be non-negative")
	}

	if cfg.Display.RefreshInterval < 0 {
		return fmt.Errorf("display.refresh_interval must be non-negative")
	}

	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be non-negative")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}

	return nil
}
