package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace" toml:"workspace"`
	Terminal  TerminalConfig  `yaml:"terminal" toml:"terminal"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host            string   `envconfig:"HOST" yaml:"host" toml:"host"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" yaml:"allowed_origins" toml:"allowed_origins"`
}

// WorkspaceConfig locates the sandboxed project tree and the frontend assets.
type WorkspaceConfig struct {
	Root      string `envconfig:"WORKSPACE_ROOT" yaml:"root" toml:"root"`
	PublicDir string `envconfig:"PUBLIC_DIR" yaml:"public_dir" toml:"public_dir"`
}

// TerminalConfig holds terminal session configuration.
type TerminalConfig struct {
	Shell        string   `envconfig:"TERMINAL_SHELL" yaml:"shell" toml:"shell"`
	MaxSessions  int      `envconfig:"TERMINAL_MAX_SESSIONS" yaml:"max_sessions" toml:"max_sessions"`
	CloseGrace   Duration `envconfig:"TERMINAL_CLOSE_GRACE" yaml:"close_grace" toml:"close_grace"`
	PingInterval Duration `envconfig:"TERMINAL_PING_INTERVAL" yaml:"ping_interval" toml:"ping_interval"`
	WriteTimeout Duration `envconfig:"TERMINAL_WRITE_TIMEOUT" yaml:"write_timeout" toml:"write_timeout"`
}

// WatchConfig controls workspace change notifications.
type WatchConfig struct {
	Enabled  bool     `envconfig:"WATCH_ENABLED" yaml:"enabled" toml:"enabled"`
	Debounce Duration `envconfig:"WATCH_DEBOUNCE" yaml:"debounce" toml:"debounce"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration that decodes from strings such as "250ms" in
// environment variables, YAML and TOML alike.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds the configuration from defaults, then an optional config file,
// then environment variables. Later sources win.
func Load(file string) (*Config, error) {
	cfg := Default()

	if file == "" {
		file = os.Getenv("CONFIG_FILE")
	}
	if file != "" {
		if err := LoadFile(file, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: Duration{10 * time.Second},
			AllowedOrigins:  []string{"*"},
		},
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		Terminal: TerminalConfig{
			MaxSessions:  32,
			CloseGrace:   Duration{2 * time.Second},
			PingInterval: Duration{30 * time.Second},
			WriteTimeout: Duration{10 * time.Second},
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: Duration{250 * time.Millisecond},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Workspace.Root == "" {
		errs = append(errs, errors.New("workspace root is required"))
	}
	if c.Terminal.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("terminal max sessions must be >= 0, got %d", c.Terminal.MaxSessions))
	}
	if c.Terminal.PingInterval.Duration <= 0 {
		errs = append(errs, errors.New("terminal ping interval must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate limit rps must be positive when enabled"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// PublicPath returns the static asset directory, defaulting to <root>/public.
func (w WorkspaceConfig) PublicPath() string {
	if w.PublicDir != "" {
		return w.PublicDir
	}
	return filepath.Join(w.Root, "public")
}
