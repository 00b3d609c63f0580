// ABOUTME: Configuration loading and parsing for coven-chat
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete coven-chat configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Chat    ChatConfig    `yaml:"chat" toml:"chat"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig describes the assistant service endpoints
type ServerConfig struct {
	BaseURL    string `yaml:"base_url" toml:"base_url"`
	StreamPath string `yaml:"stream_path" toml:"stream_path"`
	HealthPath string `yaml:"health_path" toml:"health_path"`

	// RequestTimeout bounds how long to wait for response headers; the
	// body may keep streaming afterwards
	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// StorageConfig selects where conversations are persisted
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // sqlite, file or memory
	Path   string `yaml:"path" toml:"path"`
}

// ChatConfig holds chat pacing configuration
type ChatConfig struct {
	ThinkDelay      time.Duration `yaml:"-" toml:"-"`
	DuplicateWindow time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ThinkDelayRaw      string `yaml:"think_delay" toml:"think_delay"`
	DuplicateWindowRaw string `yaml:"duplicate_window" toml:"duplicate_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8000",
			StreamPath:     "/chat/stream",
			HealthPath:     "/health",
			RequestTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   DefaultStoragePath(),
		},
		Chat: ChatConfig{
			ThinkDelay:      500 * time.Millisecond,
			DuplicateWindow: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultStoragePath returns ~/.local/share/coven-chat/conversations.db,
// falling back to the working directory when no home is known.
func DefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "conversations.db"
	}
	return filepath.Join(home, ".local", "share", "coven-chat", "conversations.db")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https scheme")
	}

	for name, p := range map[string]string{
		"server.stream_path": c.Server.StreamPath,
		"server.health_path": c.Server.HealthPath,
	} {
		if p != "" && !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
	}

	switch c.Storage.Driver {
	case "", "sqlite", "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite, file or memory, got %q", c.Storage.Driver)
	}

	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative")
	}
	if c.Chat.ThinkDelay < 0 {
		return fmt.Errorf("chat.think_delay must not be negative")
	}
	if c.Chat.DuplicateWindow < 0 {
		return fmt.Errorf("chat.duplicate_window must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"request_timeout", cfg.Server.RequestTimeoutRaw, &cfg.Server.RequestTimeout},
		{"think_delay", cfg.Chat.ThinkDelayRaw, &cfg.Chat.ThinkDelay},
		{"duplicate_window", cfg.Chat.DuplicateWindowRaw, &cfg.Chat.DuplicateWindow},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
