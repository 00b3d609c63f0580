// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, durations and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  base_url: "https://assistant.example.com"
  stream_path: "/v2/chat/stream"
  health_path: "/v2/health"
  request_timeout: "10s"

storage:
  driver: "file"
  path: "/tmp/coven-chat/state.json"

chat:
  think_delay: "250ms"
  duplicate_window: "5s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.BaseURL != "https://assistant.example.com" {
		t.Errorf("Server.BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.StreamPath != "/v2/chat/stream" {
		t.Errorf("Server.StreamPath = %q", cfg.Server.StreamPath)
	}
	if cfg.Server.HealthPath != "/v2/health" {
		t.Errorf("Server.HealthPath = %q", cfg.Server.HealthPath)
	}
	if cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 10s", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.Driver != "file" || cfg.Storage.Path != "/tmp/coven-chat/state.json" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Chat.ThinkDelay != 250*time.Millisecond {
		t.Errorf("Chat.ThinkDelay = %v, want 250ms", cfg.Chat.ThinkDelay)
	}
	if cfg.Chat.DuplicateWindow != 5*time.Second {
		t.Errorf("Chat.DuplicateWindow = %v, want 5s", cfg.Chat.DuplicateWindow)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
base_url = "http://127.0.0.1:9000"
request_timeout = "1m"

[storage]
driver = "memory"

[chat]
think_delay = "0s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.BaseURL != "http://127.0.0.1:9000" {
		t.Errorf("Server.BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Server.RequestTimeout != time.Minute {
		t.Errorf("Server.RequestTimeout = %v, want 1m", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Storage.Driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Chat.ThinkDelay != 0 {
		t.Errorf("Chat.ThinkDelay = %v, want 0", cfg.Chat.ThinkDelay)
	}
	// Untouched sections keep defaults
	if cfg.Server.StreamPath != "/chat/stream" {
		t.Errorf("Server.StreamPath = %q, want default", cfg.Server.StreamPath)
	}
	if cfg.Chat.DuplicateWindow != 2*time.Second {
		t.Errorf("Chat.DuplicateWindow = %v, want default 2s", cfg.Chat.DuplicateWindow)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Server != want.Server {
		t.Errorf("Server = %+v, want %+v", cfg.Server, want.Server)
	}
	if cfg.Chat != want.Chat {
		t.Errorf("Chat = %+v, want %+v", cfg.Chat, want.Chat)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_COVEN_CHAT_URL", "https://from-env.example.com")
	t.Setenv("TEST_COVEN_CHAT_DB", "/var/lib/coven-chat/env.db")

	path := writeConfig(t, "config.yaml", `
server:
  base_url: "${TEST_COVEN_CHAT_URL}"
storage:
  path: "${TEST_COVEN_CHAT_DB}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.BaseURL != "https://from-env.example.com" {
		t.Errorf("Server.BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Storage.Path != "/var/lib/coven-chat/env.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
}

func TestLoad_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, "config.yaml", `
storage:
  path: "~/chats/state.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(home, "chats", "state.db"); cfg.Storage.Path != want {
		t.Errorf("Storage.Path = %q, want %q", cfg.Storage.Path, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			file:    "config.yaml",
			content: "server: [unclosed",
			wantErr: "parsing config file",
		},
		{
			name:    "invalid toml",
			file:    "config.toml",
			content: "[server\nbase_url = 1",
			wantErr: "parsing config file",
		},
		{
			name:    "bad duration",
			file:    "config.yaml",
			content: "chat:\n  think_delay: \"soon\"\n",
			wantErr: "think_delay",
		},
		{
			name:    "missing base url",
			file:    "config.yaml",
			content: "server:\n  base_url: \"\"\n",
			wantErr: "server.base_url is required",
		},
		{
			name:    "unsupported scheme",
			file:    "config.yaml",
			content: "server:\n  base_url: \"ftp://example.com\"\n",
			wantErr: "http or https",
		},
		{
			name:    "relative stream path",
			file:    "config.yaml",
			content: "server:\n  stream_path: \"chat/stream\"\n",
			wantErr: "server.stream_path must start with /",
		},
		{
			name:    "unknown driver",
			file:    "config.yaml",
			content: "storage:\n  driver: \"postgres\"\n",
			wantErr: "storage.driver",
		},
		{
			name:    "negative window",
			file:    "config.yaml",
			content: "chat:\n  duplicate_window: \"-1s\"\n",
			wantErr: "chat.duplicate_window must not be negative",
		},
		{
			name:    "unknown log format",
			file:    "config.yaml",
			content: "logging:\n  format: \"xml\"\n",
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v, want reading config file", err)
	}
}

func TestValidate_MemoryDriverNeedsNoPath(t *testing.T) {
	cfg := Default()
	cfg.Storage = StorageConfig{Driver: "memory"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	cfg.Storage = StorageConfig{Driver: "sqlite"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for sqlite without path")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_A", "alpha")

	got := expandEnvVars("a=${TEST_EXPAND_A} b=${TEST_EXPAND_UNSET_B}")
	if got != "a=alpha b=" {
		t.Errorf("expandEnvVars() = %q", got)
	}
}
