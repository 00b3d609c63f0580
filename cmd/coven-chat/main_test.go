// ABOUTME: Tests for the coven-chat command helpers and interactive loop
// ABOUTME: Runs the REPL end to end against an httptest assistant with in-memory storage

package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/export"
	"github.com/2389/coven-chat/internal/store"
)

func init() {
	color.NoColor = true
}

func assistantServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"start\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"Hel\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"content\":\"lo\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy","version":"1.2.3","model_status":"ready"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, baseURL, driver, path string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "chat.yaml")
	content := fmt.Sprintf(`
server:
  base_url: %q
storage:
  driver: %q
  path: %q
chat:
  think_delay: "0s"
  duplicate_window: "0s"
logging:
  level: "error"
`, baseURL, driver, path)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

func TestRunChat_EndToEnd(t *testing.T) {
	srv := assistantServer(t)
	dbPath := filepath.Join(t.TempDir(), "chat.db")
	flags := &globalFlags{configPath: writeTestConfig(t, srv.URL, "sqlite", dbPath)}

	in := strings.NewReader("hello there\n/rename Greetings\n/list\n/export\n/quit\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), flags, in, &out))

	text := out.String()
	assert.Contains(t, text, "assistant: Hello")
	assert.Contains(t, text, `Renamed to "Greetings"`)
	assert.Contains(t, text, "Today")
	assert.Contains(t, text, "# Greetings")
	assert.Contains(t, text, "**user**: hello there")
	assert.Contains(t, text, "**assistant**: Hello")
	assert.Contains(t, text, "Goodbye!")

	// State survives the process
	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer st.Close()
	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	conv := snap.Conversations[snap.CurrentConversationID]
	require.NotNil(t, conv)
	assert.Equal(t, "Greetings", conv.Title)
	assert.Len(t, conv.Turns, 2)
}

func TestRunChat_ConversationCommands(t *testing.T) {
	srv := assistantServer(t)
	flags := &globalFlags{configPath: writeTestConfig(t, srv.URL, "memory", "")}

	in := strings.NewReader("first\n/new\nsecond\n/list\n/switch 2\n/delete\n/bogus\n/help\n/clear\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), flags, in, &out))

	text := out.String()
	assert.Contains(t, text, "Started a new conversation")
	assert.Contains(t, text, `Switched to "first" (2 turns)`)
	assert.Contains(t, text, `Deleted conversation; now in "second"`)
	assert.Contains(t, text, "Unknown command /bogus")
	assert.Contains(t, text, "/export [md|html] [path]")
	assert.Contains(t, text, "Cleared all conversations")
}

func TestRunHealth(t *testing.T) {
	srv := assistantServer(t)
	flags := &globalFlags{configPath: writeTestConfig(t, srv.URL, "memory", "")}
	var out bytes.Buffer

	require.NoError(t, runHealth(context.Background(), flags, &out))

	assert.Contains(t, out.String(), "healthy")
	assert.Contains(t, out.String(), "version: 1.2.3")
	assert.Contains(t, out.String(), "model:   ready")
}

func TestRunExport_ToFile(t *testing.T) {
	srv := assistantServer(t)
	dir := t.TempDir()
	flags := &globalFlags{configPath: writeTestConfig(t, srv.URL, "file", filepath.Join(dir, "state.json"))}

	var chatOut bytes.Buffer
	require.NoError(t, runChat(context.Background(), flags, strings.NewReader("hi\n"), &chatOut))

	outPath := filepath.Join(dir, "export.html")
	var out bytes.Buffer
	require.NoError(t, runExport(context.Background(), flags, "", "html", outPath, &out))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>hi</h1>")
	assert.Contains(t, out.String(), "Exported")
}

func TestRunExport_IntoDirectoryUsesDefaultName(t *testing.T) {
	srv := assistantServer(t)
	dir := t.TempDir()
	flags := &globalFlags{configPath: writeTestConfig(t, srv.URL, "file", filepath.Join(dir, "state.json"))}

	var chatOut bytes.Buffer
	require.NoError(t, runChat(context.Background(), flags, strings.NewReader("hi\n"), &chatOut))

	exportDir := filepath.Join(dir, "exports")
	require.NoError(t, os.Mkdir(exportDir, 0o755))

	var out bytes.Buffer
	require.NoError(t, runExport(context.Background(), flags, "", "markdown", exportDir, &out))

	matches, err := filepath.Glob(filepath.Join(exportDir, "chat-*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# hi\n\n**user**: hi"))
	assert.Contains(t, out.String(), matches[0])
}

func TestExportFileName(t *testing.T) {
	conv := store.Conversation{ID: "0123456789abcdef"}
	assert.Equal(t, "chat-01234567.md", exportFileName(conv, export.FormatMarkdown))
	assert.Equal(t, "chat-01234567.html", exportFileName(conv, export.FormatHTML))
}

func TestLoadConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("COVEN_CHAT_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	// An env-provided path counts as a default location
	cfg, err := loadConfig(&globalFlags{server: "http://override:1234"})
	require.NoError(t, err)
	assert.Equal(t, "http://override:1234", cfg.Server.BaseURL)

	_, err = loadConfig(&globalFlags{configPath: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err, "an explicit --config must exist")
}

func TestResolveConversation(t *testing.T) {
	convs := []store.Conversation{
		{ID: "abc123"},
		{ID: "abd456"},
		{ID: "xyz789"},
	}

	tests := []struct {
		arg     string
		want    string
		wantErr string
	}{
		{"1", "abc123", ""},
		{"3", "xyz789", ""},
		{"0", "", "no conversation #0"},
		{"4", "", "no conversation #4"},
		{"xyz789", "xyz789", ""},
		{"abc", "abc123", ""},
		{"ab", "", "ambiguous"},
		{"nope", "", "no conversation matches"},
		{"", "", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := resolveConversation(convs, tt.arg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintGroups(t *testing.T) {
	now := time.Now()
	groups := store.Groups{
		Today:     []store.Conversation{{ID: "11111111-aaaa", Title: "Fresh", UpdatedAt: now, Preview: "latest answer"}},
		Older:     []store.Conversation{{ID: "22222222-bbbb", Title: "Stale", UpdatedAt: now.AddDate(0, 0, -7)}},
		Yesterday: nil,
	}

	var buf bytes.Buffer
	printGroups(&buf, groups, "22222222-bbbb")
	out := buf.String()

	assert.Contains(t, out, "Today")
	assert.NotContains(t, out, "Yesterday")
	assert.Contains(t, out, "   1. Fresh (11111111, 0 turns)")
	assert.Contains(t, out, "latest answer")
	assert.Contains(t, out, "*  2. Stale (22222222, 0 turns)")

	buf.Reset()
	printGroups(&buf, store.Groups{}, "")
	assert.Equal(t, "No conversations\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.With("component", "test").WithGroup("req").Warn("shown", "id", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "req.id=7")

	buf.Reset()
	jsonLogger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	jsonLogger.Debug("structured")
	assert.Contains(t, buf.String(), `"msg":"structured"`)
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
}
