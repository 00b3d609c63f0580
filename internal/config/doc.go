// Package config handles configuration loading for coven-chat.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) with
// environment variable expansion. Anything the file omits keeps the value
// from Default, so an empty file is a valid configuration.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	server:
//	  base_url: "${COVEN_CHAT_URL}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	chat:
//	  think_delay: "500ms"
//	  duplicate_window: "2s"
//
// # Configuration Sections
//
// Assistant service:
//
//	server:
//	  base_url: "http://localhost:8000"
//	  stream_path: "/chat/stream"
//	  health_path: "/health"
//	  request_timeout: "30s"      # time to first response byte
//
// Storage:
//
//	storage:
//	  driver: "sqlite"            # sqlite, file, memory
//	  path: "~/.local/share/coven-chat/conversations.db"
//
// Chat pacing:
//
//	chat:
//	  think_delay: "500ms"        # pause between the user turn and the request
//	  duplicate_window: "2s"      # identical submits inside this window are ignored
//
// Logging:
//
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text, json
//
// The same layout in TOML:
//
//	[server]
//	base_url = "http://localhost:8000"
//
//	[chat]
//	think_delay = "250ms"
package config
