// Package store provides persistence for conversations.
//
// # Data Models
//
//   - Conversation: ordered, named collection of turns with recency metadata
//   - Turn: one committed user, assistant or system message
//   - Snapshot: the full conversation map plus the current-conversation pointer
//   - Groups: conversations partitioned into today, yesterday and older
//
// # Persisted Layout
//
// The whole Snapshot is stored as a single keyed record (SnapshotKey) holding
// JSON text. Timestamps are RFC 3339:
//
//	{
//	  "conversations": {"<id>": {"id": "...", "title": "...", "messages": [...]}},
//	  "current_conversation_id": "<id>"
//	}
//
// # Backends
//
//   - SQLiteStore: kv_records table in a SQLite database (modernc.org/sqlite)
//   - FileStore: one JSON file, replaced atomically on each save
//   - MockStore: in-memory, used by tests and the "memory" driver
//
// Use Open(driver, path) to construct one from configuration.
//
// # Error Handling
//
//   - ErrNotFound: nothing has been persisted yet
//   - ErrCorrupt: the persisted record exists but cannot be decoded
//   - ErrStorage: the backend failed to read or write
//
// The conversation layer treats ErrCorrupt and ErrStorage on load as a reason
// to start fresh; it never surfaces them to the user.
package store
