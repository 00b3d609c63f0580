// Package conversation manages the set of conversations and which one is current.
//
// # Overview
//
// Manager is the single owner of conversation state. It is created from a
// store.Store and writes the whole state through to it on every mutation:
//
//	mgr := conversation.New(ctx, st, conversation.WithLogger(logger))
//	conv := mgr.Current()
//	turn, err := mgr.AppendTurn(ctx, conv.ID, store.Turn{Role: store.RoleUser, Content: "hi"})
//
// # Invariants
//
//   - There is always at least one conversation and exactly one is current.
//   - Turns are append-only; committed turns are never modified.
//   - UpdatedAt never moves backwards and is bumped by appends and renames.
//   - The title is derived once, from the first user turn, while the title is
//     still DefaultTitle (first 30 characters, "..." when longer).
//   - The preview follows the latest assistant turn (first 50 characters).
//   - Deleting the current conversation selects the most recently updated
//     remaining one, or creates a fresh conversation when none remain.
//
// # Failure Handling
//
// A missing, unreadable or corrupt persisted record is discarded at load and
// replaced by one fresh conversation. Save failures are logged and absorbed:
// callers never see storage errors.
//
// # Grouping and Export
//
// GroupByRecency partitions conversations into today, yesterday and older
// against local midnight. ExportMarkdown renders one conversation as Markdown.
package conversation
