// Package chat wires the conversation manager, turn assembler and stream
// sessions into the operations a presentation layer calls.
//
// # Sending
//
// Send trims the prompt, rejects blank and duplicate submits, appends the
// user turn, waits the configured think delay and then runs one
// session.Session against the current conversation. Every event the session
// produces reaches the Service's sink, followed by conversation:changed and
// conversation:listChanged.
//
// # Managing Conversations
//
// NewConversation, Switch, Delete, Rename and ClearAll delegate to the
// conversation.Manager and publish the resulting state.
package chat
