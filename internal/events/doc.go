// Package events defines the notifications the chat core emits to
// presentation layers, and a broadcaster to fan them out.
//
// # Event Types
//
// Each notification is its own struct implementing the sealed Event
// interface, so a renderer can switch over them:
//
//	switch e := ev.(type) {
//	case events.AssistantDelta:
//		fmt.Print(e.Fragment)
//	case events.AssistantCompleted:
//		fmt.Println()
//	case events.AssistantFailed:
//		fmt.Println(e.Turn.Content)
//	}
//
// The full surface is:
//
//   - UserAppended: turn:userAppended
//   - AssistantStarted: turn:assistantStarted
//   - AssistantDelta: turn:assistantDelta
//   - AssistantCompleted: turn:assistantCompleted
//   - AssistantFailed: turn:assistantFailed
//   - ConversationChanged: conversation:changed
//   - ConversationListChanged: conversation:listChanged
//
// # Sinks
//
// Core components take a Sink and call Emit synchronously. Broadcaster is a
// Sink that republishes to buffered subscriber channels; Recorder keeps
// events in memory for tests.
package events
