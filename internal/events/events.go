// ABOUTME: Tagged-union notification types emitted to presentation layers
// ABOUTME: Every event implements the sealed Event interface so handlers can switch exhaustively

package events

import (
	"github.com/2389/coven-chat/internal/store"
)

// Name identifies an event kind on the wire and in logs
type Name string

// Event names
const (
	NameUserAppended            Name = "turn:userAppended"
	NameAssistantStarted        Name = "turn:assistantStarted"
	NameAssistantDelta          Name = "turn:assistantDelta"
	NameAssistantCompleted      Name = "turn:assistantCompleted"
	NameAssistantFailed         Name = "turn:assistantFailed"
	NameConversationChanged     Name = "conversation:changed"
	NameConversationListChanged Name = "conversation:listChanged"
)

// Event is implemented only by the types in this package.
type Event interface {
	EventName() Name
	event()
}

// UserAppended is emitted after a user turn is committed.
type UserAppended struct {
	ConversationID string
	Turn           store.Turn
}

// AssistantStarted is emitted when a provisional assistant turn begins.
type AssistantStarted struct {
	ConversationID string
	TurnID         string
}

// AssistantDelta carries one decoded content fragment and the text accumulated so far.
type AssistantDelta struct {
	ConversationID string
	TurnID         string
	Fragment       string
	Cumulative     string
}

// AssistantCompleted is emitted once the assistant turn is committed.
type AssistantCompleted struct {
	ConversationID string
	Turn           store.Turn
}

// AssistantFailed is emitted when a session fails. Turn is the committed
// system-role error turn; Err is the internal cause and is never shown to users.
type AssistantFailed struct {
	ConversationID string
	Turn           store.Turn
	Err            error
}

// ConversationChanged is emitted when the current conversation changes or is mutated.
type ConversationChanged struct {
	Conversation store.Conversation
}

// ConversationListChanged is emitted with fresh recency groups after list mutations.
type ConversationListChanged struct {
	Groups store.Groups
}

func (UserAppended) EventName() Name            { return NameUserAppended }
func (AssistantStarted) EventName() Name        { return NameAssistantStarted }
func (AssistantDelta) EventName() Name          { return NameAssistantDelta }
func (AssistantCompleted) EventName() Name      { return NameAssistantCompleted }
func (AssistantFailed) EventName() Name         { return NameAssistantFailed }
func (ConversationChanged) EventName() Name     { return NameConversationChanged }
func (ConversationListChanged) EventName() Name { return NameConversationListChanged }

func (UserAppended) event()            {}
func (AssistantStarted) event()        {}
func (AssistantDelta) event()          {}
func (AssistantCompleted) event()      {}
func (AssistantFailed) event()         {}
func (ConversationChanged) event()     {}
func (ConversationListChanged) event() {}

// Sink receives events. Implementations must not block for long; the
// emitting goroutine is the one driving the stream.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}

// Recorder is a Sink that keeps every event, used by tests and replay.
type Recorder struct {
	Events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// Names returns the recorded event names in order.
func (r *Recorder) Names() []Name {
	out := make([]Name, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.EventName()
	}
	return out
}
