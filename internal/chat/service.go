// ABOUTME: Chat service orchestrates user submits and conversation management
// ABOUTME: Appends user turns, runs one stream session per submit and emits list/conversation events

package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/assembler"
	"github.com/2389/coven-chat/internal/conversation"
	"github.com/2389/coven-chat/internal/dedupe"
	"github.com/2389/coven-chat/internal/events"
	"github.com/2389/coven-chat/internal/session"
	"github.com/2389/coven-chat/internal/store"
)

var (
	// ErrEmptyPrompt is returned when the submitted text is blank
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrDuplicate is returned when the same prompt was just submitted to the same conversation
	ErrDuplicate = errors.New("duplicate submit")
)

// Status summarizes the chat state for status lines
type Status struct {
	ConversationID string
	Title          string
	Turns          int
	Conversations  int
	Responding     bool
}

// Service is the entry point presentation layers drive.
type Service struct {
	conversations *conversation.Manager
	assembler     *assembler.Assembler
	opener        session.Opener
	sink          events.Sink
	guard         *dedupe.Guard

	thinkDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithThinkDelay sets the pause between appending the user turn and opening the stream.
func WithThinkDelay(d time.Duration) Option {
	return func(s *Service) { s.thinkDelay = d }
}

// WithGuard enables duplicate submit protection.
func WithGuard(g *dedupe.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// WithClock overrides the clock used for recency grouping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a chat service. A nil sink discards events.
func NewService(conversations *conversation.Manager, opener session.Opener, sink events.Sink, opts ...Option) *Service {
	if sink == nil {
		sink = events.Discard
	}
	s := &Service{
		conversations: conversations,
		opener:        opener,
		sink:          sink,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat")
	s.assembler = assembler.New(conversations, assembler.WithLogger(s.logger))
	return s
}

// Conversations returns the underlying conversation manager.
func (s *Service) Conversations() *conversation.Manager {
	return s.conversations
}

// Send submits prompt to the current conversation and blocks until the
// assistant's response has been committed or has failed.
//
// Blank prompts return ErrEmptyPrompt and repeated prompts inside the
// duplicate window return ErrDuplicate; neither has side effects. If the
// conversation is still waiting on an earlier response, including one that
// is still inside its think delay, Send returns session.ErrInvalidState
// before appending anything.
func (s *Service) Send(ctx context.Context, prompt string) (store.Turn, error) {
	text := strings.TrimSpace(prompt)
	if text == "" {
		return store.Turn{}, ErrEmptyPrompt
	}

	convID := s.conversations.CurrentID()
	sess := session.New(convID, s.opener, s.assembler, s.sink, session.WithLogger(s.logger))

	// Claim the response slot first so a concurrent submit fails before it
	// appends anything
	if _, err := sess.Reserve(); err != nil {
		return store.Turn{}, err
	}
	if s.guard != nil && !s.guard.Allow(convID, text) {
		sess.Release()
		s.logger.Debug("ignoring duplicate submit", "conversation_id", convID)
		return store.Turn{}, ErrDuplicate
	}

	userTurn, err := s.conversations.AppendTurn(ctx, convID, store.Turn{Role: store.RoleUser, Content: text})
	if err != nil {
		sess.Release()
		return store.Turn{}, err
	}
	s.sink.Emit(events.UserAppended{ConversationID: convID, Turn: userTurn})
	s.emitConversation(convID)

	if err := s.think(ctx); err != nil {
		sess.Release()
		s.logger.Debug("submit canceled before opening stream", "turn_id", sess.TurnID(), "error", err)
		return store.Turn{}, err
	}

	turn, err := sess.Open(ctx, text)
	if errors.Is(err, session.ErrTransport) && s.guard != nil {
		// The prompt never reached the service, so an immediate retry is fine
		s.guard.Forget(convID, text)
	}

	s.emitConversation(convID)
	return turn, err
}

// think waits out the configured delay unless ctx ends first.
func (s *Service) think(ctx context.Context) error {
	if s.thinkDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.thinkDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewConversation creates and selects a fresh conversation.
func (s *Service) NewConversation(ctx context.Context) store.Conversation {
	conv := s.conversations.Create(ctx)
	s.emitCurrent()
	return conv
}

// Switch selects a conversation by ID.
func (s *Service) Switch(ctx context.Context, id string) (store.Conversation, error) {
	conv, err := s.conversations.Switch(ctx, id)
	if err != nil {
		return store.Conversation{}, err
	}
	s.emitCurrent()
	return conv, nil
}

// Delete removes a conversation, returning false if it doesn't exist.
func (s *Service) Delete(ctx context.Context, id string) bool {
	if !s.conversations.Delete(ctx, id) {
		return false
	}
	s.emitCurrent()
	return true
}

// Rename retitles a conversation.
func (s *Service) Rename(ctx context.Context, id, title string) (store.Conversation, error) {
	conv, err := s.conversations.Rename(ctx, id, title)
	if err != nil {
		return store.Conversation{}, err
	}
	s.emitConversation(id)
	return conv, nil
}

// ClearAll removes every conversation and starts a fresh one.
func (s *Service) ClearAll(ctx context.Context) store.Conversation {
	conv := s.conversations.ClearAll(ctx)
	s.emitCurrent()
	return conv
}

// Groups returns the conversation list grouped by recency.
func (s *Service) Groups() store.Groups {
	return s.conversations.GroupByRecency(s.now())
}

// Status reports the current conversation and whether a response is in flight.
func (s *Service) Status() Status {
	cur := s.conversations.Current()
	return Status{
		ConversationID: cur.ID,
		Title:          cur.Title,
		Turns:          len(cur.Turns),
		Conversations:  s.conversations.Count(),
		Responding:     s.assembler.Pending(cur.ID),
	}
}

func (s *Service) emitCurrent() {
	s.emitConversation(s.conversations.CurrentID())
}

// emitConversation publishes the conversation if it is current, then the list.
func (s *Service) emitConversation(id string) {
	if conv, err := s.conversations.Get(id); err == nil && id == s.conversations.CurrentID() {
		s.sink.Emit(events.ConversationChanged{Conversation: conv})
	}
	s.sink.Emit(events.ConversationListChanged{Groups: s.Groups()})
}
