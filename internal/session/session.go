// ABOUTME: Stream Session drives one request/response exchange with the assistant service
// ABOUTME: Translates decoded frames into assembler calls and events, resolving to exactly one terminal event

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/2389/coven-chat/internal/assembler"
	"github.com/2389/coven-chat/internal/events"
	"github.com/2389/coven-chat/internal/sse"
	"github.com/2389/coven-chat/internal/store"
)

var (
	// ErrTransport is returned when the stream could not be opened.
	// The underlying *client.TransportError is available through errors.As.
	ErrTransport = errors.New("transport error")

	// ErrProtocol is returned when the service sends an error frame or the
	// stream breaks after it started
	ErrProtocol = errors.New("protocol error")

	// ErrEmptyResponse is returned when the stream ended without any content
	ErrEmptyResponse = errors.New("empty response")

	// ErrInvalidState is returned on a second Open, or when the conversation
	// already has a response in flight
	ErrInvalidState = assembler.ErrInvalidState
)

// State is the lifecycle position of a Session
type State int32

// Session states
const (
	StateIdle State = iota
	StateOpening
	StateStreaming
	StateCompleting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateCompleting:
		return "completing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether s is Completed or Failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Opener opens the response stream for a prompt. *client.Client satisfies it.
type Opener interface {
	OpenStream(ctx context.Context, prompt string) (io.ReadCloser, error)
}

// TurnAssembler is the subset of *assembler.Assembler a session drives.
type TurnAssembler interface {
	Begin(conversationID string) (string, error)
	AppendFragment(turnID, text string) (string, error)
	Commit(ctx context.Context, turnID string) (store.Turn, error)
	CommitAsError(ctx context.Context, turnID, reason string) (store.Turn, error)
	Abandon(turnID string) bool
	Content(turnID string) (string, error)
}

// Session is a single-use exchange: one prompt, one assistant turn.
type Session struct {
	conversationID string
	opener         Opener
	assembler      TurnAssembler
	sink           events.Sink
	logger         *slog.Logger

	state  atomic.Int32
	opened atomic.Bool
	turnID string
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Session that will answer into conversationID.
// A nil sink discards events.
func New(conversationID string, opener Opener, asm TurnAssembler, sink events.Sink, opts ...Option) *Session {
	if sink == nil {
		sink = events.Discard
	}
	s := &Session{
		conversationID: conversationID,
		opener:         opener,
		assembler:      asm,
		sink:           sink,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session", "conversation_id", conversationID)
	return s
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Reserve claims the conversation's provisional slot without opening the
// stream, so callers can reject a concurrent submit before doing any other
// work. It fails with ErrInvalidState when the session was already reserved
// or the conversation has a response in flight. Open uses the reservation;
// Release gives it back if Open will not be called.
func (s *Session) Reserve() (string, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateOpening)) {
		return "", fmt.Errorf("%w: session is %s", ErrInvalidState, s.State())
	}

	turnID, err := s.assembler.Begin(s.conversationID)
	if err != nil {
		s.setState(StateFailed)
		return "", err
	}
	s.turnID = turnID
	return turnID, nil
}

// Release abandons a reservation that was never opened. It emits nothing and
// reports whether a reservation was released.
func (s *Session) Release() bool {
	if s.opened.Load() || !s.state.CompareAndSwap(int32(StateOpening), int32(StateFailed)) {
		return false
	}
	return s.assembler.Abandon(s.turnID)
}

// Open sends prompt and consumes the response until it terminates. It blocks
// on the calling goroutine and processes frames in arrival order.
//
// On success it returns the committed assistant turn. On failure it returns
// the committed system error turn together with an error wrapping
// ErrTransport, ErrProtocol or ErrEmptyResponse. When ctx is done the
// provisional turn is abandoned and the error wraps ctx.Err(). In every one
// of these cases exactly one AssistantCompleted or AssistantFailed event is
// emitted.
//
// Open may be called once, after an optional Reserve. A second call, a
// released reservation, or a conversation that already has a provisional
// turn fails with ErrInvalidState and emits nothing.
func (s *Session) Open(ctx context.Context, prompt string) (store.Turn, error) {
	if !s.opened.CompareAndSwap(false, true) {
		return store.Turn{}, fmt.Errorf("%w: session is %s", ErrInvalidState, s.State())
	}

	switch s.State() {
	case StateIdle:
		// Reserve before touching the network
		if _, err := s.Reserve(); err != nil {
			return store.Turn{}, err
		}
	case StateOpening:
	default:
		return store.Turn{}, fmt.Errorf("%w: session is %s", ErrInvalidState, s.State())
	}
	s.logger.Debug("opening stream", "turn_id", s.turnID)

	body, err := s.opener.OpenStream(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return s.cancel(ctx)
		}
		return s.fail(ctx, fmt.Errorf("%w: %w", ErrTransport, err))
	}
	defer body.Close()

	// Unblock a pending read as soon as the caller gives up
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	s.setState(StateStreaming)
	s.sink.Emit(events.AssistantStarted{ConversationID: s.conversationID, TurnID: s.turnID})

	return s.consume(ctx, sse.NewDecoder(body, s.logger))
}

// TurnID returns the assistant turn ID once the slot has been reserved.
func (s *Session) TurnID() string {
	return s.turnID
}

func (s *Session) consume(ctx context.Context, dec *sse.Decoder) (store.Turn, error) {
	sawContent := false

	for {
		if ctx.Err() != nil {
			return s.cancel(ctx)
		}

		frame, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return s.cancel(ctx)
			}
			return s.fail(ctx, fmt.Errorf("%w: %w", ErrProtocol, err))
		}

		switch frame.Type {
		case sse.FrameContent:
			cumulative, err := s.assembler.AppendFragment(s.turnID, frame.Content)
			if err != nil {
				return s.fail(ctx, err)
			}
			sawContent = true
			s.sink.Emit(events.AssistantDelta{
				ConversationID: s.conversationID,
				TurnID:         s.turnID,
				Fragment:       frame.Content,
				Cumulative:     cumulative,
			})
		case sse.FrameComplete:
			return s.complete(ctx)
		case sse.FrameError:
			return s.fail(ctx, fmt.Errorf("%w: %s", ErrProtocol, frame.Reason))
		case sse.FrameStart:
			s.logger.Debug("stream started")
		}
	}

	if ctx.Err() != nil {
		return s.cancel(ctx)
	}
	if !sawContent {
		return s.fail(ctx, ErrEmptyResponse)
	}
	s.logger.Debug("stream ended without completion frame, committing partial content")
	return s.complete(ctx)
}

func (s *Session) complete(ctx context.Context) (store.Turn, error) {
	s.setState(StateCompleting)

	turn, err := s.assembler.Commit(context.WithoutCancel(ctx), s.turnID)
	if err != nil {
		s.setState(StateFailed)
		s.logger.Error("failed to commit assistant turn", "turn_id", s.turnID, "error", err)
		s.sink.Emit(events.AssistantFailed{ConversationID: s.conversationID, Err: err})
		return store.Turn{}, err
	}

	s.setState(StateCompleted)
	s.sink.Emit(events.AssistantCompleted{ConversationID: s.conversationID, Turn: turn})
	return turn, nil
}

func (s *Session) fail(ctx context.Context, cause error) (store.Turn, error) {
	s.setState(StateFailed)

	turn, err := s.assembler.CommitAsError(context.WithoutCancel(ctx), s.turnID, cause.Error())
	if err != nil {
		s.logger.Error("failed to commit error turn", "turn_id", s.turnID, "error", err)
		cause = errors.Join(cause, err)
	}

	s.sink.Emit(events.AssistantFailed{ConversationID: s.conversationID, Turn: turn, Err: cause})
	return turn, cause
}

// cancel abandons the provisional turn. The failure event carries an
// uncommitted error turn so presentation layers can stop waiting.
func (s *Session) cancel(ctx context.Context) (store.Turn, error) {
	s.setState(StateFailed)
	partial, _ := s.assembler.Content(s.turnID)
	s.assembler.Abandon(s.turnID)

	cause := context.Cause(ctx)
	s.logger.Info("session canceled", "turn_id", s.turnID, "discarded_bytes", len(partial), "cause", cause)

	turn := store.Turn{ID: s.turnID, Role: store.RoleSystem, Content: assembler.ErrorMessage}
	s.sink.Emit(events.AssistantFailed{ConversationID: s.conversationID, Turn: turn, Err: cause})
	return store.Turn{}, fmt.Errorf("session canceled: %w", ctx.Err())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}
