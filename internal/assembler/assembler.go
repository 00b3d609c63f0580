// ABOUTME: Turn Assembler owns provisional assistant turns while a response streams
// ABOUTME: Enforces at most one provisional turn per conversation and commits through a TurnAppender

package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-chat/internal/store"
)

// ErrorMessage is the fixed user-facing text of a failed assistant turn.
const ErrorMessage = "Sorry, something went wrong while getting a response. Please try again."

var (
	// ErrInvalidState is returned when a conversation already has a provisional turn
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownTurn is returned for turn IDs that are not provisional
	ErrUnknownTurn = errors.New("unknown provisional turn")
)

// TurnAppender commits turns into durable conversation state.
// *conversation.Manager satisfies it.
type TurnAppender interface {
	AppendTurn(ctx context.Context, conversationID string, turn store.Turn) (store.Turn, error)
}

type provisional struct {
	id             string
	conversationID string
	content        strings.Builder
}

// Assembler tracks provisional assistant turns keyed by turn ID.
type Assembler struct {
	mu     sync.Mutex
	turns  map[string]*provisional
	byConv map[string]string // conversation ID -> provisional turn ID

	appender TurnAppender
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// Option configures an Assembler
type Option func(*Assembler)

// WithClock overrides the time source used for commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithIDGenerator overrides how provisional turn IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(a *Assembler) { a.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Assembler that commits turns through appender.
func New(appender TurnAppender, opts ...Option) *Assembler {
	a := &Assembler{
		turns:    make(map[string]*provisional),
		byConv:   make(map[string]string),
		appender: appender,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "assembler")
	return a
}

// Begin opens a provisional assistant turn for a conversation and returns its ID.
// Returns ErrInvalidState if the conversation already has one.
func (a *Assembler) Begin(conversationID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.byConv[conversationID]; ok {
		return "", fmt.Errorf("%w: conversation %s already has provisional turn %s", ErrInvalidState, conversationID, existing)
	}

	p := &provisional{id: a.newID(), conversationID: conversationID}
	a.turns[p.id] = p
	a.byConv[conversationID] = p.id

	a.logger.Debug("began provisional turn", "conversation_id", conversationID, "turn_id", p.id)
	return p.id, nil
}

// AppendFragment concatenates text onto a provisional turn and returns the
// content accumulated so far.
func (a *Assembler) AppendFragment(turnID, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.turns[turnID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTurn, turnID)
	}
	p.content.WriteString(text)
	return p.content.String(), nil
}

// Content returns the text accumulated so far for a provisional turn.
func (a *Assembler) Content(turnID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.turns[turnID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTurn, turnID)
	}
	return p.content.String(), nil
}

// Commit freezes a provisional turn as an assistant turn and appends it.
// The slot is released even if the append fails.
func (a *Assembler) Commit(ctx context.Context, turnID string) (store.Turn, error) {
	p, err := a.release(turnID)
	if err != nil {
		return store.Turn{}, err
	}

	return a.append(ctx, p.conversationID, store.Turn{
		ID:        p.id,
		Role:      store.RoleAssistant,
		Content:   p.content.String(),
		Timestamp: a.now().UTC(),
	})
}

// CommitAsError discards the accumulated content and appends a system turn
// carrying ErrorMessage instead. reason is logged, never shown.
func (a *Assembler) CommitAsError(ctx context.Context, turnID, reason string) (store.Turn, error) {
	p, err := a.release(turnID)
	if err != nil {
		return store.Turn{}, err
	}

	a.logger.Warn("assistant turn failed",
		"conversation_id", p.conversationID,
		"turn_id", p.id,
		"reason", reason,
		"discarded_bytes", p.content.Len(),
	)

	return a.append(ctx, p.conversationID, store.Turn{
		ID:        p.id,
		Role:      store.RoleSystem,
		Content:   ErrorMessage,
		Timestamp: a.now().UTC(),
	})
}

// Abandon releases a provisional turn without appending anything.
// Returns false if the turn was not provisional.
func (a *Assembler) Abandon(turnID string) bool {
	p, err := a.release(turnID)
	if err != nil {
		return false
	}
	a.logger.Debug("abandoned provisional turn", "conversation_id", p.conversationID, "turn_id", p.id)
	return true
}

// Pending reports whether a conversation has a provisional turn.
func (a *Assembler) Pending(conversationID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.byConv[conversationID]
	return ok
}

func (a *Assembler) release(turnID string) (*provisional, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.turns[turnID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTurn, turnID)
	}
	delete(a.turns, turnID)
	delete(a.byConv, p.conversationID)
	return p, nil
}

func (a *Assembler) append(ctx context.Context, conversationID string, turn store.Turn) (store.Turn, error) {
	committed, err := a.appender.AppendTurn(ctx, conversationID, turn)
	if err != nil {
		return store.Turn{}, fmt.Errorf("committing turn %s: %w", turn.ID, err)
	}
	return committed, nil
}
