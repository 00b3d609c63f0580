// ABOUTME: Conversation Manager owns the conversation map and the current pointer
// ABOUTME: Every mutation is applied under one lock and written through to the Store

package conversation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-chat/internal/store"
)

// DefaultTitle is the placeholder title of a conversation that has not been named yet
const DefaultTitle = "New chat"

const (
	titleMaxRunes   = 30
	previewMaxRunes = 50
)

// ErrInvalidTurn is returned when a turn has an unknown role
var ErrInvalidTurn = errors.New("invalid turn")

// Manager is the durable mapping from conversation ID to Conversation, with
// exactly one conversation selected as current.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*store.Conversation
	currentID     string

	store  store.Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides how conversation and turn IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Manager backed by st and loads the persisted state.
// Missing or corrupt state is replaced by one fresh conversation; loading never fails.
func New(ctx context.Context, st store.Store, opts ...Option) *Manager {
	m := &Manager{
		conversations: make(map[string]*store.Conversation),
		store:         st,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "conversation")

	m.load(ctx)
	return m
}

// load restores persisted state, discarding it on any failure.
func (m *Manager) load(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Load(ctx)
	switch {
	case err == nil:
		m.conversations = snap.Conversations
		m.currentID = snap.CurrentConversationID
		m.logger.Info("loaded conversations", "count", len(m.conversations))
	case errors.Is(err, store.ErrNotFound):
		m.logger.Debug("no persisted conversations")
	default:
		m.logger.Warn("discarding unreadable persisted state", "error", err)
		m.conversations = make(map[string]*store.Conversation)
		m.currentID = ""
	}

	if len(m.conversations) == 0 {
		m.createLocked(ctx)
		return
	}
	if _, ok := m.conversations[m.currentID]; !ok {
		m.currentID = m.latestLocked().ID
		m.persistLocked(ctx)
	}
}

// Create makes a new conversation with the default title and selects it.
func (m *Manager) Create(ctx context.Context) store.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(ctx).Clone()
}

func (m *Manager) createLocked(ctx context.Context) *store.Conversation {
	now := m.timestamp()
	conv := &store.Conversation{
		ID:        m.newID(),
		Title:     DefaultTitle,
		Turns:     []store.Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[conv.ID] = conv
	m.currentID = conv.ID
	m.persistLocked(ctx)

	m.logger.Debug("created conversation", "id", conv.ID)
	return conv
}

// Current returns the current conversation.
func (m *Manager) Current() store.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversations[m.currentID].Clone()
}

// CurrentID returns the ID of the current conversation.
func (m *Manager) CurrentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

// Get returns a conversation by ID.
// Returns store.ErrNotFound if it doesn't exist.
func (m *Manager) Get(id string) (store.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return store.Conversation{}, store.ErrNotFound
	}
	return conv.Clone(), nil
}

// List returns all conversations, most recently updated first.
func (m *Manager) List() []store.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLocked()
}

// Count returns the number of conversations.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// AppendTurn appends a committed turn to a conversation. It assigns an ID
// and timestamp when missing, bumps UpdatedAt, derives the title from the
// first user turn and the preview from assistant turns.
func (m *Manager) AppendTurn(ctx context.Context, conversationID string, turn store.Turn) (store.Turn, error) {
	if !turn.Role.Valid() {
		return store.Turn{}, fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, turn.Role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return store.Turn{}, store.ErrNotFound
	}

	if turn.ID == "" {
		turn.ID = m.newID()
	}
	updated := m.bumpLocked(conv)
	if turn.Timestamp.IsZero() {
		turn.Timestamp = updated
	}

	if turn.Role == store.RoleUser && conv.Title == DefaultTitle && !hasUserTurn(conv) {
		conv.Title = deriveTitle(turn.Content)
	}
	if turn.Role == store.RoleAssistant {
		conv.Preview = ellipsize(turn.Content, previewMaxRunes)
	}
	conv.Turns = append(conv.Turns, turn)

	m.persistLocked(ctx)
	return turn, nil
}

// Switch selects a conversation as current.
// Returns store.ErrNotFound if it doesn't exist.
func (m *Manager) Switch(ctx context.Context, id string) (store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return store.Conversation{}, store.ErrNotFound
	}
	if m.currentID != id {
		m.currentID = id
		m.persistLocked(ctx)
	}
	return conv.Clone(), nil
}

// Delete removes a conversation. If it was current, the most recently
// updated remaining conversation becomes current, or a fresh one is created.
// Returns false if the conversation doesn't exist.
func (m *Manager) Delete(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return false
	}
	delete(m.conversations, id)

	if m.currentID == id {
		if len(m.conversations) == 0 {
			// createLocked persists
			m.createLocked(ctx)
			return true
		}
		m.currentID = m.latestLocked().ID
	}

	m.persistLocked(ctx)
	m.logger.Debug("deleted conversation", "id", id)
	return true
}

// Rename sets a conversation's title. A blank title falls back to DefaultTitle.
// Returns store.ErrNotFound if it doesn't exist.
func (m *Manager) Rename(ctx context.Context, id, title string) (store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return store.Conversation{}, store.ErrNotFound
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	conv.Title = title
	m.bumpLocked(conv)

	m.persistLocked(ctx)
	return conv.Clone(), nil
}

// ClearAll removes every conversation and creates one fresh current conversation.
func (m *Manager) ClearAll(ctx context.Context) store.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conversations = make(map[string]*store.Conversation)
	m.currentID = ""
	return m.createLocked(ctx).Clone()
}

// GroupByRecency partitions conversations into today, yesterday and older
// using local midnight in now's location. Each group is newest first.
func (m *Manager) GroupByRecency(now time.Time) store.Groups {
	m.mu.RLock()
	defer m.mu.RUnlock()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)

	var groups store.Groups
	for _, conv := range m.sortedLocked() {
		switch {
		case !conv.UpdatedAt.Before(today):
			groups.Today = append(groups.Today, conv)
		case !conv.UpdatedAt.Before(yesterday):
			groups.Yesterday = append(groups.Yesterday, conv)
		default:
			groups.Older = append(groups.Older, conv)
		}
	}
	return groups
}

// Snapshot returns a deep copy of the current state in persisted form.
func (m *Manager) Snapshot() *store.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(true)
}

// bumpLocked advances UpdatedAt, never moving it backwards, and returns the new value.
func (m *Manager) bumpLocked(conv *store.Conversation) time.Time {
	now := m.timestamp()
	if now.Before(conv.UpdatedAt) {
		now = conv.UpdatedAt
	}
	conv.UpdatedAt = now
	return now
}

func (m *Manager) timestamp() time.Time {
	return m.now().UTC()
}

func (m *Manager) latestLocked() *store.Conversation {
	var latest *store.Conversation
	for _, conv := range m.conversations {
		if latest == nil || conv.UpdatedAt.After(latest.UpdatedAt) ||
			(conv.UpdatedAt.Equal(latest.UpdatedAt) && conv.ID > latest.ID) {
			latest = conv
		}
	}
	return latest
}

func (m *Manager) sortedLocked() []store.Conversation {
	out := make([]store.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		out = append(out, conv.Clone())
	}
	slices.SortFunc(out, func(a, b store.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (m *Manager) snapshotLocked(deep bool) *store.Snapshot {
	snap := &store.Snapshot{
		Conversations:         make(map[string]*store.Conversation, len(m.conversations)),
		CurrentConversationID: m.currentID,
	}
	for id, conv := range m.conversations {
		if deep {
			c := conv.Clone()
			snap.Conversations[id] = &c
		} else {
			snap.Conversations[id] = conv
		}
	}
	return snap
}

// persistLocked writes the full state through to the store. Failures are
// logged and absorbed; in-memory state stays authoritative.
func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.store.Save(ctx, m.snapshotLocked(false)); err != nil {
		m.logger.Error("failed to persist conversations", "error", err)
	}
}

func hasUserTurn(conv *store.Conversation) bool {
	for _, t := range conv.Turns {
		if t.Role == store.RoleUser {
			return true
		}
	}
	return false
}

// deriveTitle builds a title from the leading characters of the first user message.
func deriveTitle(content string) string {
	runes := []rune(content)
	title := strings.TrimSpace(string(runes[:min(len(runes), titleMaxRunes)]))
	if len(runes) > titleMaxRunes {
		title += "..."
	}
	if title == "" {
		return DefaultTitle
	}
	return title
}

// ellipsize keeps the first maxRunes characters, adding "..." if truncated.
func ellipsize(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
