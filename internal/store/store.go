// ABOUTME: Conversation and Turn data types plus the Store interface for persistence
// ABOUTME: The whole conversation map is persisted as one keyed snapshot record

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrStorage wraps persisted-state read/write failures.
// Callers in the conversation layer recover from it locally.
var ErrStorage = errors.New("storage error")

// ErrCorrupt is returned by Load when the persisted record exists but cannot be decoded
var ErrCorrupt = errors.New("persisted state is corrupt")

// Role identifies who authored a turn
type Role string

// Role constants
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is one committed message within a conversation
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is an ordered, named collection of turns
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Turns     []Turn    `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Preview   string    `json:"preview,omitempty"`
}

// Clone returns a deep copy so callers never share the turn slice with the store.
func (c *Conversation) Clone() Conversation {
	out := *c
	out.Turns = make([]Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	return out
}

// Groups partitions conversations by how recently they were updated.
// Each slice is ordered most-recently-updated first.
type Groups struct {
	Today     []Conversation
	Yesterday []Conversation
	Older     []Conversation
}

// Snapshot is the full persisted state: the conversation map and the current pointer
type Snapshot struct {
	Conversations         map[string]*Conversation `json:"conversations"`
	CurrentConversationID string                   `json:"current_conversation_id"`
}

// Store persists conversation snapshots. Implementations write the whole
// snapshot on every Save; Load returns ErrNotFound when nothing was saved yet
// and ErrCorrupt when the saved record cannot be decoded.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error

	// Close releases any resources held by the store
	Close() error
}
