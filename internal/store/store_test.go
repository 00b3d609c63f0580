// ABOUTME: Tests shared by every Store backend
// ABOUTME: Covers snapshot round-trips, not-found and corruption handling

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	created := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)
	return &Snapshot{
		Conversations: map[string]*Conversation{
			"conv-1": {
				ID:    "conv-1",
				Title: "How do goroutines...",
				Turns: []Turn{
					{ID: "t1", Role: RoleUser, Content: "How do goroutines work?", Timestamp: created},
					{ID: "t2", Role: RoleAssistant, Content: "They are lightweight threads.", Timestamp: created.Add(2 * time.Second)},
				},
				CreatedAt: created,
				UpdatedAt: created.Add(2 * time.Second),
				Preview:   "They are lightweight threads.",
			},
			"conv-2": {
				ID:        "conv-2",
				Title:     "New chat",
				Turns:     []Turn{},
				CreatedAt: created.Add(time.Hour),
				UpdatedAt: created.Add(time.Hour),
			},
		},
		CurrentConversationID: "conv-2",
	}
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	file, err := NewFileStore(filepath.Join(dir, "nested", "conversations.json"))
	require.NoError(t, err)

	return map[string]Store{
		"sqlite": sqlite,
		"file":   file,
		"mock":   NewMockStore(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleSnapshot()

			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStore_LoadEmptyReturnsNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			snap := sampleSnapshot()
			require.NoError(t, s.Save(ctx, snap))

			delete(snap.Conversations, "conv-1")
			require.NoError(t, s.Save(ctx, snap))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got.Conversations, 1)
			assert.Contains(t, got.Conversations, "conv-2")
		})
	}
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"wrong shape", `{"conversations": [1, 2, 3]}`},
		{"null conversation", `{"conversations": {"a": null}}`},
		{"mismatched id", `{"conversations": {"a": {"id": "b"}}}`},
		{"bad role", `{"conversations": {"a": {"id": "a", "messages": [{"id": "m", "role": "robot"}]}}}`},
		{"bad timestamp", `{"conversations": {"a": {"id": "a", "created_at": "yesterday"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tt.data))
			assert.True(t, errors.Is(err, ErrCorrupt), "expected ErrCorrupt, got %v", err)
		})
	}
}

func TestDecodeSnapshot_EmptyObject(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, snap.Conversations)
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, snap.CurrentConversationID)
}

func TestEncodeSnapshot_UsesRFC3339(t *testing.T) {
	data, err := EncodeSnapshot(sampleSnapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created_at":"2026-03-14T09:26:53.589Z"`)
	assert.Contains(t, string(data), `"current_conversation_id":"conv-2"`)
}

func TestOpen_Drivers(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(DriverFile, filepath.Join(dir, "c.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MockStore{}, s)

	s, err = Open("", filepath.Join(dir, "c.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", "")
	assert.Error(t, err)
}
