// ABOUTME: Mock Store implementation for testing
// ABOUTME: Keeps the encoded snapshot in memory and can inject load/save failures

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
// It stores the encoded form so round-trips exercise the real codec.
type MockStore struct {
	mu      sync.RWMutex
	data    []byte
	saves   int
	SaveErr error // returned from Save when set
	LoadErr error // returned from Load when set
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Load decodes the last saved snapshot.
func (m *MockStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	return DecodeSnapshot(m.data)
}

// Save encodes and keeps the snapshot.
func (m *MockStore) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

// SetRaw replaces the persisted bytes, used to simulate corruption.
func (m *MockStore) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// Raw returns a copy of the persisted bytes.
func (m *MockStore) Raw() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Saves returns how many successful Save calls were made.
func (m *MockStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
