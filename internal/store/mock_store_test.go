// ABOUTME: Tests for the in-memory MockStore
// ABOUTME: Covers injected failures and raw byte access

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_InjectedErrors(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	boom := errors.New("disk full")
	m.SaveErr = boom
	assert.ErrorIs(t, m.Save(ctx, sampleSnapshot()), boom)
	assert.Equal(t, 0, m.Saves())

	m.SaveErr = nil
	require.NoError(t, m.Save(ctx, sampleSnapshot()))
	assert.Equal(t, 1, m.Saves())

	m.LoadErr = boom
	_, err := m.Load(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestMockStore_SetRawCorrupts(t *testing.T) {
	m := NewMockStore()
	m.SetRaw([]byte("[garbage"))

	_, err := m.Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, "[garbage", string(m.Raw()))
}
