// ABOUTME: JSON encoding of conversation snapshots shared by every Store backend
// ABOUTME: Timestamps are RFC 3339 text; decoding validates structure and reports ErrCorrupt

package store

import (
	"encoding/json"
	"fmt"
)

// SnapshotKey is the record key under which the snapshot is persisted.
const SnapshotKey = "conversations"

// EncodeSnapshot serializes a snapshot into its persisted text form.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	if snap == nil {
		snap = &Snapshot{}
	}
	out := struct {
		Conversations         map[string]*Conversation `json:"conversations"`
		CurrentConversationID string                   `json:"current_conversation_id"`
	}{
		Conversations:         snap.Conversations,
		CurrentConversationID: snap.CurrentConversationID,
	}
	if out.Conversations == nil {
		out.Conversations = map[string]*Conversation{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses persisted text back into a snapshot.
// Any structural problem is reported as ErrCorrupt.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Conversations == nil {
		snap.Conversations = map[string]*Conversation{}
	}

	for id, conv := range snap.Conversations {
		if conv == nil {
			return nil, fmt.Errorf("%w: conversation %q is null", ErrCorrupt, id)
		}
		if conv.ID != id {
			return nil, fmt.Errorf("%w: conversation key %q does not match id %q", ErrCorrupt, id, conv.ID)
		}
		for _, turn := range conv.Turns {
			if !turn.Role.Valid() {
				return nil, fmt.Errorf("%w: turn %q has unknown role %q", ErrCorrupt, turn.ID, turn.Role)
			}
		}
		if conv.Turns == nil {
			conv.Turns = []Turn{}
		}
	}

	return &snap, nil
}
