// ABOUTME: File-backed Store implementation writing the snapshot as one JSON document
// ABOUTME: Writes go to a temp file and are renamed into place so readers never see partial state

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore persists the snapshot to a single JSON file
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a file store at the given path, creating parent directories.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{
		path:   path,
		logger: slog.Default().With("component", "store", "driver", "file"),
	}, nil
}

// Load reads and decodes the snapshot file.
func (f *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStorage, f.path, err)
	}

	return DecodeSnapshot(data)
}

// Save encodes the snapshot and atomically replaces the file.
func (f *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".conversations-*.json")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing temp file: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing temp file: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %v", ErrStorage, f.path, err)
	}

	f.logger.Debug("saved snapshot", "path", f.path, "bytes", len(data))
	return nil
}

// Close is a no-op; the file store holds no open handles between calls.
func (f *FileStore) Close() error {
	return nil
}
