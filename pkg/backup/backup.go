package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Storage is where archived snapshots live.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// SnapshotStore persists JSON snapshots on a Storage backend.
type SnapshotStore struct {
	storage Storage
}

func NewSnapshotStore(storage Storage) *SnapshotStore {
	return &SnapshotStore{storage: storage}
}

// Save serializes v and writes it under name.
func (s *SnapshotStore) Save(ctx context.Context, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.storage.Save(ctx, name, bytesReader(data)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot under name into out.
func (s *SnapshotStore) Load(ctx context.Context, name string, out interface{}) error {
	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return nil
}

// List returns snapshot names carrying the prefix.
func (s *SnapshotStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.storage.List(ctx, prefix)
}

// Delete removes the snapshot under name.
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}

type byteReader struct {
	data []byte
	pos  int
}

func bytesReader(data []byte) io.Reader {
	return &byteReader{data: data}
}

func (br *byteReader) Read(p []byte) (n int, err error) {
	if br.pos >= len(br.data) {
		return 0, io.EOF
	}
	n = copy(p, br.data[br.pos:])
	br.pos += n
	return n, nil
}
