package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore persists artifacts as files under a single directory. It is the
// default store for local and single-instance deployments.
type FSStore struct {
	dir string
}

// NewFSStore creates the directory if needed and returns a filesystem store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewFSStore: creating %q: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

// Write implements the Store interface.
func (s *FSStore) Write(ctx context.Context, key string, data []byte) error {
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("FSStore.Write %q: %w", key, err)
	}
	return nil
}

// Read implements the Store interface.
func (s *FSStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FSStore.Read %q: %w", key, err)
	}
	return data, nil
}

// Delete implements the Store interface.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("FSStore.Delete %q: %w", key, err)
	}
	return nil
}

// path confines keys to the store directory. Keys are reference codes, so
// Base strips any path separators a malformed code could smuggle in.
func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

var _ Store = (*FSStore)(nil)
