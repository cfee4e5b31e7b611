package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// DefaultDir returns ~/.fill-pdf/cache, or ./.fill-pdf/cache when the home
// directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".fill-pdf", "cache")
}

// DiskStore keeps one gob file per key in a directory.
type DiskStore struct {
	dir string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates dir if needed. An empty dir uses DefaultDir.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the cache directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, key+".cache")
}

// Get reads the entry for key. Unreadable entries count as misses.
func (s *DiskStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	e, err := decodeEntry(data)
	if err != nil {
		log.Printf("[cache] ignoring corrupt entry %s: %v", key, err)
		return nil, false, nil
	}
	return e, true, nil
}

// Set writes the entry atomically. The ttl is enforced by TemplateCache.
func (s *DiskStore) Set(_ context.Context, key string, entry *Entry, _ time.Duration) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Clear removes the directory and recreates it empty.
func (s *DiskStore) Clear(_ context.Context) error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return os.MkdirAll(s.dir, 0o755)
}
