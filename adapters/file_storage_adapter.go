package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorageAdapter is the default storage adapter implementation using file system.
// Each key is stored in its own file inside a directory.
type FileStorageAdapter struct {
	dir string
	mu  sync.Mutex
}

// Ensure FileStorageAdapter implements StorageAdapter interface
var _ StorageAdapter = (*FileStorageAdapter)(nil)

// NewFileStorageAdapter creates a new FileStorageAdapter instance.
//
// Parameters:
//   - dir: Directory where values will be stored. Created on first write.
func NewFileStorageAdapter(dir string) *FileStorageAdapter {
	return &FileStorageAdapter{dir: dir}
}

func (f *FileStorageAdapter) path(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return filepath.Join(f.dir, r.Replace(key))
}

// Set writes value to a temporary file and renames it over the key's file,
// so a crash mid-write never leaves a truncated value behind.
func (f *FileStorageAdapter) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Get reads the key's file.
// Returns ErrKeyNotFound if the file doesn't exist.
func (f *FileStorageAdapter) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the key's file.
func (f *FileStorageAdapter) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close does nothing for file storage (no persistent connections).
func (f *FileStorageAdapter) Close() error {
	return nil
}
