package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists each key as a single file under a base directory.
// Keys are restricted to a safe character set so they map directly to
// file names.
type FileStore struct {
	basePath   string
	mutex      sync.RWMutex
	closed     bool
	closeMutex sync.RWMutex
}

// NewFileStore creates a file-backed store rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return !strings.HasPrefix(key, ".")
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.basePath, key+".json")
}

func (fs *FileStore) checkOpen() error {
	fs.closeMutex.RLock()
	defer fs.closeMutex.RUnlock()
	if fs.closed {
		return ErrStoreClosed
	}
	return nil
}

// Get implements the Store interface
func (fs *FileStore) Get(key string) ([]byte, error) {
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	fs.mutex.RLock()
	defer fs.mutex.RUnlock()

	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return data, nil
}

// Set implements the Store interface. The value is written to a temp
// file and renamed so readers never observe a torn write.
func (fs *FileStore) Set(key string, value []byte) error {
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if !validKey(key) {
		return ErrInvalidKey
	}

	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	tmp := fs.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	if err := os.Rename(tmp, fs.path(key)); err != nil {
		return fmt.Errorf("failed to commit key %q: %w", key, err)
	}
	return nil
}

// Delete implements the Store interface
func (fs *FileStore) Delete(key string) error {
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if !validKey(key) {
		return ErrInvalidKey
	}

	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Close implements the Store interface
func (fs *FileStore) Close() error {
	fs.closeMutex.Lock()
	defer fs.closeMutex.Unlock()
	fs.closed = true
	return nil
}
