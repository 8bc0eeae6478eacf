package sessions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// UserStore persists the serialized current user. Data is kept raw so that a record
// that no longer decodes can be detected and cleared.
type UserStore interface {
	Load() ([]byte, bool, error)
	Save(data []byte) error
	Clear() error
}

// MemoryUserStore is a UserStore for tests and for windows sharing one process.
type MemoryUserStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{}
}

func (s *MemoryUserStore) Load() ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, false, nil
	}
	return append([]byte(nil), s.data...), true, nil
}

func (s *MemoryUserStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *MemoryUserStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

// FileUserStore keeps the user record in a file shared by every process of one user.
type FileUserStore struct {
	path string
}

func NewFileUserStore(path string) *FileUserStore {
	return &FileUserStore{path: path}
}

func (s *FileUserStore) Path() string {
	return s.path
}

func (s *FileUserStore) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("[FileUserStore Load] %w", err)
	}
	return data, true, nil
}

// Save replaces the file atomically via a temp file and rename.
func (s *FileUserStore) Save(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("[FileUserStore Save] mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".user-*")
	if err != nil {
		return fmt.Errorf("[FileUserStore Save] temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileUserStore Save] %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileUserStore Save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("[FileUserStore Save] rename: %w", err)
	}
	return nil
}

func (s *FileUserStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("[FileUserStore Clear] %w", err)
	}
	return nil
}
