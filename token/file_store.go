package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"
)

var _ Store = (*FileStore)(nil)

const nonceSize = 24

// FileStore persists tokens to a single file encrypted with NaCl secretbox. It is the
// native-client equivalent of the browser cookie store.
type FileStore struct {
	mu      sync.Mutex
	path    string
	key     [32]byte
	nowFunc func() time.Time
}

type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type fileContents map[string]fileEntry

type FileStoreOption func(*FileStore)

// WithFileNowFunc sets the clock used for expiry (primarily for testing)
func WithFileNowFunc(now func() time.Time) FileStoreOption {
	return func(s *FileStore) {
		s.nowFunc = now
	}
}

// NewFileStore creates a store at path encrypted with a key derived from passphrase.
func NewFileStore(path, passphrase string, options ...FileStoreOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	if passphrase == "" {
		return nil, errors.New("[NewFileStore] passphrase is required")
	}
	s := &FileStore{
		path:    path,
		key:     sha256.Sum256([]byte(passphrase)),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *FileStore) SetAccessToken(token string, maxAge time.Duration) error {
	return s.set(AccessTokenName, token, accessMaxAge(maxAge))
}

func (s *FileStore) SetRefreshToken(token string, maxAge time.Duration) error {
	return s.set(RefreshTokenName, token, refreshMaxAge(maxAge))
}

func (s *FileStore) AccessToken() (string, bool) {
	return s.get(AccessTokenName)
}

func (s *FileStore) RefreshToken() (string, bool) {
	return s.get(RefreshTokenName)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("[FileStore Clear] %w", err)
	}
	return nil
}

func (s *FileStore) set(name, value string, maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Token file unreadable, overwriting")
		contents = fileContents{}
	}
	if value == "" {
		delete(contents, name)
	} else {
		contents[name] = fileEntry{Value: value, ExpiresAt: s.nowFunc().Add(maxAge)}
	}
	return s.write(contents)
}

func (s *FileStore) get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil {
		log.Debug().Err(err).Str("path", s.path).Msg("Token file unreadable")
		return "", false
	}
	e, ok := contents[name]
	if !ok || e.Value == "" || !s.nowFunc().Before(e.ExpiresAt) {
		return "", false
	}
	return e.Value, true
}

func (s *FileStore) read() (fileContents, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return fileContents{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize {
		return nil, errors.New("token file truncated")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("token file cannot be decrypted")
	}
	contents := fileContents{}
	if err := json.Unmarshal(plain, &contents); err != nil {
		return nil, fmt.Errorf("token file corrupt: %w", err)
	}
	return contents, nil
}

// write replaces the file atomically via a temp file and rename.
func (s *FileStore) write(contents fileContents) error {
	plain, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("[FileStore write] marshal: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("[FileStore write] nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("[FileStore write] mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("[FileStore write] temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore write] %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStore write] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("[FileStore write] rename: %w", err)
	}
	return nil
}
