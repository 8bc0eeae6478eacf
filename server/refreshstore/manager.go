package refreshstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid refresh token")
	ErrTokenExpired = errors.New("refresh token expired")
)

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo    Repo
	expiry  time.Duration
	length  int
	nowFunc func() time.Time
	// rotateLock serialises Rotate so a token can only be consumed once.
	rotateLock sync.Mutex
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:    repo,
		expiry:  7 * 24 * time.Hour,
		length:  32, // 32 bytes = 256 bits
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create generates a new refresh token for userID and stores it
func (m *Manager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    m.nowFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}

// Rotate consumes token and issues its replacement. A token that has already been
// rotated is unknown and rejected, so a stale refresh token can never be reused.
func (m *Manager) Rotate(token string) (userID, next string, err error) {
	m.rotateLock.Lock()
	defer m.rotateLock.Unlock()

	rt, err := m.repo.Get(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	if err := m.repo.Delete(token); err != nil {
		return "", "", fmt.Errorf("failed to delete refresh token: %w", err)
	}
	if m.IsExpired(rt) {
		return "", "", ErrTokenExpired
	}
	next, err = m.Create(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return rt.UserID, next, nil
}

// IsExpired checks if a refresh token has expired
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.nowFunc().Sub(rt.Iat) > m.expiry
}
