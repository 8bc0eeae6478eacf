package refreshstore

import (
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("refresh token not found")

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only receives the Token field (a random string).
type StoredRefreshToken struct {
	Token  string    // The actual random token string (sent to client)
	UserID string    // Server-side metadata
	Iat    time.Time // Issued at time
}

// Repo manages server-side storage of refresh tokens keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	Count() int
}

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryRepo struct {
	tokens map[string]*StoredRefreshToken
	lock   sync.RWMutex
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		tokens: make(map[string]*StoredRefreshToken),
	}
}

func (tr *InMemoryRepo) Upsert(refreshToken *StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.tokens[refreshToken.Token] = refreshToken
	return nil
}

func (tr *InMemoryRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.tokens[token]; !ok {
		return ErrNotFound
	}
	delete(tr.tokens, token)
	return nil
}

func (tr *InMemoryRepo) Get(token string) (*StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return rt, nil
}

func (tr *InMemoryRepo) Count() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return len(tr.tokens)
}
