package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTokenMismatch is returned when the presented anti-forgery token is not
// the one most recently issued for the session.
var ErrTokenMismatch = errors.New("anti-forgery token mismatch")

// TokenStore holds exactly one live anti-forgery token per session.
type TokenStore interface {
	// Mint replaces the session's token with a fresh one.
	Mint(ctx context.Context, sessionID string) (string, error)
	// Rotate consumes presented and returns its successor. On mismatch the
	// live token is left untouched and ErrTokenMismatch is returned.
	Rotate(ctx context.Context, sessionID, presented string) (string, error)
}

func newToken() string {
	return uuid.NewString()
}

type memoryToken struct {
	value   string
	expires time.Time
}

// MemoryTokenStore is a TokenStore for a single process.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryTokenStore creates an in-process token store whose tokens live for ttl.
func NewMemoryTokenStore(ttl time.Duration) *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]memoryToken),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint issues a fresh token for the session, replacing any previous one.
func (s *MemoryTokenStore) Mint(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired()
	token := newToken()
	s.tokens[sessionID] = memoryToken{value: token, expires: s.now().Add(s.ttl)}
	return token, nil
}

// Rotate checks the presented token and replaces it with a new one.
func (s *MemoryTokenStore) Rotate(_ context.Context, sessionID, presented string) (string, error) {
	if presented == "" {
		return "", ErrTokenMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.tokens[sessionID]
	if !ok || !s.now().Before(live.expires) {
		delete(s.tokens, sessionID)
		return "", ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(live.value), []byte(presented)) != 1 {
		return "", ErrTokenMismatch
	}

	next := newToken()
	s.tokens[sessionID] = memoryToken{value: next, expires: s.now().Add(s.ttl)}
	return next, nil
}

func (s *MemoryTokenStore) evictExpired() {
	now := s.now()
	for id, tok := range s.tokens {
		if !now.Before(tok.expires) {
			delete(s.tokens, id)
		}
	}
}
