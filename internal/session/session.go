// Package session holds the process-wide authentication context: the bearer token that
// every authenticated request reads, persisted in a key-value Store.
//
// Only two parties mutate it: the verification flow (Set after a verified login, Clear on
// logout) and the API client's unauthorized handler (Clear on a 401).
package session

import (
	"context"
	"fmt"
	"sync"
)

// TokenKey is the single key the session persists.
const TokenKey = "authToken"

// Session caches the persisted token and notifies observers when it is cleared.
type Session struct {
	mu      sync.RWMutex
	store   Store
	token   string
	onClear []func()
}

// Open loads any token persisted by a previous run.
func Open(ctx context.Context, store Store) (*Session, error) {
	token, err := store.Get(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Session{store: store, token: token}, nil
}

// Token returns the current bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Set persists a new token.
func (s *Session) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	s.token = token
	return nil
}

// Clear forgets the token and runs the OnClear observers. The in-memory token is dropped
// even if the store fails, so a stale token is never sent again.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	err := s.store.Delete(ctx, TokenKey)
	observers := append([]func(){}, s.onClear...)
	s.mu.Unlock()

	if had {
		for _, fn := range observers {
			fn()
		}
	}
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// OnClear registers fn to run after a held token is cleared.
func (s *Session) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}
