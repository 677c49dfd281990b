package token

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store implementation. It backs tests and
// single-process deployments that accept losing the session on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SetAccessToken(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = value
	return nil
}

func (s *MemoryStore) AccessToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.access == "" {
		return "", ErrNotFound
	}
	return s.access, nil
}

func (s *MemoryStore) SetRefreshToken(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = value
	return nil
}

func (s *MemoryStore) RefreshToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.refresh == "" {
		return "", ErrNotFound
	}
	return s.refresh, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	return nil
}

// AdminTokenStore holds the elevated-privilege token in volatile memory
// only. It is deliberately a concrete type rather than an implementation
// of Store: the admin token must never end up behind a durable backend,
// and losing process state must force re-escalation.
type AdminTokenStore struct {
	mu     sync.RWMutex
	value  string
	expiry time.Time
}

// NewAdminTokenStore creates an empty volatile admin token store.
func NewAdminTokenStore() *AdminTokenStore {
	return &AdminTokenStore{}
}

// Set stores the elevated token and its expiry.
func (s *AdminTokenStore) Set(value string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.expiry = expiry
}

// Clear discards the elevated token.
func (s *AdminTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	s.expiry = time.Time{}
}

// Has reports whether an elevated token is held.
func (s *AdminTokenStore) Has() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value != ""
}

// Token returns the held elevated token, or "" when none is held.
func (s *AdminTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Expiry returns the expiry of the held token; the zero time when none
// is held.
func (s *AdminTokenStore) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}
