// Package services contains application services for the linkkeeper CLI:
// authentication and session bookkeeping, and linked-account management.
// Both share one in-memory Session; nothing is persisted on disk.
package services

import (
	"errors"
	"sync"
	"time"
)

// ErrNotLoggedIn is returned by calls that need a live session.
var ErrNotLoggedIn = errors.New("not logged in")

// Session holds the current session token. It is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	email     string
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewSession() *Session {
	return &Session{now: time.Now}
}

func (s *Session) set(email, token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email, s.token, s.expiresAt = email, token, expiresAt
}

func (s *Session) clear() {
	s.set("", "", time.Time{})
}

// Token returns the session token, or ErrNotLoggedIn when there is none or
// it has expired.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !s.now().Before(s.expiresAt) {
		return "", ErrNotLoggedIn
	}
	return s.token, nil
}

// Email returns the identity of the current session, or "".
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// ExpiresAt returns the expiry of the current session token.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// LoggedIn reports whether a non-expired token is held.
func (s *Session) LoggedIn() bool {
	_, err := s.Token()
	return err == nil
}
