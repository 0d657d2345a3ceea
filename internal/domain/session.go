package domain

import (
	"sync"
	"time"
)

// Session is the per-connection state machine: a connection starts
// unauthenticated and becomes authenticated once a valid user binds to
// it. Room subscriptions live in the hub, not here.
type Session struct {
	ID            string
	UserID        int64
	Authenticated bool
	CreatedAt     time.Time
	LastActiveAt  time.Time
	mu            sync.RWMutex
}

// NewSession creates a session for a freshly opened connection.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Authenticate binds a user to the connection.
func (s *Session) Authenticate(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = userID
	s.Authenticated = true
	s.LastActiveAt = time.Now()
}

// IsAuthenticated reports whether a user is bound to the connection.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Authenticated
}

// GetUserID returns the bound user ID, zero when unauthenticated.
func (s *Session) GetUserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

// UpdateActivity refreshes the last-seen timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
