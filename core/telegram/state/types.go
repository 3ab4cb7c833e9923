package state

import (
	"sort"
	"sync/atomic"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// StateEnd is returned by handlers to finish a conversation.
	StateEnd State = "end"
)

// Key addresses a single conversation instance.
type Key struct {
	UserID int64
	Flow   string
}

// Session stores conversation state and temporary data for a user.
type Session struct {
	Flow      string
	UserID    int64
	State     State
	Data      map[string]any
	StartedAt time.Time
	UpdatedAt time.Time

	ended atomic.Bool
	held  atomic.Bool
}

// NewSession returns an empty session positioned at st.
func NewSession(key Key, st State) *Session {
	now := time.Now()
	return &Session{
		Flow:      key.Flow,
		UserID:    key.UserID,
		State:     st,
		Data:      make(map[string]any),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Key returns the address of the session.
func (s *Session) Key() Key {
	return Key{UserID: s.UserID, Flow: s.Flow}
}

// Set stores a temporary value.
func (s *Session) Set(key string, value any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
}

// Get retrieves a temporary value.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// GetString retrieves a temporary value and asserts it as string.
func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.Data[key].(string)
	return v, ok
}

// GetTime retrieves a temporary value and asserts it as time.Time.
func (s *Session) GetTime(key string) (time.Time, bool) {
	v, ok := s.Data[key].(time.Time)
	return v, ok
}

// Keys returns the stored data keys in sorted order.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.Data))
	for k := range s.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Manager stores conversation sessions.
type Manager interface {
	// Start replaces any existing session under key with a fresh one.
	Start(key Key, st State) *Session
	Get(key Key) (*Session, bool)
	// Acquire refreshes the idle deadline of the session under key and keeps
	// it alive until Release. It reports false for missing or expired ones.
	Acquire(key Key) (*Session, bool)
	Release(s *Session)
	// Save persists state changes and refreshes the idle deadline.
	Save(s *Session)
	Clear(key Key)
	// Count returns the number of live sessions per flow.
	Count() map[string]int
}
