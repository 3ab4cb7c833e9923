package state

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/bookingbot/core/logger"

	"github.com/patrickmn/go-cache"
)

// Options configures the in-memory Manager.
type Options struct {
	// IdleTimeout evicts sessions without activity; 0 keeps them forever.
	IdleTimeout time.Duration
	// CleanupInterval controls how often expired sessions are swept.
	CleanupInterval time.Duration
	// OnExpire is invoked for sessions removed by the idle sweep.
	OnExpire func(key Key, st State)
}

// entry is what the cache holds. It is never modified after Set, so the
// janitor can read it while a handler is changing the session itself.
type entry struct {
	sess      *Session
	state     State
	updatedAt time.Time
}

func snapshot(s *Session) *entry {
	return &entry{sess: s, state: s.State, updatedAt: s.UpdatedAt}
}

type memoryManager struct {
	items *cache.Cache
	// mu orders writes against the janitor re-inserting held sessions.
	mu       sync.Mutex
	onExpire func(Key, State)
}

// NewMemoryManager constructs an in-memory Manager.
func NewMemoryManager(opts Options) Manager {
	ttl := cache.NoExpiration
	cleanup := time.Duration(0)
	if opts.IdleTimeout > 0 {
		ttl = opts.IdleTimeout
		cleanup = opts.CleanupInterval
		if cleanup <= 0 {
			cleanup = time.Minute
		}
	}

	m := &memoryManager{items: cache.New(ttl, cleanup), onExpire: opts.OnExpire}
	m.items.OnEvicted(m.evicted)
	return m
}

// evicted runs for manual deletes and for the idle sweep. Clear marks the
// session ended before deleting, so only the sweep gets past the first check.
func (m *memoryManager) evicted(k string, v interface{}) {
	e, ok := v.(*entry)
	if !ok || e.sess.ended.Load() {
		return
	}

	m.mu.Lock()
	if e.sess.ended.Load() {
		m.mu.Unlock()
		return
	}
	if e.sess.held.Load() {
		m.items.Set(k, e, cache.DefaultExpiration)
		m.mu.Unlock()
		return
	}
	e.sess.ended.Store(true)
	m.mu.Unlock()

	logger.Info(logger.Background(), "conversation", "session.expired",
		slog.Int64("user_id", e.sess.UserID),
		slog.String("flow", e.sess.Flow),
		slog.String("state", string(e.state)),
		slog.Duration("idle", time.Since(e.updatedAt)),
	)
	if m.onExpire != nil {
		m.onExpire(e.sess.Key(), e.state)
	}
}

func cacheKey(key Key) string {
	return fmt.Sprintf("%s:%d", key.Flow, key.UserID)
}

func (m *memoryManager) lookup(key Key) (*Session, bool) {
	v, ok := m.items.Get(cacheKey(key))
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// Start creates a new session for key, discarding any previous one.
func (m *memoryManager) Start(key Key, st State) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.lookup(key); ok {
		prev.ended.Store(true)
	}
	sess := NewSession(key, st)
	m.items.Set(cacheKey(key), snapshot(sess), cache.DefaultExpiration)
	return sess
}

// Get returns the live session for key.
func (m *memoryManager) Get(key Key) (*Session, bool) {
	return m.lookup(key)
}

// Acquire returns the live session for key with a fresh idle deadline. The
// sweep keeps the session until Release is called.
func (m *memoryManager) Acquire(key Key) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items.Get(cacheKey(key))
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	if !ok || e.sess.ended.Load() {
		return nil, false
	}
	e.sess.held.Store(true)
	m.items.Set(cacheKey(key), e, cache.DefaultExpiration)
	return e.sess, true
}

// Release lets the sweep expire s again.
func (m *memoryManager) Release(s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	s.held.Store(false)
	m.mu.Unlock()
}

// Save stores the session and pushes its idle deadline forward.
func (m *memoryManager) Save(s *Session) {
	if s == nil || s.ended.Load() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ended.Load() {
		return
	}
	s.UpdatedAt = time.Now()
	m.items.Set(cacheKey(s.Key()), snapshot(s), cache.DefaultExpiration)
}

// Clear removes the session and its data.
func (m *memoryManager) Clear(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.lookup(key); ok {
		sess.ended.Store(true)
		sess.Data = nil
	}
	m.items.Delete(cacheKey(key))
}

// Count returns the number of live sessions grouped by flow.
func (m *memoryManager) Count() map[string]int {
	out := make(map[string]int)
	for _, item := range m.items.Items() {
		if e, ok := item.Object.(*entry); ok {
			out[e.sess.Flow]++
		}
	}
	return out
}
