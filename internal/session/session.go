// Package session keeps authenticated admin sessions in memory. Sessions do
// not survive a restart.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/kiosk/internal/crypto"
	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
)

// Default lifetimes.
const (
	DefaultIdleTTL     = 2 * time.Hour
	DefaultAbsoluteTTL = 7 * 24 * time.Hour
)

// Session is a single authenticated admin session.
type Session struct {
	ID             string
	SourceAddress  string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	config         *kiosk.Config
}

// expired reports whether the session is past either lifetime at now.
// A session exactly at a limit is still valid.
func (s *Session) expired(now time.Time, idle, absolute time.Duration) bool {
	return now.Sub(s.CreatedAt) > absolute || now.Sub(s.LastAccessedAt) > idle
}

// Manager owns the session table.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTTL     time.Duration
	absoluteTTL time.Duration
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the idle and absolute lifetimes. Zero values keep the defaults.
func WithTTL(idle, absolute time.Duration) Option {
	return func(m *Manager) {
		if idle > 0 {
			m.idleTTL = idle
		}
		if absolute > 0 {
			m.absoluteTTL = absolute
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		idleTTL:     DefaultIdleTTL,
		absoluteTTL: DefaultAbsoluteTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AbsoluteTTL returns the maximum session lifetime, used as the cookie Max-Age.
func (m *Manager) AbsoluteTTL() time.Duration {
	return m.absoluteTTL
}

// Create starts a new session for addr and returns its id.
func (m *Manager) Create(addr string) (string, error) {
	id, err := crypto.GenerateToken(crypto.SessionTokenSize)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sessions[id] = &Session{
		ID:             id,
		SourceAddress:  addr,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	return id, nil
}

// Validate reports whether id names a live session and refreshes its idle
// timer. Expired sessions are removed.
func (m *Manager) Validate(id string) bool {
	if id == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	now := m.now()
	if s.expired(now, m.idleTTL, m.absoluteTTL) {
		delete(m.sessions, id)
		return false
	}
	s.LastAccessedAt = now
	return true
}

// Get returns a copy of a live session without touching its idle timer.
// Expired sessions are reported as absent but left for Validate or Sweep.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.expired(m.now(), m.idleTTL, m.absoluteTTL) {
		return Session{}, false
	}
	out := *s
	out.config = nil
	return out, true
}

// Destroy removes a session. Unknown ids are ignored.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// DestroyAll removes every session.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}

// CacheConfig stores a copy of cfg on the session. Unknown ids are ignored.
func (m *Manager) CacheConfig(id string, cfg *kiosk.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.config = cfg.Clone()
	}
}

// Config returns a copy of the cached configuration, or nil.
func (m *Manager) Config(id string) *kiosk.Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s.config.Clone()
	}
	return nil
}

// Count returns the number of sessions, including expired ones not yet swept.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pruneExpired(now, m.sessions, m.idleTTL, m.absoluteTTL)
}

// pruneExpired deletes every expired session from sessions.
func pruneExpired(now time.Time, sessions map[string]*Session, idle, absolute time.Duration) int {
	removed := 0
	for id, s := range sessions {
		if s.expired(now, idle, absolute) {
			delete(sessions, id)
			removed++
		}
	}
	return removed
}
