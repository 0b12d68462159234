// File: internal/browser/session/session.go

// Package session maintains named, long-lived driver bindings with TTL
// expiry, independent of the transient pool.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// Session binds one driver to a client-supplied identity for its lifetime.
// The driver is owned by the session and quit when the session closes.
type Session struct {
	id       string
	driver   schemas.Driver
	metadata map[string]string
	ttl      time.Duration

	mu         sync.RWMutex
	createdAt  time.Time
	lastAccess time.Time

	closeOnce sync.Once
	logger    *zap.Logger
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// Driver returns the session's driver. The caller borrows it; the session
// keeps ownership.
func (s *Session) Driver() schemas.Driver { return s.driver }

// Touch refreshes the last-access timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// Expired reports whether the session passed its TTL.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttl > 0 && now.Sub(s.lastAccess) > s.ttl
}

// Info snapshots the externally visible session state.
func (s *Session) Info() schemas.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		meta[k] = v
	}
	return schemas.SessionInfo{
		SessionID:  s.id,
		Metadata:   meta,
		CreatedAt:  s.createdAt,
		LastAccess: s.lastAccess,
		TTLSeconds: int64(s.ttl / time.Second),
	}
}

func (s *Session) close(ctx context.Context) {
	s.closeOnce.Do(func() {
		if err := s.driver.Quit(ctx); err != nil {
			s.logger.Warn("Session driver quit failed", zap.Error(err))
		}
	})
}

// Factory creates a fresh driver for a new session.
type Factory func(ctx context.Context) (schemas.Driver, error)

// Manager owns all named sessions and reaps expired ones in the background.
type Manager struct {
	factory    Factory
	defaultTTL time.Duration
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager builds a manager. reapInterval <= 0 disables the reaper loop;
// expired sessions are then only collected on lookup.
func NewManager(factory Factory, defaultTTL, reapInterval time.Duration, logger *zap.Logger) *Manager {
	m := &Manager{
		factory:    factory,
		defaultTTL: defaultTTL,
		logger:     logger.Named("sessions"),
		sessions:   make(map[string]*Session),
		stopCh:     make(chan struct{}),
	}
	if reapInterval > 0 {
		m.wg.Add(1)
		go m.reapLoop(reapInterval)
	}
	return m
}

// Create registers a session under id with a fresh driver. The id must
// satisfy the session naming rules and be unused.
func (m *Manager) Create(ctx context.Context, id string, metadata map[string]string, ttl time.Duration) (*Session, error) {
	if !schemas.ValidSessionID(id) {
		return nil, schemas.NewError(schemas.KindValidation, "session.create",
			"session_id must match [A-Za-z0-9_-]{1,128}")
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, schemas.NewError(schemas.KindDriverUnavailable, "session.create", "manager is shut down")
	}
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, schemas.NewError(schemas.KindValidation, "session.create", "session_id already in use")
	}
	// Reserve the id before driver creation so concurrent creates collide
	// here instead of racing the factory.
	m.sessions[id] = nil
	m.mu.Unlock()

	driver, err := m.factory(ctx)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, schemas.WrapError(schemas.KindDriverUnavailable, "session.create", err)
	}

	now := time.Now()
	s := &Session{
		id:         id,
		driver:     driver,
		metadata:   metadata,
		ttl:        ttl,
		createdAt:  now,
		lastAccess: now,
		logger:     m.logger.With(zap.String("session_id", id)),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.close(ctx)
		return nil, schemas.NewError(schemas.KindDriverUnavailable, "session.create", "manager is shut down")
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("Session created", zap.String("session_id", id), zap.Duration("ttl", ttl))
	return s, nil
}

// Get returns the session, or nil when absent or expired. Lookup refreshes
// the session's last access.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()

	if s == nil {
		return nil
	}
	if s.Expired(time.Now()) {
		m.Remove(context.Background(), id)
		return nil
	}
	s.Touch()
	return s
}

// Remove closes and unregisters a session. Returns false when id is unknown.
func (m *Manager) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if s == nil {
		return false
	}
	s.close(ctx)
	m.logger.Info("Session removed", zap.String("session_id", id))
	return true
}

// List snapshots all live sessions.
func (m *Manager) List() []schemas.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]schemas.SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s != nil {
			infos = append(infos, s.Info())
		}
	}
	return infos
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) reapLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reapExpired()
		}
	}
}

func (m *Manager) reapExpired() {
	now := time.Now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s != nil && s.Expired(now) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, s := range expired {
		m.logger.Info("Reaping expired session", zap.String("session_id", s.id))
		s.close(ctx)
	}
}

// Shutdown stops the reaper and closes every session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stopCh)
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.wg.Wait()
	for _, s := range sessions {
		s.close(ctx)
	}
	m.logger.Info("Session manager shut down", zap.Int("sessions_closed", len(sessions)))
}
