package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	minReapInterval    = time.Second
)

// ManagerOption настраивает Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout задаёт время неактивности, после которого сессия закрывается.
func WithIdleTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.idleTimeout = timeout
		}
	}
}

// WithClock подменяет часы (тесты).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager выдаёт токены сессий и закрывает неактивные.
type Manager struct {
	deps        Deps
	logger      *log.Entry
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewManager создаёт реестр сессий.
func NewManager(deps Deps, opts ...ManagerOption) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "storefront")
		deps.Logger = logger
	}
	m := &Manager{
		deps:        deps,
		logger:      logger.WithField("component", "session-manager"),
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open создаёт сессию с новым токеном.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, domain.ErrSessionNotFound
	}

	s := Open(ctx, uuid.NewString(), m.deps)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, domain.ErrSessionNotFound
	}
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	if m.deps.SessionMetrics != nil {
		m.deps.SessionMetrics.RecordSessionOpened()
	}
	m.logger.WithField("session_id", shortID(s.ID())).Debug("session opened")
	return s, nil
}

// Get возвращает сессию по токену.
func (m *Manager) Get(token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close закрывает сессию по токену.
func (m *Manager) Close(token string) error {
	m.mu.Lock()
	s, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	s.Close()
	if m.deps.SessionMetrics != nil {
		m.deps.SessionMetrics.RecordSessionClosed()
	}
	return nil
}

// Len возвращает число открытых сессий.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap закрывает сессии, неактивные дольше idleTimeout, и возвращает их число.
func (m *Manager) Reap() int {
	deadline := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for token, s := range m.sessions {
		if s.LastSeen().Before(deadline) {
			idle = append(idle, s)
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		if m.deps.SessionMetrics != nil {
			m.deps.SessionMetrics.RecordSessionClosed()
			m.deps.SessionMetrics.RecordSessionExpired()
		}
	}
	if len(idle) > 0 {
		m.logger.WithField("sessions", len(idle)).Info("idle sessions reaped")
	}
	return len(idle)
}

// Run периодически закрывает неактивные сессии до отмены ctx, затем закрывает все.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 2
	if interval < minReapInterval {
		interval = minReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}

// CloseAll закрывает все сессии; новые после этого не открываются.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		if m.deps.SessionMetrics != nil {
			m.deps.SessionMetrics.RecordSessionClosed()
		}
	}
}
