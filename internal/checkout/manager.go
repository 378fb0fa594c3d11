package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type sessionKey struct {
	userID    uuid.UUID
	productID string
}

func (k sessionKey) String() string {
	return k.userID.String() + "/" + k.productID
}

type managedSession struct {
	session  *Session
	lastUsed time.Time
}

// Manager keeps at most one open session per user and product. Sessions
// not opened for Settings.IdleTimeout are closed with their drafts kept.
type Manager struct {
	mu       sync.Mutex
	sessions map[sessionKey]*managedSession
	starts   singleflight.Group
	settings Settings
	deps     Deps

	done     chan struct{}
	stopOnce sync.Once
}

func NewManager(settings Settings, deps Deps) *Manager {
	m := &Manager{
		sessions: make(map[sessionKey]*managedSession),
		settings: settings.withDefaults(),
		deps:     deps,
		done:     make(chan struct{}),
	}
	go m.evictIdle()
	return m
}

// Open returns the user's open session for the product, starting one
// (and restoring its draft) when there is none. Concurrent opens of the
// same key share one start; other keys are never held up by it.
func (m *Manager) Open(ctx context.Context, userID uuid.UUID, productID string) (*Session, error) {
	key := sessionKey{userID: userID, productID: productID}

	if s := m.live(key); s != nil {
		return s, nil
	}

	v, err, _ := m.starts.Do(key.String(), func() (interface{}, error) {
		if s := m.live(key); s != nil {
			return s, nil
		}

		s, err := StartSession(context.WithoutCancel(ctx), userID, productID, m.settings, m.deps)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.sessions[key] = &managedSession{session: s, lastUsed: time.Now()}
		m.mu.Unlock()

		return s, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Session), nil
}

// live returns the open session for key and marks it used. A closed
// session found under key is dropped.
func (m *Manager) live(key sessionKey) *Session {
	m.mu.Lock()
	entry, ok := m.sessions[key]
	if ok {
		entry.lastUsed = time.Now()
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if !entry.session.Closed() {
		return entry.session
	}

	m.mu.Lock()
	if current, ok := m.sessions[key]; ok && current == entry {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	return nil
}

// Len counts the sessions that are still open.
func (m *Manager) Len() int {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, entry := range m.sessions {
		sessions = append(sessions, entry.session)
	}
	m.mu.Unlock()

	n := 0
	for _, s := range sessions {
		if !s.Closed() {
			n++
		}
	}
	return n
}

func (m *Manager) evictIdle() {
	interval := m.settings.IdleTimeout / 2
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.closeIdle(now.Add(-m.settings.IdleTimeout))
		}
	}
}

func (m *Manager) closeIdle(cutoff time.Time) {
	var idle []*Session

	m.mu.Lock()
	for key, entry := range m.sessions {
		if entry.lastUsed.Before(cutoff) {
			idle = append(idle, entry.session)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		log.Info().Int("sessions", len(idle)).Msg("checkout: closed idle sessions")
	}
}

// CloseAll ends every session, keeping the drafts, and stops idle eviction.
func (m *Manager) CloseAll() {
	m.stopOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[sessionKey]*managedSession)
	m.mu.Unlock()

	for _, entry := range sessions {
		entry.session.Close()
	}
	log.Info().Int("sessions", len(sessions)).Msg("checkout: all sessions closed")
}
