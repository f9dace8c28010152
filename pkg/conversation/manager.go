package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/relay"
)

type ManagerOptions struct {
	Strategy  relay.ReplyStrategy
	Publisher Publisher
	Config    Config
	// OnRemove is called with the id of every session that is deleted or
	// evicted.
	OnRemove  func(id string)
}

// Manager stores all live sessions.
type Manager struct {
	strategy  relay.ReplyStrategy
	publisher Publisher
	cfg       Config
	onRemove  func(id string)

	mu            sync.Mutex
	sessions      map[string]*Session
	evictIdle     time.Duration
	evictInterval time.Duration
	evictRunning  bool
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		strategy:  opts.Strategy,
		publisher: opts.Publisher,
		cfg:       opts.Config,
		onRemove:  opts.OnRemove,
		sessions:  map[string]*Session{},
	}
}

// Create starts a new session. sc.SessionID is used as the id when set,
// replacing any session with the same id; otherwise a uuid is generated.
func (m *Manager) Create(sc relay.SessionContext) *Session {
	id := strings.TrimSpace(sc.SessionID)
	if id == "" {
		id = uuid.NewString()
	}
	sc.SessionID = id
	s := NewSession(id, sc, m.strategy, m.publisher, m.cfg)

	m.mu.Lock()
	old := m.sessions[id]
	m.sessions[id] = s
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
	log.Debug().Str("component", "conversation").Str("session_id", id).Msg("session created")
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for sc.SessionID, creating it when it
// does not exist yet.
func (m *Manager) GetOrCreate(sc relay.SessionContext) (*Session, bool) {
	if id := strings.TrimSpace(sc.SessionID); id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}
	return m.Create(sc), true
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
		m.removed(id)
	}
	return ok
}

func (m *Manager) removed(id string) {
	if m.onRemove != nil {
		m.onRemove(id)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) SetEvictionConfig(idle, interval time.Duration) {
	m.mu.Lock()
	m.evictIdle = idle
	m.evictInterval = interval
	m.mu.Unlock()
}

// StartEvictionLoop removes idle sessions until ctx is done. It does
// nothing unless both idle and interval are positive.
func (m *Manager) StartEvictionLoop(ctx context.Context) {
	m.mu.Lock()
	if m.evictRunning || m.evictIdle <= 0 || m.evictInterval <= 0 {
		m.mu.Unlock()
		return
	}
	interval := m.evictInterval
	m.evictRunning = true
	m.mu.Unlock()

	go m.runEvictionLoop(ctx, interval)
}

func (m *Manager) runEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.evictRunning = false
			m.mu.Unlock()
			return
		case now := <-ticker.C:
			if n := m.evictIdleOnce(now); n > 0 {
				log.Info().Str("component", "conversation").Int("evicted", n).Msg("evicted idle sessions")
			}
		}
	}
}

func (m *Manager) evictIdleOnce(now time.Time) int {
	m.mu.Lock()
	idle := m.evictIdle
	if idle <= 0 {
		m.mu.Unlock()
		return 0
	}
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	evicted := 0
	for _, s := range sessions {
		if s.Busy() || now.Sub(s.LastActivity()) < idle {
			continue
		}
		m.mu.Lock()
		current, ok := m.sessions[s.id]
		if !ok || current != s {
			m.mu.Unlock()
			continue
		}
		delete(m.sessions, s.id)
		m.mu.Unlock()

		s.Close()
		m.removed(s.id)
		evicted++
	}
	return evicted
}
