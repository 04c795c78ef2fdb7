// Package session owns per-visitor state: detection results, the share
// draft, the community feed, the trivia score, language and workshops.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTTL         = 2 * time.Hour
	DefaultMaxSessions = 10000
)

type ManagerOptions struct {
	// TTL is how long an idle session lives. Zero means DefaultTTL.
	TTL time.Duration
	// MaxSessions bounds the store; the least recently used session is
	// dropped first. Zero means DefaultMaxSessions.
	MaxSessions int
}

// Manager holds every live session. Sessions never see each other's state.
type Manager struct {
	deps     *Deps
	sessions *expirable.LRU[string, *Session]
}

func NewManager(deps Deps, opts ManagerOptions) *Manager {
	deps.defaults()
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	onEvict := func(token string, s *Session) {
		log.Debug().Str("token", token).Time("created", s.CreatedAt).Msg("session ended")
	}
	return &Manager{
		deps:     &deps,
		sessions: expirable.NewLRU[string, *Session](opts.MaxSessions, onEvict, opts.TTL),
	}
}

func (m *Manager) Create() *Session {
	token := uuid.NewString()
	for m.sessions.Contains(token) {
		token = uuid.NewString()
	}
	s := newSession(token, m.deps)
	m.sessions.Add(token, s)
	log.Info().Str("token", token).Msg("session created")
	return s
}

// Get returns a live session and refreshes its idle timer.
func (m *Manager) Get(token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	s, ok := m.sessions.Get(token)
	if !ok || s == nil {
		return nil, ErrSessionNotFound
	}
	m.sessions.Add(token, s)
	return s, nil
}

// End drops a session immediately.
func (m *Manager) End(token string) bool {
	return m.sessions.Remove(token)
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}
