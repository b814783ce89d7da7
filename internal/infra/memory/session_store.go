package memory

import (
	"context"
	"sync"
	"time"

	"certquiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository. It
// stores session state by value so callers never share a live session.
// Every Save and Replace pushes the expiry ttl into the future, matching the
// sliding TTL of the Redis store. A ttl <= 0 keeps sessions forever.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]storedSession
}

type storedSession struct {
	state     app.SessionState
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*app.Session, bool, error) {
	now := s.now()
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.expired(entry, now) {
		s.mu.Lock()
		// Re-check: a Save may have refreshed it meanwhile.
		if current, ok := s.sessions[sessionID]; ok && s.expired(current, now) {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return restore(entry.state)
}

func (s *SessionStore) Save(_ context.Context, session *app.Session) error {
	state := session.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = s.entry(state)
	return nil
}

func (s *SessionStore) Replace(_ context.Context, session *app.Session) (bool, error) {
	state := session.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[state.ID]
	if !ok || s.expired(current, s.now()) {
		delete(s.sessions, state.ID)
		return false, nil
	}
	s.sessions[state.ID] = s.entry(state)
	return true, nil
}

func (s *SessionStore) Claim(_ context.Context, sessionID string) (*app.Session, bool, error) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok || s.expired(entry, s.now()) {
		return nil, false, nil
	}
	return restore(entry.state)
}

// Run evicts expired sessions once a minute until ctx is done.
func (s *SessionStore) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SessionStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
		}
	}
}

// Len reports how many sessions are held, expired ones included until swept.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) entry(state app.SessionState) storedSession {
	entry := storedSession{state: state}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	return entry
}

func (s *SessionStore) expired(entry storedSession, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !entry.expiresAt.After(now)
}

func restore(state app.SessionState) (*app.Session, bool, error) {
	session, err := app.RestoreSession(state)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}
