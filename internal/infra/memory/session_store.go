package memory

import (
	"sync"
	"time"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	session  *app.Session
	lastSeen time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		clock:    time.Now,
		sessions: make(map[string]*entry),
	}
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Put stores session for userID, replacing any previous one.
func (s *SessionStore) Put(userID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &entry{session: session, lastSeen: s.clock()}
}

func (s *SessionStore) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *SessionStore) RemoveIf(userID, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok || e.session.ID() != sessionID {
		return false
	}
	delete(s.sessions, userID)
	return true
}

// Update refreshes the idle timer of a live session. Progress for a session
// that has been replaced or removed is ignored.
func (s *SessionStore) Update(progress domain.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[progress.UserID]
	if !ok || e.session.ID() != progress.SessionID {
		return
	}
	e.lastSeen = s.clock()
}

// Len reports the number of active sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle drops sessions untouched for longer than ttl and returns how many
// were removed. A non-positive ttl disables eviction.
func (s *SessionStore) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.clock().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for userID, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}
