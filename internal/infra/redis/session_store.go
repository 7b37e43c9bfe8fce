package redis

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionStore.
// Notes:
//   - Sessions themselves live in a local map; their mutexes are what serialize
//     a user's events, so they cannot be moved out of process.
//   - Redis mirrors each session's progress as a hash with a TTL so other
//     instances and operators can see who is mid-quiz. Writes are best effort.
//   - Mirror writes hold the read lock and deletes hold the write lock, so a
//     session that has been removed is never written back.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) Put(userID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = session
	s.mirror(session.Progress())
}

func (s *SessionStore) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	s.forget(userID)
}

func (s *SessionStore) RemoveIf(userID, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok || session.ID() != sessionID {
		return false
	}
	delete(s.sessions, userID)
	s.forget(userID)
	return true
}

// Update mirrors progress if its session is still the user's current one.
func (s *SessionStore) Update(progress domain.Progress) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[progress.UserID]
	if !ok || session.ID() != progress.SessionID {
		return
	}
	s.mirror(progress)
}

// EvictIdle drops sessions whose last transition is older than ttl.
func (s *SessionStore) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for userID, session := range s.sessions {
		if session.LastActive().Before(cutoff) {
			delete(s.sessions, userID)
			s.forget(userID)
			evicted++
		}
	}
	return evicted
}

// Snapshot reads the mirrored progress of userID from Redis.
func (s *SessionStore) Snapshot(ctx context.Context, userID string) (domain.Progress, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return domain.Progress{}, false, err
	}
	if len(fields) == 0 {
		return domain.Progress{}, false, nil
	}
	atoi := func(k string) int {
		n, _ := strconv.Atoi(fields[k])
		return n
	}
	return domain.Progress{
		SessionID:    fields["session_id"],
		UserID:       userID,
		Position:     atoi("position"),
		Total:        atoi("total"),
		CorrectCount: atoi("correct"),
		Pending:      fields["pending"] == "1",
	}, true, nil
}

func (s *SessionStore) mirror(p domain.Progress) {
	ctx := context.Background()
	pending := "0"
	if p.Pending {
		pending = "1"
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(p.UserID),
		"session_id", p.SessionID,
		"position", p.Position,
		"total", p.Total,
		"correct", p.CorrectCount,
		"pending", pending,
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(p.UserID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("mirror session progress", "user_id", p.UserID, "error", err)
	}
}

func (s *SessionStore) forget(userID string) {
	if err := s.client.Del(context.Background(), s.key(userID)).Err(); err != nil {
		s.logger.Warn("clear session progress", "user_id", userID, "error", err)
	}
}

func (s *SessionStore) key(userID string) string {
	return "quiz:session:" + userID
}
