package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"vocab-quiz-service/internal/domain"
)

// State is the lifecycle stage of a quiz session.
type State int

const (
	StateIdle State = iota
	StateAwaitingAnswer
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

const noPending = -1

// Session is one user's quiz progress. All fields are guarded by mu; the engine
// holds mu for the whole of each transition so that state and the emitted intent
// change together.
type Session struct {
	id     string
	userID string
	now    func() time.Time

	mu           sync.Mutex
	words        []domain.WordPair
	fallback     []string // meanings of the whole vocabulary the quiz was drawn from
	position     int
	correctCount int
	pending      int
	state        State
	startedAt    time.Time
	updatedAt    time.Time
}

// NewSession is exported for infrastructure layers and tests that need to seed sessions.
func NewSession(userID string, words, vocabulary []domain.WordPair) *Session {
	return NewSessionWithClock(userID, words, vocabulary, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(userID string, words, vocabulary []domain.WordPair, now func() time.Time) *Session {
	started := now()
	return &Session{
		id:        uuid.NewString(),
		userID:    userID,
		now:       now,
		words:     words,
		fallback:  meaningsOf(vocabulary),
		pending:   noPending,
		state:     StateIdle,
		startedAt: started,
		updatedAt: started,
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// State reports the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive is the time of the most recent transition.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Progress returns a consistent snapshot of the session counters.
func (s *Session) Progress() domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() domain.Progress {
	return domain.Progress{
		SessionID:    s.id,
		UserID:       s.userID,
		Position:     s.position,
		Total:        len(s.words),
		CorrectCount: s.correctCount,
		Pending:      s.pending != noPending,
	}
}

// answeredLocked counts the questions the user has already responded to.
func (s *Session) answeredLocked() int {
	if s.pending != noPending {
		return s.position - 1
	}
	return s.position
}

// poolLocked prefers the session's own meanings and falls back to the whole
// vocabulary when the sample is too small to supply distractors.
func (s *Session) poolLocked() []string {
	own := meaningsOf(s.words)
	if distinctCount(own) >= domain.OptionCount {
		return own
	}
	return s.fallback
}

// askLocked issues the next question, or finishes the session when every word
// has been asked. The returned bool reports whether the session is finished.
func (s *Session) askLocked(gen *QuestionGenerator) (domain.Intent, bool, error) {
	if s.position >= len(s.words) {
		s.finishLocked()
		return domain.FinishIntent{
			UserID:  s.userID,
			Correct: s.correctCount,
			Total:   len(s.words),
		}, true, nil
	}

	target := s.words[s.position]
	question, err := gen.Generate(target, s.poolLocked())
	if err != nil {
		s.finishLocked()
		return nil, true, err
	}

	s.pending = question.CorrectIndex
	s.position++
	s.state = StateAwaitingAnswer
	s.updatedAt = s.now()
	return domain.PollIntent{
		UserID:    s.userID,
		SessionID: s.id,
		Number:    s.position,
		Total:     len(s.words),
		Question:  question,
	}, false, nil
}

// recordLocked scores chosen against the pending question and clears it.
func (s *Session) recordLocked(chosen int) (bool, error) {
	if s.state != StateAwaitingAnswer || s.pending == noPending {
		return false, domain.ErrNoPendingQuestion
	}
	correct := chosen == s.pending
	if correct {
		s.correctCount++
	}
	s.pending = noPending
	s.updatedAt = s.now()
	return correct, nil
}

func (s *Session) finishLocked() {
	s.pending = noPending
	s.state = StateFinished
	s.updatedAt = s.now()
}
