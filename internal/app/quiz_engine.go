package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"vocab-quiz-service/internal/domain"
)

// DefaultQuestionCount is used when a start command carries no count.
const DefaultQuestionCount = 10

// SessionStore abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionStore interface {
	Get(userID string) (*Session, bool)
	Put(userID string, session *Session)
	Remove(userID string)
	// RemoveIf deletes the user's session only if it is still sessionID.
	RemoveIf(userID, sessionID string) bool
	// Update records the progress of a live session after a transition.
	Update(progress domain.Progress)
}

// VocabularySource supplies word/meaning pairs.
type VocabularySource interface {
	AllWords(ctx context.Context) ([]domain.WordPair, error)
	MostRecentBatch(ctx context.Context) ([]domain.WordPair, error)
}

// QuizEngine drives the per-user quiz state machine and returns the intents a
// transport has to deliver.
type QuizEngine struct {
	sessions   SessionStore
	vocabulary VocabularySource
	generator  *QuestionGenerator
	rnd        Random
	now        func() time.Time
	logger     *slog.Logger

	notifyAbandoned bool
}

// Option configures a QuizEngine.
type Option func(*QuizEngine)

// WithRandom injects the randomness used for sampling and shuffling.
func WithRandom(rnd Random) Option {
	return func(e *QuizEngine) { e.rnd = rnd }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *QuizEngine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *QuizEngine) { e.logger = l }
}

// WithAbandonNotice makes StartSession emit an AbandonedIntent when it replaces a
// quiz that is still in progress.
func WithAbandonNotice(enabled bool) Option {
	return func(e *QuizEngine) { e.notifyAbandoned = enabled }
}

func NewQuizEngine(store SessionStore, vocabulary VocabularySource, opts ...Option) *QuizEngine {
	e := &QuizEngine{
		sessions:   store,
		vocabulary: vocabulary,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = newClockRandom()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.generator = NewQuestionGenerator(e.rnd)
	return e
}

// ParseRequestCount reads the question count argument of a start command.
// An empty argument yields def.
func ParseRequestCount(arg string, def int) (int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return def, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidRequestCount, arg)
	}
	return n, nil
}

// OnStart loads vocabulary for mode and starts a quiz for userID.
func (e *QuizEngine) OnStart(ctx context.Context, userID string, requestedCount int, mode domain.Mode) ([]domain.Intent, error) {
	if requestedCount <= 0 {
		return nil, domain.ErrInvalidRequestCount
	}

	var (
		words []domain.WordPair
		err   error
	)
	switch mode {
	case domain.ModeLatest:
		words, err = e.vocabulary.MostRecentBatch(ctx)
	default:
		words, err = e.vocabulary.AllWords(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return e.StartSession(userID, words, requestedCount)
}

// StartSession samples min(requestedCount, len(words)) words and asks the first
// question. The session is stored only once that question exists, so a failure
// leaves the store untouched. A previous session for the user is replaced.
func (e *QuizEngine) StartSession(userID string, words []domain.WordPair, requestedCount int) ([]domain.Intent, error) {
	if len(words) == 0 {
		return nil, domain.ErrEmptyWordPool
	}
	if requestedCount <= 0 {
		return nil, domain.ErrInvalidRequestCount
	}

	session := NewSessionWithClock(userID, sampleWords(e.rnd, words, requestedCount), words, e.now)

	session.mu.Lock()
	first, finished, err := session.askLocked(e.generator)
	progress := session.progressLocked()
	session.mu.Unlock()
	if err != nil {
		e.logger.Warn("quiz not started", "user_id", userID, "error", err)
		return nil, err
	}
	if finished {
		// unreachable with a non-empty sample, kept so the store never sees a dead session
		return []domain.Intent{first}, nil
	}

	var intents []domain.Intent
	if prev, ok := e.sessions.Get(userID); ok {
		if abandoned, ok := e.abandon(prev); ok && e.notifyAbandoned {
			intents = append(intents, abandoned)
		}
	}
	e.sessions.Put(userID, session)
	e.sessions.Update(progress)

	e.logger.Info("quiz started",
		"user_id", userID,
		"session_id", session.id,
		"total", progress.Total,
		"vocabulary", len(words),
	)
	return append(intents, first), nil
}

// AskNext issues the next question for userID, or the final score once every
// word has been asked. The question counts as spent as soon as it is issued.
func (e *QuizEngine) AskNext(userID string) ([]domain.Intent, error) {
	session, ok := e.sessions.Get(userID)
	if !ok {
		return nil, domain.ErrUnknownSession
	}

	session.mu.Lock()
	if session.state == StateFinished {
		session.mu.Unlock()
		return nil, domain.ErrUnknownSession
	}
	intent, finished, err := session.askLocked(e.generator)
	progress := session.progressLocked()
	session.mu.Unlock()

	return e.settle(session, progress, intent, finished, err)
}

// RecordAnswer scores chosen against the pending question and moves on.
// Answers for unknown or finished sessions, and answers with no question
// outstanding, are dropped without error.
func (e *QuizEngine) RecordAnswer(userID string, chosen int) ([]domain.Intent, error) {
	session, ok := e.sessions.Get(userID)
	if !ok {
		e.logger.Debug("answer dropped", "user_id", userID, "reason", domain.ErrUnknownSession)
		return nil, nil
	}

	session.mu.Lock()
	if session.state == StateFinished {
		session.mu.Unlock()
		e.logger.Debug("answer dropped", "user_id", userID, "reason", domain.ErrUnknownSession)
		return nil, nil
	}
	correct, err := session.recordLocked(chosen)
	if err != nil {
		session.mu.Unlock()
		e.logger.Debug("answer dropped", "user_id", userID, "reason", err)
		return nil, nil
	}
	intent, finished, err := session.askLocked(e.generator)
	progress := session.progressLocked()
	session.mu.Unlock()

	e.logger.Debug("answer recorded",
		"user_id", userID,
		"session_id", session.id,
		"correct", correct,
		"position", progress.Position,
	)
	return e.settle(session, progress, intent, finished, err)
}

// OnAnswer adapts a poll answer event: only the first option counts and an
// empty selection is scored as wrong.
func (e *QuizEngine) OnAnswer(userID string, optionIDs []int) ([]domain.Intent, error) {
	chosen := noPending
	if len(optionIDs) > 0 {
		chosen = optionIDs[0]
	}
	return e.RecordAnswer(userID, chosen)
}

// Progress returns the current counters of the user's session.
func (e *QuizEngine) Progress(userID string) (domain.Progress, bool) {
	session, ok := e.sessions.Get(userID)
	if !ok {
		return domain.Progress{}, false
	}
	return session.Progress(), true
}

// Stop ends the user's session without a score.
func (e *QuizEngine) Stop(userID string) {
	session, ok := e.sessions.Get(userID)
	if !ok {
		return
	}
	e.stop(session)
}

// StopSession ends the user's session only if it is still sessionID, so a
// closing conversation cannot end a quiz started from another one.
func (e *QuizEngine) StopSession(userID, sessionID string) bool {
	session, ok := e.sessions.Get(userID)
	if !ok || session.id != sessionID {
		return false
	}
	e.stop(session)
	return true
}

func (e *QuizEngine) stop(session *Session) {
	session.mu.Lock()
	session.finishLocked()
	session.mu.Unlock()
	e.sessions.RemoveIf(session.userID, session.id)
	e.logger.Debug("quiz stopped", "user_id", session.userID, "session_id", session.id)
}

func (e *QuizEngine) settle(session *Session, progress domain.Progress, intent domain.Intent, finished bool, err error) ([]domain.Intent, error) {
	if finished {
		e.sessions.RemoveIf(session.userID, session.id)
	} else {
		e.sessions.Update(progress)
	}
	if err != nil {
		e.logger.Warn("quiz aborted",
			"user_id", session.userID,
			"session_id", session.id,
			"position", progress.Position,
			"error", err,
		)
		return nil, err
	}
	if finished {
		e.logger.Info("quiz finished",
			"user_id", session.userID,
			"session_id", session.id,
			"correct", progress.CorrectCount,
			"total", progress.Total,
		)
	}
	return []domain.Intent{intent}, nil
}

// abandon marks a replaced session finished so in-flight answers for it are ignored.
func (e *QuizEngine) abandon(prev *Session) (domain.AbandonedIntent, bool) {
	prev.mu.Lock()
	defer prev.mu.Unlock()
	if prev.state != StateAwaitingAnswer {
		prev.finishLocked()
		return domain.AbandonedIntent{}, false
	}
	answered, total := prev.answeredLocked(), len(prev.words)
	prev.finishLocked()
	e.logger.Info("quiz abandoned", "user_id", prev.userID, "session_id", prev.id, "answered", answered)
	return domain.AbandonedIntent{UserID: prev.userID, Answered: answered, Total: total}, true
}
