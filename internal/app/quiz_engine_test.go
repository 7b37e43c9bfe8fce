package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/infra/memory"
)

func TestTwoOfFourWordsBothCorrect(t *testing.T) {
	engine, store := newTestEngine(nil)

	intents, err := engine.StartSession("u1", animals(), 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first := singlePoll(t, intents)
	if first.Number != 1 || first.Total != 2 {
		t.Fatalf("expected question 1/2, got %d/%d", first.Number, first.Total)
	}

	intents, err = engine.RecordAnswer("u1", first.Question.CorrectIndex)
	if err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	second := singlePoll(t, intents)
	if second.Number != 2 {
		t.Fatalf("expected question 2, got %d", second.Number)
	}
	if second.Question.Term == first.Question.Term {
		t.Fatalf("word %q asked twice", first.Question.Term)
	}
	for _, term := range []string{first.Question.Term, second.Question.Term} {
		if !isAnimal(term) {
			t.Fatalf("term %q not drawn from the vocabulary", term)
		}
	}

	intents, err = engine.RecordAnswer("u1", second.Question.CorrectIndex)
	if err != nil {
		t.Fatalf("answer 2: %v", err)
	}
	fin := singleFinish(t, intents)
	if fin.Correct != 2 || fin.Total != 2 || fin.UserID != "u1" {
		t.Fatalf("expected 2/2 for u1, got %+v", fin)
	}
	if store.Len() != 0 {
		t.Fatalf("expected session removed after finish")
	}
}

func TestSessionLengthCappedByVocabulary(t *testing.T) {
	engine, _ := newTestEngine(nil)

	intents, err := engine.StartSession("u1", animals(), 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if poll := singlePoll(t, intents); poll.Total != 4 {
		t.Fatalf("expected 4 questions, got %d", poll.Total)
	}
	progress, ok := engine.Progress("u1")
	if !ok || progress.Total != 4 || progress.Position != 1 || !progress.Pending {
		t.Fatalf("unexpected progress %+v", progress)
	}
}

func TestInsufficientDistractorsLeavesNoSession(t *testing.T) {
	engine, store := newTestEngine(nil)
	words := []domain.WordPair{
		{Term: "cat", Meaning: "mèo"},
		{Term: "kitty", Meaning: "mèo"},
		{Term: "dog", Meaning: "chó"},
	}

	_, err := engine.StartSession("u1", words, 3)
	if !errors.Is(err, domain.ErrInsufficientDistractors) {
		t.Fatalf("expected insufficient distractors, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no session stored")
	}
}

func TestThreeWordsCannotStartQuiz(t *testing.T) {
	engine, store := newTestEngine(nil)
	words := []domain.WordPair{
		{Term: "cat", Meaning: "mèo"},
		{Term: "dog", Meaning: "chó"},
		{Term: "bird", Meaning: "chim"},
	}

	intents, err := engine.StartSession("u1", words, 10)
	if !errors.Is(err, domain.ErrInsufficientDistractors) {
		t.Fatalf("expected insufficient distractors, got %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no intents, got %+v", intents)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no session stored")
	}
	if _, ok := engine.Progress("u1"); ok {
		t.Fatalf("expected no progress for u1")
	}
}

func TestWrongAnswerAdvancesWithoutScoring(t *testing.T) {
	engine, _ := newTestEngine(nil)

	intents, _ := engine.StartSession("u1", animals(), 3)
	poll := singlePoll(t, intents)

	wrong := (poll.Question.CorrectIndex + 1) % domain.OptionCount
	intents, err := engine.RecordAnswer("u1", wrong)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	next := singlePoll(t, intents)
	if next.Number != 2 {
		t.Fatalf("expected question 2, got %d", next.Number)
	}
	progress, _ := engine.Progress("u1")
	if progress.CorrectCount != 0 || progress.Position != 2 {
		t.Fatalf("expected 0 correct at position 2, got %+v", progress)
	}
}

func TestEmptyWordPool(t *testing.T) {
	engine, store := newTestEngine(nil)

	_, err := engine.StartSession("u1", nil, 5)
	if !errors.Is(err, domain.ErrEmptyWordPool) {
		t.Fatalf("expected empty word pool, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no session stored")
	}
}

func TestAnswerWithoutSessionIsIgnored(t *testing.T) {
	engine, store := newTestEngine(nil)

	intents, err := engine.RecordAnswer("ghost", 2)
	if err != nil || intents != nil {
		t.Fatalf("expected silent no-op, got intents=%v err=%v", intents, err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected store untouched")
	}
}

func TestAskNextAtEndFinishes(t *testing.T) {
	engine, store := newTestEngine(nil)

	if _, err := engine.StartSession("u1", animals(), 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	intents, err := engine.AskNext("u1")
	if err != nil {
		t.Fatalf("ask next: %v", err)
	}
	for _, in := range intents {
		if _, ok := in.(domain.PollIntent); ok {
			t.Fatalf("finished session must not emit a poll")
		}
	}
	fin := singleFinish(t, intents)
	if fin.Correct != 0 || fin.Total != 1 {
		t.Fatalf("expected 0/1, got %d/%d", fin.Correct, fin.Total)
	}
	if store.Len() != 0 {
		t.Fatalf("expected session removed")
	}

	// a late answer to the spent question is dropped
	if intents, err := engine.RecordAnswer("u1", 0); err != nil || intents != nil {
		t.Fatalf("expected late answer ignored, got %v %v", intents, err)
	}
	if _, err := engine.AskNext("u1"); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected unknown session, got %v", err)
	}
}

func TestRestartReplacesSession(t *testing.T) {
	engine, _ := newTestEngine([]app.Option{app.WithAbandonNotice(true)})

	intents, _ := engine.StartSession("u1", animals(), 4)
	poll := singlePoll(t, intents)
	if _, err := engine.RecordAnswer("u1", poll.Question.CorrectIndex); err != nil {
		t.Fatalf("answer: %v", err)
	}

	intents, err := engine.StartSession("u1", animals(), 2)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected abandon notice and poll, got %v", intents)
	}
	abandoned, ok := intents[0].(domain.AbandonedIntent)
	if !ok || abandoned.Answered != 1 || abandoned.Total != 4 {
		t.Fatalf("unexpected abandon notice %+v", intents[0])
	}
	fresh := intents[1].(domain.PollIntent)
	if fresh.Number != 1 || fresh.Total != 2 {
		t.Fatalf("expected fresh question 1/2, got %d/%d", fresh.Number, fresh.Total)
	}

	progress, _ := engine.Progress("u1")
	if progress.Position != 1 || progress.CorrectCount != 0 || progress.Total != 2 {
		t.Fatalf("old progress leaked into new session: %+v", progress)
	}
}

func TestRestartWithoutNoticeIsSilent(t *testing.T) {
	engine, _ := newTestEngine(nil)

	_, _ = engine.StartSession("u1", animals(), 4)
	intents, err := engine.StartSession("u1", animals(), 4)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	singlePoll(t, intents)
}

func TestOnAnswerUsesFirstOption(t *testing.T) {
	engine, _ := newTestEngine(nil)

	intents, _ := engine.StartSession("u1", animals(), 3)
	poll := singlePoll(t, intents)
	wrong := (poll.Question.CorrectIndex + 1) % domain.OptionCount

	intents, _ = engine.OnAnswer("u1", []int{poll.Question.CorrectIndex, wrong})
	poll = singlePoll(t, intents)
	if progress, _ := engine.Progress("u1"); progress.CorrectCount != 1 {
		t.Fatalf("expected first option scored, got %+v", progress)
	}

	// a retracted vote counts as wrong and still advances
	intents, _ = engine.OnAnswer("u1", nil)
	poll = singlePoll(t, intents)
	progress, _ := engine.Progress("u1")
	if progress.CorrectCount != 1 || progress.Position != 3 || poll.Number != 3 {
		t.Fatalf("expected empty answer to advance unscored, got %+v", progress)
	}
}

func TestOnStartModes(t *testing.T) {
	latest := []domain.WordPair{
		{Term: "sun", Meaning: "mặt trời"},
		{Term: "moon", Meaning: "mặt trăng"},
		{Term: "star", Meaning: "ngôi sao"},
		{Term: "sky", Meaning: "bầu trời"},
	}
	source := memory.NewStaticSource(animals(), latest)
	engine := app.NewQuizEngine(memory.NewSessionStore(), source, app.WithRandom(app.NewRandom(5)))
	ctx := context.Background()

	intents, err := engine.OnStart(ctx, "u1", 2, domain.ModeLatest)
	if err != nil {
		t.Fatalf("start latest: %v", err)
	}
	poll := singlePoll(t, intents)
	if isAnimal(poll.Question.Term) {
		t.Fatalf("latest mode asked %q from an older batch", poll.Question.Term)
	}

	intents, err = engine.OnStart(ctx, "u2", 20, domain.ModeRandom)
	if err != nil {
		t.Fatalf("start random: %v", err)
	}
	if poll := singlePoll(t, intents); poll.Total != 8 {
		t.Fatalf("expected all 8 words, got %d", poll.Total)
	}

	if _, err := engine.OnStart(ctx, "u3", 0, domain.ModeRandom); !errors.Is(err, domain.ErrInvalidRequestCount) {
		t.Fatalf("expected invalid count, got %v", err)
	}

	empty := app.NewQuizEngine(memory.NewSessionStore(), memory.NewStaticSource())
	if _, err := empty.OnStart(ctx, "u4", 3, domain.ModeLatest); !errors.Is(err, domain.ErrEmptyWordPool) {
		t.Fatalf("expected empty pool, got %v", err)
	}
}

func TestOnStartWrapsSourceErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	engine := app.NewQuizEngine(memory.NewSessionStore(), failingSource{err: boom})

	_, err := engine.OnStart(context.Background(), "u1", 3, domain.ModeRandom)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestStopDropsSession(t *testing.T) {
	engine, store := newTestEngine(nil)

	_, _ = engine.StartSession("u1", animals(), 2)
	engine.Stop("u1")
	if store.Len() != 0 {
		t.Fatalf("expected session removed")
	}
	engine.Stop("u1")
}

func TestStopSessionIgnoresReplacedQuiz(t *testing.T) {
	engine, store := newTestEngine(nil)

	first := singlePoll(t, mustStart(t, engine, "u1", 3))
	second := singlePoll(t, mustStart(t, engine, "u1", 3))
	if first.SessionID == "" || first.SessionID == second.SessionID {
		t.Fatalf("expected distinct session ids, got %q and %q", first.SessionID, second.SessionID)
	}

	if engine.StopSession("u1", first.SessionID) {
		t.Fatalf("stale session id must not stop the replacement")
	}
	if store.Len() != 1 {
		t.Fatalf("expected replacement kept")
	}
	if !engine.StopSession("u1", second.SessionID) {
		t.Fatalf("expected current session stopped")
	}
	if store.Len() != 0 {
		t.Fatalf("expected session removed")
	}
	if engine.StopSession("u1", second.SessionID) {
		t.Fatalf("expected no-op once removed")
	}
}

func TestProgressInvariantHolds(t *testing.T) {
	engine, _ := newTestEngine(nil)
	rnd := app.NewRandom(11)

	for round := 0; round < 50; round++ {
		userID := fmt.Sprintf("u%d", round)
		intents, err := engine.StartSession(userID, animals(), 1+rnd.Intn(6))
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for {
			progress, ok := engine.Progress(userID)
			if ok {
				if progress.CorrectCount < 0 || progress.CorrectCount > progress.Position || progress.Position > progress.Total {
					t.Fatalf("invariant broken: %+v", progress)
				}
			}
			if _, done := intents[len(intents)-1].(domain.FinishIntent); done {
				break
			}
			intents, err = engine.RecordAnswer(userID, rnd.Intn(domain.OptionCount))
			if err != nil {
				t.Fatalf("answer: %v", err)
			}
		}
	}
}

func TestConcurrentUsers(t *testing.T) {
	engine, store := newTestEngine(nil)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			intents, err := engine.StartSession(userID, animals(), 4)
			if err != nil {
				errs <- err
				return
			}
			for {
				switch in := intents[0].(type) {
				case domain.FinishIntent:
					if in.Correct != 4 || in.Total != 4 {
						errs <- fmt.Errorf("%s: expected 4/4, got %d/%d", userID, in.Correct, in.Total)
					}
					return
				case domain.PollIntent:
					intents, err = engine.RecordAnswer(userID, in.Question.CorrectIndex)
					if err != nil {
						errs <- err
						return
					}
				}
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected all sessions finished, %d left", store.Len())
	}
}

func TestConcurrentAnswersForOneUser(t *testing.T) {
	engine, _ := newTestEngine(nil)
	if _, err := engine.StartSession("u1", animals(), 4); err != nil {
		t.Fatalf("start: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		polls    int
		finishes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			intents, _ := engine.OnAnswer("u1", []int{0})
			mu.Lock()
			defer mu.Unlock()
			for _, in := range intents {
				switch in.(type) {
				case domain.PollIntent:
					polls++
				case domain.FinishIntent:
					finishes++
				}
			}
		}()
	}
	wg.Wait()

	if polls != 3 || finishes != 1 {
		t.Fatalf("expected 3 follow-up polls and 1 finish, got %d and %d", polls, finishes)
	}
}

func TestParseRequestCount(t *testing.T) {
	cases := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{arg: "", want: app.DefaultQuestionCount},
		{arg: " 5 ", want: 5},
		{arg: "0", wantErr: true},
		{arg: "-3", wantErr: true},
		{arg: "ten", wantErr: true},
	}
	for _, tc := range cases {
		got, err := app.ParseRequestCount(tc.arg, app.DefaultQuestionCount)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrInvalidRequestCount) {
				t.Fatalf("%q: expected invalid count, got %v", tc.arg, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %d, %v; want %d", tc.arg, got, err, tc.want)
		}
	}
}

func newTestEngine(opts []app.Option) (*app.QuizEngine, *memory.SessionStore) {
	store := memory.NewSessionStore()
	opts = append([]app.Option{app.WithRandom(app.NewRandom(1))}, opts...)
	return app.NewQuizEngine(store, memory.NewStaticSource(animals()), opts...), store
}

func animals() []domain.WordPair {
	return []domain.WordPair{
		{Term: "cat", Meaning: "mèo"},
		{Term: "dog", Meaning: "chó"},
		{Term: "bird", Meaning: "chim"},
		{Term: "fish", Meaning: "cá"},
	}
}

func isAnimal(term string) bool {
	for _, w := range animals() {
		if w.Term == term {
			return true
		}
	}
	return false
}

func singlePoll(t *testing.T, intents []domain.Intent) domain.PollIntent {
	t.Helper()
	if len(intents) != 1 {
		t.Fatalf("expected one intent, got %v", intents)
	}
	poll, ok := intents[0].(domain.PollIntent)
	if !ok {
		t.Fatalf("expected poll intent, got %T", intents[0])
	}
	return poll
}

func singleFinish(t *testing.T, intents []domain.Intent) domain.FinishIntent {
	t.Helper()
	if len(intents) != 1 {
		t.Fatalf("expected one intent, got %v", intents)
	}
	fin, ok := intents[0].(domain.FinishIntent)
	if !ok {
		t.Fatalf("expected finish intent, got %T", intents[0])
	}
	return fin
}

type failingSource struct{ err error }

func (f failingSource) AllWords(context.Context) ([]domain.WordPair, error)        { return nil, f.err }
func (f failingSource) MostRecentBatch(context.Context) ([]domain.WordPair, error) { return nil, f.err }

func mustStart(t *testing.T, engine *app.QuizEngine, userID string, n int) []domain.Intent {
	t.Helper()
	intents, err := engine.StartSession(userID, animals(), n)
	if err != nil {
		t.Fatalf("start %s: %v", userID, err)
	}
	return intents
}
