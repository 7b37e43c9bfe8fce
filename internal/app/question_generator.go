package app

import (
	"vocab-quiz-service/internal/domain"
)

// QuestionGenerator builds shuffled multiple-choice questions from a meaning pool.
type QuestionGenerator struct {
	rnd Random
}

func NewQuestionGenerator(rnd Random) *QuestionGenerator {
	if rnd == nil {
		rnd = newClockRandom()
	}
	return &QuestionGenerator{rnd: rnd}
}

// Generate picks three distinct distractors from pool, mixes in the target meaning
// and shuffles the options. The pool must hold at least three meanings other than
// target.Meaning.
func (g *QuestionGenerator) Generate(target domain.WordPair, pool []string) (domain.Question, error) {
	candidates := distinctExcluding(pool, target.Meaning)
	need := domain.OptionCount - 1
	if len(candidates) < need {
		return domain.Question{}, domain.ErrInsufficientDistractors
	}

	// partial Fisher-Yates: the first `need` slots end up a uniform sample
	for i := 0; i < need; i++ {
		j := i + g.rnd.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	options := make([]string, 0, domain.OptionCount)
	options = append(options, candidates[:need]...)
	options = append(options, target.Meaning)
	g.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	correct := 0
	for i, opt := range options {
		if opt == target.Meaning {
			correct = i
			break
		}
	}
	return domain.Question{
		Term:         target.Term,
		Options:      options,
		CorrectIndex: correct,
	}, nil
}

// distinctExcluding returns the unique values of pool in first-seen order, minus skip.
func distinctExcluding(pool []string, skip string) []string {
	seen := make(map[string]struct{}, len(pool))
	out := make([]string, 0, len(pool))
	for _, m := range pool {
		if m == skip {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func distinctCount(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func meaningsOf(words []domain.WordPair) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Meaning
	}
	return out
}

// sampleWords returns n words drawn uniformly without replacement, in random order.
func sampleWords(rnd Random, words []domain.WordPair, n int) []domain.WordPair {
	if n > len(words) {
		n = len(words)
	}
	shuffled := make([]domain.WordPair, len(words))
	copy(shuffled, words)
	for i := 0; i < n; i++ {
		j := i + rnd.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n:n]
}
