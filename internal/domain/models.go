package domain

// WordPair is a vocabulary term and its correct meaning.
type WordPair struct {
	Term    string `json:"term"`
	Meaning string `json:"meaning"`
}

// OptionCount is the number of options in every generated question.
const OptionCount = 4

// Question models a multiple-choice question with exactly one correct option.
type Question struct {
	Term         string   `json:"term"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Mode selects which part of the vocabulary a quiz is drawn from.
type Mode string

const (
	ModeRandom Mode = "random"
	ModeLatest Mode = "latest"
)

// ParseMode maps a transport command name onto a Mode.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case ModeRandom:
		return ModeRandom, true
	case ModeLatest:
		return ModeLatest, true
	}
	return "", false
}

// Intent is an instruction emitted by the quiz engine for a transport to execute.
type Intent interface {
	Recipient() string
}

// PollIntent asks the transport to send a question as a poll.
type PollIntent struct {
	UserID    string
	SessionID string
	Number    int // 1-based question number
	Total     int
	Question  Question
}

func (i PollIntent) Recipient() string { return i.UserID }

// FinishIntent carries the final score of a completed session.
type FinishIntent struct {
	UserID  string
	Correct int
	Total   int
}

func (i FinishIntent) Recipient() string { return i.UserID }

// AbandonedIntent reports that a new quiz replaced one still in progress.
type AbandonedIntent struct {
	UserID   string
	Answered int
	Total    int
}

func (i AbandonedIntent) Recipient() string { return i.UserID }

// Progress is a read-only view of a session used by stores and logs.
type Progress struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	Position     int    `json:"position"`
	Total        int    `json:"total"`
	CorrectCount int    `json:"correctCount"`
	Pending      bool   `json:"pending"`
}
