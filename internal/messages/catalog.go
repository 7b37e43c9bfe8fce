// Package messages renders quiz intents and errors as user-visible text.
package messages

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"

	"vocab-quiz-service/internal/domain"
)

// Templates holds the text/template sources for every user-visible message.
type Templates struct {
	Help                    string `yaml:"help"`
	Question                string `yaml:"question"`
	Score                   string `yaml:"score"`
	Abandoned               string `yaml:"abandoned"`
	InvalidRequestCount     string `yaml:"invalid_request_count"`
	EmptyWordPool           string `yaml:"empty_word_pool"`
	InsufficientDistractors string `yaml:"insufficient_distractors"`
	Internal                string `yaml:"internal"`
}

// DefaultTemplates are used for any template left empty in configuration.
func DefaultTemplates() Templates {
	return Templates{
		Help: "Welcome to the vocabulary quiz!\n" +
			"Pick an option:\n" +
			"/random <count> - practise random words\n" +
			"/latest <count> - practise the most recent words",
		Question:                "Question {{.Number}}/{{.Total}}: {{.Term}}\nChoose the right meaning:",
		Score:                   "You answered {{.Correct}}/{{.Total}} questions correctly!",
		Abandoned:               "Previous quiz abandoned after {{.Answered}}/{{.Total}} questions.",
		InvalidRequestCount:     "Please enter a valid number of questions.",
		EmptyWordPool:           "No vocabulary is available yet.",
		InsufficientDistractors: "Cannot build a question: the vocabulary needs at least 4 different meanings.",
		Internal:                "Something went wrong, please try again later.",
	}
}

// Catalog is a parsed set of templates.
type Catalog struct {
	help, question, score, abandoned     *template.Template
	invalidCount, emptyPool, distractors *template.Template
	internal                             *template.Template
}

// questionData is what the question template sees.
type questionData struct {
	Number int
	Total  int
	Term   string
}

// New parses t, filling empty entries from DefaultTemplates.
func New(t Templates) (*Catalog, error) {
	def := DefaultTemplates()
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}

	c := &Catalog{}
	for _, p := range []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"help", pick(t.Help, def.Help), &c.help},
		{"question", pick(t.Question, def.Question), &c.question},
		{"score", pick(t.Score, def.Score), &c.score},
		{"abandoned", pick(t.Abandoned, def.Abandoned), &c.abandoned},
		{"invalid_request_count", pick(t.InvalidRequestCount, def.InvalidRequestCount), &c.invalidCount},
		{"empty_word_pool", pick(t.EmptyWordPool, def.EmptyWordPool), &c.emptyPool},
		{"insufficient_distractors", pick(t.InsufficientDistractors, def.InsufficientDistractors), &c.distractors},
		{"internal", pick(t.Internal, def.Internal), &c.internal},
	} {
		tmpl, err := template.New(p.name).Option("missingkey=error").Parse(p.src)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", p.name, err)
		}
		*p.dst = tmpl
	}
	return c, nil
}

// MustDefault returns the catalog built from DefaultTemplates.
func MustDefault() *Catalog {
	c, err := New(DefaultTemplates())
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Help() string {
	return render(c.help, nil)
}

// Question renders the poll text for a question intent.
func (c *Catalog) Question(p domain.PollIntent) string {
	return render(c.question, questionData{Number: p.Number, Total: p.Total, Term: p.Question.Term})
}

// Text renders the message text of a non-poll intent. ok is false for intents
// that are not plain messages.
func (c *Catalog) Text(in domain.Intent) (string, bool) {
	switch v := in.(type) {
	case domain.FinishIntent:
		return render(c.score, v), true
	case domain.AbandonedIntent:
		return render(c.abandoned, v), true
	}
	return "", false
}

// Error maps an engine error onto user text. Unknown errors get the generic
// internal message so storage details never reach the chat.
func (c *Catalog) Error(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequestCount):
		return render(c.invalidCount, nil)
	case errors.Is(err, domain.ErrEmptyWordPool):
		return render(c.emptyPool, nil)
	case errors.Is(err, domain.ErrInsufficientDistractors):
		return render(c.distractors, nil)
	}
	return render(c.internal, nil)
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return t.Name() + ": " + err.Error()
	}
	return buf.String()
}
