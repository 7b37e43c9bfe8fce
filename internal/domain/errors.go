package domain

import "errors"

var (
	// ErrInvalidRequestCount is returned when the requested question count is not a positive integer.
	ErrInvalidRequestCount = errors.New("invalid question count")
	// ErrEmptyWordPool is returned when no vocabulary is available to start a quiz.
	ErrEmptyWordPool = errors.New("no vocabulary available")
	// ErrInsufficientDistractors indicates fewer than 4 distinct meanings exist for a question.
	ErrInsufficientDistractors = errors.New("not enough distinct meanings to build a question")
	// ErrUnknownSession is returned when an answer arrives for a user without an active quiz.
	ErrUnknownSession = errors.New("quiz session not found")
	// ErrNoPendingQuestion is returned when an answer arrives while no question is outstanding.
	ErrNoPendingQuestion = errors.New("no pending question")
)
