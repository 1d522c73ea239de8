package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrFixedQuestion means a pinned question id is set. Pinned questions are
	// not supported; players must scan a difficulty card.
	ErrFixedQuestion = errors.New("fixed question id is not allowed")
	ErrNoDifficulty  = errors.New("no difficulty selected")
	ErrEmptyBank     = errors.New("question bank is empty")
	ErrEmptyTier     = errors.New("no questions for difficulty")
	ErrFetch         = errors.New("fetch question bank")
)

// LoadError is a question load failure with the text shown to the player.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Retryable reports whether scanning again may succeed without changes to the
// bank or configuration.
func (e *LoadError) Retryable() bool {
	return errors.Is(e.Err, ErrFetch) || errors.Is(e.Err, ErrNoDifficulty)
}

func loadError(msg string, err error) *LoadError {
	return &LoadError{Message: msg, Err: err}
}
