package app

import (
	"github.com/quizflow/quizflow/internal/quiz"
)

// StateLoadedMsg is sent once durable state has been read.
type StateLoadedMsg struct {
	Err error
}

// SessionCreatedMsg carries the id of a newly created session.
type SessionCreatedMsg struct {
	ID string
}

// SessionErrorMsg is sent when a session could not be created.
type SessionErrorMsg struct {
	Err error
}

// TokenMsg carries text decoded by the scan cycle.
type TokenMsg struct {
	Text    string
	scanner *ScanController
}

// ScanEndedMsg is sent when the scan cycle stops. Err is nil after a
// requested stop.
type ScanEndedMsg struct {
	Err     error
	scanner *ScanController
}

// ScanTickMsg refreshes the scan status line.
type ScanTickMsg struct {
	scanner *ScanController
}

// QuestionLoadedMsg carries the question to display.
type QuestionLoadedMsg struct {
	Question quiz.Question
}

// QuestionErrorMsg is sent when no question could be loaded.
type QuestionErrorMsg struct {
	Err error
}

// AnswerSubmittedMsg carries the graded answer. Err reports an upload
// failure; Result is still valid.
type AnswerSubmittedMsg struct {
	Result quiz.Result
	Err    error
}

// NavigateMsg moves to View after a delay. Stale navigations, scheduled
// before the user moved on, are ignored.
type NavigateMsg struct {
	View View
	seq  int
}
