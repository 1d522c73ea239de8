package quiz

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/state"
)

// AnswerTimeLayout is the wall-clock format of AnswerRecord.Timestamp.
const AnswerTimeLayout = "15:04:05"

// AnswerRecord is the uploaded form of one answer.
type AnswerRecord struct {
	QuestionID string  `json:"question_id"`
	Student    string  `json:"student"`
	IsCorrect  bool    `json:"is_correct"`
	TimeTaken  float64 `json:"time_taken"`
	Timestamp  string  `json:"timestamp"`
}

// Grade reports whether choice is the correct option of q.
func Grade(q Question, choice int) bool {
	return q.Answerable(choice) && choice == q.CorrectIndex
}

// Result is the outcome of one submitted answer.
type Result struct {
	Question Question
	Player   state.Player
	Choice   int
	Correct  bool
	Elapsed  time.Duration
	// Key is the generated upload key, empty when nothing was uploaded.
	Key string
}

// Recorder grades answers, updates scores and uploads the record.
type Recorder struct {
	store remote.Store
	state *state.Manager
	log   *zap.Logger
	now   func() time.Time
}

// NewRecorder returns a Recorder uploading to store.
func NewRecorder(store remote.Store, st *state.Manager, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, state: st, log: logger, now: time.Now}
}

// Submit grades the acting player's choice. A correct answer is saved before
// the upload is attempted, so an upload error never loses the score; the
// returned Result is valid even when err is not nil. Without an active session
// nothing is graded and state.ErrNotLoggedIn is returned.
func (r *Recorder) Submit(ctx context.Context, q Question, choice int, elapsed time.Duration) (Result, error) {
	sessionID := r.state.SessionID()
	if sessionID == "" {
		return Result{}, state.ErrNotLoggedIn
	}
	player, ok := r.state.ActingPlayer()
	if !ok {
		return Result{}, state.ErrNoPlayer
	}

	res := Result{
		Question: q,
		Player:   player,
		Choice:   choice,
		Correct:  Grade(q, choice),
		Elapsed:  elapsed,
	}
	now := r.now()

	if res.Correct {
		if err := r.state.RecordCorrect(player.Index); err != nil {
			r.log.Error("record score failed", zap.Error(err))
		}
		res.Player.Score++
	}
	r.state.AppendHistory(state.Answer{
		QuestionID: q.ID,
		Player:     player.Name,
		Correct:    res.Correct,
		Elapsed:    elapsed,
		At:         now,
	})

	rec := AnswerRecord{
		QuestionID: q.ID,
		Student:    player.Name,
		IsCorrect:  res.Correct,
		TimeTaken:  elapsed.Seconds(),
		Timestamp:  now.Format(AnswerTimeLayout),
	}
	key, err := r.store.Push(ctx, remote.AnswersPath(sessionID), rec)
	if err != nil {
		r.log.Warn("answer upload failed", zap.String("question", q.ID), zap.Error(err))
		return res, fmt.Errorf("upload answer: %w", err)
	}
	res.Key = key
	r.log.Info("answer recorded",
		zap.String("question", q.ID),
		zap.String("student", player.Name),
		zap.Bool("correct", res.Correct),
		zap.Duration("elapsed", elapsed))
	return res, nil
}
