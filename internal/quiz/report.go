package quiz

import (
	"context"
	"fmt"

	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/state"
	"github.com/quizflow/quizflow/internal/token"
)

// Score is one line of the scoreboard.
type Score struct {
	Name    string
	Correct int
}

// Scoreboard returns the named players with their correct answer counts, in
// roster order.
func Scoreboard(st *state.Manager) []Score {
	roster := st.Roster()
	scores := make([]Score, 0, len(roster))
	for _, p := range roster {
		scores = append(scores, Score{Name: p.Name, Correct: p.Score})
	}
	return scores
}

// BankSummary counts parsed questions per tier. Tiers outside 1..3 are
// counted under token.None.
func BankSummary(qs []Question) map[token.Difficulty]int {
	counts := make(map[token.Difficulty]int)
	for _, q := range qs {
		d := q.Difficulty
		if !d.Valid() {
			d = token.None
		}
		counts[d]++
	}
	return counts
}

// LoadBank fetches and parses the whole bank at path.
func LoadBank(ctx context.Context, store remote.Store, path string) ([]Question, int, error) {
	root, err := store.Get(ctx, path)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch bank: %w", err)
	}
	return ParseQuestions(root)
}

// SessionAnswers returns the uploaded answers of a session in key order.
// Records that do not decode are skipped.
func SessionAnswers(ctx context.Context, store remote.Store, sessionID string) ([]AnswerRecord, error) {
	node, err := store.Get(ctx, remote.AnswersPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}
	kids, err := node.Children()
	if err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}
	answers := make([]AnswerRecord, 0, len(kids))
	for _, k := range kids {
		var rec AnswerRecord
		if err := k.Decode(&rec); err != nil {
			continue
		}
		answers = append(answers, rec)
	}
	return answers, nil
}
