// Package quiz picks questions from the remote bank, grades answers and
// records classroom sessions.
package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/token"
)

// Defaults for fields a question record may omit.
const (
	DefaultType   = "quiz"
	DefaultReward = 10
)

// Question is one multiple-choice question from the bank.
type Question struct {
	ID           string
	Type         string
	Text         string
	Options      []string
	CorrectIndex int
	Difficulty   token.Difficulty
	Reward       int
}

// Answerable reports whether choice is one of the options.
func (q Question) Answerable(choice int) bool {
	return choice >= 0 && choice < len(q.Options)
}

var errNotQuestion = errors.New("not a question")

// ParseQuestion reads one bank record. Records without text or options are
// rejected, so sibling nodes such as game_sessions never become questions.
func ParseQuestion(n remote.Node) (Question, error) {
	q := Question{
		ID:         n.Key,
		Type:       DefaultType,
		Reward:     DefaultReward,
		Difficulty: token.Easy,
	}

	text, err := n.Child("questionText")
	if err != nil {
		return q, fmt.Errorf("question %q: %w", n.Key, err)
	}
	q.Text = strings.TrimSpace(text.String())
	if q.Text == "" {
		return q, fmt.Errorf("question %q: %w", n.Key, errNotQuestion)
	}

	if t, _ := n.Child("type"); t.Exists() {
		q.Type = t.String()
	}
	if r, _ := n.Child("reward"); r.Exists() {
		if q.Reward, err = intValue(r); err != nil {
			return q, fmt.Errorf("question %q reward: %w", n.Key, err)
		}
	}
	if d, _ := n.Child("difficultyLevel"); d.Exists() {
		v, err := intValue(d)
		if err != nil {
			return q, fmt.Errorf("question %q difficulty: %w", n.Key, err)
		}
		q.Difficulty = token.Difficulty(v)
	}
	if c, _ := n.Child("correctOptionIndex"); c.Exists() {
		if q.CorrectIndex, err = intValue(c); err != nil {
			return q, fmt.Errorf("question %q correct index: %w", n.Key, err)
		}
	}

	opts, err := n.Child("options")
	if err != nil {
		return q, fmt.Errorf("question %q: %w", n.Key, err)
	}
	kids, err := opts.Children()
	if err != nil {
		return q, fmt.Errorf("question %q options: %w", n.Key, err)
	}
	for _, k := range kids {
		q.Options = append(q.Options, k.String())
	}
	if len(q.Options) == 0 {
		return q, fmt.Errorf("question %q: %w", n.Key, errNotQuestion)
	}
	if !q.Answerable(q.CorrectIndex) {
		return q, fmt.Errorf("question %q: correct index %d out of range", n.Key, q.CorrectIndex)
	}
	return q, nil
}

// ParseQuestions parses every child of root. Malformed children are skipped
// and counted.
func ParseQuestions(root remote.Node) ([]Question, int, error) {
	kids, err := root.Children()
	if err != nil {
		return nil, 0, err
	}
	var qs []Question
	skipped := 0
	for _, k := range kids {
		q, err := ParseQuestion(k)
		if err != nil {
			skipped++
			continue
		}
		qs = append(qs, q)
	}
	return qs, skipped, nil
}

// intValue reads a JSON number or a numeric string.
func intValue(n remote.Node) (int, error) {
	var f json.Number
	if err := json.Unmarshal(n.Raw(), &f); err == nil {
		if i, err := f.Int64(); err == nil {
			return int(i), nil
		}
		v, err := f.Float64()
		if err != nil {
			return 0, err
		}
		return int(v), nil
	}
	return strconv.Atoi(strings.TrimSpace(n.String()))
}

// ByDifficulty filters qs to tier d, keeping order.
func ByDifficulty(qs []Question, d token.Difficulty) []Question {
	var out []Question
	for _, q := range qs {
		if q.Difficulty == d {
			out = append(out, q)
		}
	}
	return out
}
