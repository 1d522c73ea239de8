package app

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quizflow/quizflow/internal/quiz"
	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/token"
)

// TestLiveQuizFlow loads a question from a real database and walks the
// model from a scanned card to the quiz view. Nothing is uploaded.
// Skipped unless QUIZFLOW_LIVE_URL is set.
func TestLiveQuizFlow(t *testing.T) {
	url := os.Getenv("QUIZFLOW_LIVE_URL")
	if url == "" {
		t.Skip("QUIZFLOW_LIVE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := remote.NewRTDB(url, os.Getenv("QUIZFLOW_AUTH_TOKEN"), nil)
	qs, skipped, err := quiz.LoadBank(ctx, db, "")
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	fmt.Printf("Bank: %d questions, %d skipped\n", len(qs), skipped)
	for d, n := range quiz.BankSummary(qs) {
		fmt.Printf("  %s: %d\n", d, n)
	}

	var tier token.Difficulty
	for _, d := range []token.Difficulty{token.Easy, token.Medium, token.Hard} {
		if len(quiz.ByDifficulty(qs, d)) > 0 {
			tier = d
			break
		}
	}
	if !tier.Valid() {
		t.Skip("bank has no playable questions")
	}

	env := newTestEnv(t, "")
	env.deps.Selector = quiz.NewSelector(db, env.deps.State, quiz.SelectorOptions{})
	if err := env.deps.State.SetSession("live", []string{"Live"}); err != nil {
		t.Fatal(err)
	}
	if err := env.deps.State.SetActingPlayer(0); err != nil {
		t.Fatal(err)
	}

	m := env.model()
	m, _ = applyUpdate(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewScan, seq: m.navSeq})
	m, cmd := applyUpdate(t, m, TokenMsg{Text: tier.Payload(), scanner: m.scanner})
	if cmd == nil {
		t.Fatal("card should load a question")
	}
	m, _ = applyUpdate(t, m, cmd())
	if m.question == nil {
		t.Fatalf("no question: %s", m.status)
	}

	fmt.Println("=== Quiz View ===")
	fmt.Println(m.View())
}
