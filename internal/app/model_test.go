package app

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quizflow/quizflow/internal/quiz"
	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/scan"
	"github.com/quizflow/quizflow/internal/state"
	"github.com/quizflow/quizflow/internal/token"
)

const testBank = `{
	"Q1": {"questionText": "2+2?", "options": ["3", "4"], "correctOptionIndex": 1, "difficultyLevel": 2},
	"Q2": {"questionText": "Capital of France?", "options": ["Paris", "Rome"], "difficultyLevel": 2, "reward": 20},
	"Q3": {"questionText": "1+1?", "options": ["2", "3"], "difficultyLevel": 1}
}`

type testEnv struct {
	deps  Deps
	bank  *remote.Memory
	cam   *fakeScanner
	clock time.Time
}

func newTestEnv(t *testing.T, bank string) *testEnv {
	t.Helper()
	mem := remote.NewMemory()
	if bank != "" {
		var tree any
		if err := json.Unmarshal([]byte(bank), &tree); err != nil {
			t.Fatalf("bank: %v", err)
		}
		if err := mem.Set(context.Background(), "", tree); err != nil {
			t.Fatalf("seed bank: %v", err)
		}
	}
	st := newTestManager(t)
	cam := newFakeScanner()
	return &testEnv{
		bank: mem,
		cam:  cam,
		deps: Deps{
			State:    st,
			Lobby:    quiz.NewLobby(mem, st, nil),
			Selector: quiz.NewSelector(mem, st, quiz.SelectorOptions{Rand: rand.New(rand.NewPCG(1, 2))}),
			Recorder: quiz.NewRecorder(mem, st, nil),
			Camera:   cam,
		},
		clock: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) model() Model {
	m := New(e.deps)
	m.now = func() time.Time { return e.clock }
	m.width = 80
	m.height = 24
	return m
}

func applyUpdate(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	model, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T", updated)
	}
	return model, cmd
}

func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case KeyEnter:
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case KeyEsc:
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case KeyTab:
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case KeyBackspace:
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	return applyUpdate(t, m, msg)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = press(t, m, string(r))
	}
	return m
}

// loggedIn starts a session for names with no players acting.
func (e *testEnv) loggedIn(t *testing.T, names ...string) {
	t.Helper()
	if _, err := e.deps.Lobby.CreateSession(context.Background(), names); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
}

func TestNewModel(t *testing.T) {
	env := newTestEnv(t, "")
	m := New(env.deps)
	if m.view != ViewLobby {
		t.Errorf("view = %v, want lobby", m.view)
	}
	if m.scanner != nil {
		t.Error("new model should not be scanning")
	}
	if m.View() != "Initializing..." {
		t.Error("model without a size should render the placeholder")
	}
}

func TestInitRestoresSession(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy", "Bob")

	// Load rereads the saved session into the lobby fields.
	m := env.model()
	m, _ = applyUpdate(t, m, m.Init()())
	if m.names[0] != "Amy" || m.names[1] != "Bob" {
		t.Errorf("names = %v", m.names)
	}
	if !strings.Contains(m.View(), "SESSION IN PROGRESS") {
		t.Error("lobby should show the running session")
	}
}

func TestCreateSessionFlow(t *testing.T) {
	env := newTestEnv(t, testBank)
	m := env.model()
	m, _ = applyUpdate(t, m, m.Init()())

	m = typeText(t, m, "Amy")
	m, _ = press(t, m, KeyTab)
	m = typeText(t, m, "Bobb")
	m, _ = press(t, m, KeyBackspace)
	m, _ = press(t, m, KeyTab)
	m, _ = press(t, m, KeyTab)
	m = typeText(t, m, "Cara")

	m, cmd := press(t, m, KeyEnter)
	if cmd == nil {
		t.Fatal("enter should create the session")
	}
	if !m.creating {
		t.Error("model should be creating")
	}
	m, _ = applyUpdate(t, m, cmd())

	if m.view != ViewSelectPlayer {
		t.Fatalf("view = %v, want select player", m.view)
	}
	want := [state.MaxPlayers]string{"Amy", "Bob", "Student_3", "Cara"}
	if got := env.deps.State.Names(); got != want {
		t.Errorf("names = %v, want %v", got, want)
	}
	sessions, err := env.bank.Get(context.Background(), remote.SessionsPath)
	if err != nil || !sessions.Exists() {
		t.Errorf("session not uploaded: %v", err)
	}
}

func TestCreateSessionError(t *testing.T) {
	env := newTestEnv(t, "")
	env.deps.Lobby = quiz.NewLobby(failingStore{}, env.deps.State, nil)
	m := env.model()

	m, cmd := press(t, m, KeyEnter)
	m, _ = applyUpdate(t, m, cmd())

	if m.view != ViewLobby {
		t.Errorf("view = %v, want lobby", m.view)
	}
	if !m.statusErr {
		t.Error("failure should show an error")
	}
	if env.deps.State.LoggedIn() {
		t.Error("failed upload must not start a session")
	}
}

func TestGatedViewWithoutSession(t *testing.T) {
	env := newTestEnv(t, "")
	m := env.model()

	for _, v := range []View{ViewSelectPlayer, ViewScan, ViewQuiz} {
		m, _ = applyUpdate(t, m, NavigateMsg{View: v, seq: m.navSeq})
		if m.view != ViewLobby {
			t.Errorf("%v without session: view = %v, want lobby", v, m.view)
		}
		if !m.statusErr {
			t.Errorf("%v without session should explain the bounce", v)
		}
	}
	if starts, _ := env.cam.counts(); starts != 0 {
		t.Error("camera started without a session")
	}
}

func TestScanRequiresPlayer(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy")
	m := env.model()

	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewScan, seq: m.navSeq})
	if m.view != ViewSelectPlayer {
		t.Errorf("view = %v, want select player", m.view)
	}
	if m.scanner != nil {
		t.Error("scanner created without a player")
	}
}

// scanAs selects player n and returns the model on the scan view.
func scanAs(t *testing.T, env *testEnv, n string) Model {
	t.Helper()
	m := env.model()
	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewSelectPlayer, seq: m.navSeq})
	m, cmd := press(t, m, n)
	if m.view != ViewScan {
		t.Fatalf("view = %v, want scan", m.view)
	}
	if cmd == nil || m.scanner == nil {
		t.Fatal("scan view should start scanning")
	}
	return m
}

func TestScanToQuizFlow(t *testing.T) {
	env := newTestEnv(t, testBank)
	env.loggedIn(t, "Amy", "Bob")
	m := scanAs(t, env, "2")

	if p, _ := env.deps.State.ActingPlayer(); p.Name != "Bob" {
		t.Errorf("acting player = %q, want Bob", p.Name)
	}
	if starts, _ := env.cam.counts(); starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}

	// A near miss keeps the camera going.
	m, cmd := applyUpdate(t, m, TokenMsg{Text: "http://x?qid=qL1_01", scanner: m.scanner})
	if m.view != ViewScan || cmd == nil {
		t.Fatal("near miss should keep scanning")
	}

	m, cmd = applyUpdate(t, m, TokenMsg{Text: "QUIZ|qid=qL2", scanner: m.scanner})
	if m.view != ViewQuiz {
		t.Fatalf("view = %v, want quiz", m.view)
	}
	if !m.loading || cmd == nil {
		t.Fatal("quiz should be loading a question")
	}
	if _, stops := env.cam.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
	if !strings.Contains(m.View(), "Loading question") {
		t.Error("quiz should show the loading line")
	}

	m, _ = applyUpdate(t, m, cmd())
	if m.question == nil {
		t.Fatalf("no question loaded, status %q", m.status)
	}
	if m.question.Difficulty != token.Medium {
		t.Errorf("difficulty = %v, want medium", m.question.Difficulty)
	}
	if env.deps.State.Difficulty() != token.None {
		t.Error("difficulty should be consumed by the load")
	}
	if !strings.Contains(m.View(), m.question.Text) {
		t.Error("quiz should show the question")
	}
}

func TestStaleTokenIgnored(t *testing.T) {
	env := newTestEnv(t, testBank)
	env.loggedIn(t, "Amy")
	m := scanAs(t, env, "1")
	old := m.scanner

	m, _ = press(t, m, KeyEsc)
	if m.view != ViewSelectPlayer {
		t.Fatalf("view = %v, want select player", m.view)
	}
	if env.deps.State.Difficulty() != token.None {
		t.Error("back must not select a difficulty")
	}

	m, cmd := applyUpdate(t, m, TokenMsg{Text: "QUIZ|qid=qL1", scanner: old})
	if cmd != nil || m.view != ViewSelectPlayer {
		t.Error("token from a finished visit should be ignored")
	}
	if env.deps.State.Difficulty() != token.None {
		t.Error("stale token wrote a difficulty")
	}
}

func TestScanEndedShowsRetry(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy")
	m := scanAs(t, env, "1")

	env.cam.fail(scan.ErrStartupTimeout)
	m, _ = applyUpdate(t, m, ScanEndedMsg{Err: scan.ErrStartupTimeout, scanner: m.scanner})
	if !m.statusErr || !strings.Contains(m.status, "retry") {
		t.Errorf("status = %q", m.status)
	}

	m, cmd := press(t, m, KeyRetry)
	if cmd == nil {
		t.Fatal("retry should wait for tokens again")
	}
	if starts, _ := env.cam.counts(); starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
	if m.status != "" {
		t.Errorf("retry should clear the status, got %q", m.status)
	}
}

// quizWith returns a model showing a question for the first player.
func quizWith(t *testing.T, env *testEnv, q quiz.Question) Model {
	t.Helper()
	m := scanAs(t, env, "1")
	m, _ = applyUpdate(t, m, TokenMsg{Text: "QUIZ|qid=qL1", scanner: m.scanner})
	m, _ = applyUpdate(t, m, QuestionLoadedMsg{Question: q})
	return m
}

func TestAnswerOnce(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy")
	q := quiz.Question{ID: "Q1", Text: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1, Difficulty: token.Easy, Reward: 10}
	m := quizWith(t, env, q)

	env.clock = env.clock.Add(4 * time.Second)
	m, cmd := press(t, m, "2")
	if cmd == nil {
		t.Fatal("answer should submit")
	}
	if _, again := press(t, m, "1"); again != nil {
		t.Error("second answer should be ignored")
	}

	msg, ok := cmd().(AnswerSubmittedMsg)
	if !ok {
		t.Fatal("submit should return AnswerSubmittedMsg")
	}
	if !msg.Result.Correct || msg.Result.Elapsed != 4*time.Second {
		t.Errorf("result = %+v", msg.Result)
	}

	m, next := applyUpdate(t, m, msg)
	if next == nil {
		t.Fatal("answer should schedule the return")
	}
	if !strings.Contains(m.status, "Correct") {
		t.Errorf("status = %q", m.status)
	}
	if p, _ := env.deps.State.Player(0); p.Score != 1 {
		t.Errorf("score = %d, want 1", p.Score)
	}

	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewSelectPlayer, seq: m.navSeq})
	if m.view != ViewSelectPlayer {
		t.Errorf("view = %v, want select player", m.view)
	}
}

func TestAnswerByCursor(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy")
	q := quiz.Question{ID: "Q1", Text: "Pick", Options: []string{"a", "b", "c"}, CorrectIndex: 0, Difficulty: token.Easy}
	m := quizWith(t, env, q)

	m, _ = press(t, m, KeyJ)
	m, _ = press(t, m, KeyJ)
	m, _ = press(t, m, KeyJ)
	if m.choice != 2 {
		t.Errorf("choice = %d, want 2", m.choice)
	}
	m, cmd := press(t, m, KeyEnter)
	msg := cmd().(AnswerSubmittedMsg)
	if msg.Result.Correct {
		t.Error("option c is wrong")
	}
	m, _ = applyUpdate(t, m, msg)
	if m.status != "Not quite." {
		t.Errorf("status = %q", m.status)
	}
}

func TestQuestionLoadError(t *testing.T) {
	env := newTestEnv(t, testBank)
	env.loggedIn(t, "Amy")
	m := scanAs(t, env, "1")

	m, cmd := applyUpdate(t, m, TokenMsg{Text: "QUIZ|qid=qL3", scanner: m.scanner})
	m, next := applyUpdate(t, m, cmd())

	if m.status != "No hard questions in the bank. Ask the teacher to check the question bank." || !m.statusErr {
		t.Errorf("status = %q", m.status)
	}
	if next == nil {
		t.Fatal("load error should schedule the return")
	}
	stale := m.navSeq - 1
	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewSelectPlayer, seq: stale})
	if m.view != ViewQuiz {
		t.Error("stale navigation should be ignored")
	}
	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewSelectPlayer, seq: m.navSeq})
	if m.view != ViewSelectPlayer {
		t.Errorf("view = %v, want select player", m.view)
	}
}

func TestQuestionLoadErrorWording(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"fetch", &quiz.LoadError{Message: "Could not reach the question bank.", Err: quiz.ErrFetch}, "Could not reach the question bank. Scan an L1, L2 or L3 card to try again."},
		{"no difficulty", &quiz.LoadError{Message: "No difficulty selected.", Err: quiz.ErrNoDifficulty}, "No difficulty selected. Scan an L1, L2 or L3 card to try again."},
		{"empty bank", &quiz.LoadError{Message: "The question bank is empty.", Err: quiz.ErrEmptyBank}, "The question bank is empty. Ask the teacher to check the question bank."},
		{"other", errors.New("boom"), "Could not load a question. Scan an L1, L2 or L3 card to try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testBank)
			env.loggedIn(t, "Amy")
			m := scanAs(t, env, "1")
			m, _ = applyUpdate(t, m, TokenMsg{Text: "QUIZ|qid=qL1", scanner: m.scanner})
			if m.view != ViewQuiz {
				t.Fatalf("view = %v, want quiz", m.view)
			}
			m, _ = applyUpdate(t, m, QuestionErrorMsg{Err: tt.err})
			if m.status != tt.want {
				t.Errorf("status = %q, want %q", m.status, tt.want)
			}
		})
	}
}

func TestAnswerWithoutSession(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy")
	q := quiz.Question{ID: "Q1", Text: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1, Difficulty: token.Easy}
	m := quizWith(t, env, q)

	if err := env.deps.State.Clear(); err != nil {
		t.Fatal(err)
	}
	m, cmd := press(t, m, "2")
	if cmd == nil {
		t.Fatal("answer should submit")
	}
	msg := cmd().(AnswerSubmittedMsg)
	if !errors.Is(msg.Err, state.ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", msg.Err)
	}
	m, next := applyUpdate(t, m, msg)
	if !m.statusErr || m.result != nil {
		t.Errorf("status = %q, result = %v", m.status, m.result)
	}
	if next == nil {
		t.Fatal("missing session should schedule the return")
	}
	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewLobby, seq: m.navSeq})
	if m.view != ViewLobby {
		t.Errorf("view = %v, want lobby", m.view)
	}
}

func TestLogoutShowsResults(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy", "Bob")
	if err := env.deps.State.RecordCorrect(1); err != nil {
		t.Fatal(err)
	}
	m := env.model()
	m, _ = applyUpdate(t, m, NavigateMsg{View: ViewSelectPlayer, seq: m.navSeq})

	m, _ = press(t, m, KeyLogout)
	if !m.confirmLogout {
		t.Fatal("logout should ask first")
	}
	m, _ = press(t, m, KeyNo)
	if m.confirmLogout || m.view != ViewSelectPlayer {
		t.Error("n should cancel the logout")
	}

	m, _ = press(t, m, KeyLogout)
	m, _ = press(t, m, KeyYes)
	if m.view != ViewResult {
		t.Fatalf("view = %v, want result", m.view)
	}
	if len(m.scores) != state.MaxPlayers {
		t.Errorf("scores = %d, want %d", len(m.scores), state.MaxPlayers)
	}
	if !strings.Contains(m.View(), "RESULTS") {
		t.Error("result view should render")
	}

	m, _ = press(t, m, KeyEnter)
	if m.view != ViewLobby {
		t.Errorf("view = %v, want lobby", m.view)
	}
	if env.deps.State.LoggedIn() {
		t.Error("session should be cleared")
	}
}

func TestCameraPromptFromLobby(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy")
	if err := env.deps.State.SetActingPlayer(0); err != nil {
		t.Fatal(err)
	}
	m := env.model()
	m, _ = applyUpdate(t, m, m.Init()())

	m, _ = press(t, m, KeyCamera)
	if !m.confirmCamera {
		t.Fatal("c should ask to open the camera")
	}
	m, cmd := press(t, m, KeyYes)
	if m.view != ViewScan || cmd == nil {
		t.Errorf("view = %v, want scan", m.view)
	}
}

func TestViewRendersEveryScreen(t *testing.T) {
	env := newTestEnv(t, "")
	env.loggedIn(t, "Amy")
	m := env.model()
	for _, v := range []View{ViewLobby, ViewSelectPlayer, ViewResult} {
		m.view = v
		out := m.View()
		if !strings.Contains(out, "QUIZFLOW") {
			t.Errorf("%v: missing header", v)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than 10", l)
		}
	}
	if strings.Join(lines, " ") != "the quick brown fox jumps" {
		t.Errorf("lines = %v", lines)
	}
}

// failingStore fails every call.
type failingStore struct{}

var errOffline = errors.New("offline")

func (failingStore) Get(context.Context, string) (remote.Node, error) { return remote.Node{}, errOffline }
func (failingStore) Push(context.Context, string, any) (string, error) { return "", errOffline }
func (failingStore) Set(context.Context, string, any) error           { return errOffline }
