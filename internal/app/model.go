package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/quiz"
	"github.com/quizflow/quizflow/internal/state"
)

// View is one screen of the app.
type View int

const (
	ViewLobby View = iota
	ViewSelectPlayer
	ViewScan
	ViewQuiz
	ViewResult
)

func (v View) String() string {
	switch v {
	case ViewLobby:
		return "lobby"
	case ViewSelectPlayer:
		return "select player"
	case ViewScan:
		return "scan"
	case ViewQuiz:
		return "quiz"
	case ViewResult:
		return "result"
	}
	return "unknown"
}

// gated views need an active session.
func (v View) gated() bool {
	return v == ViewSelectPlayer || v == ViewScan || v == ViewQuiz
}

// Delays before returning to the player list.
const (
	LoadErrorDelay = 2 * time.Second
	AnswerDelay    = 1500 * time.Millisecond
	scanTickEvery  = 250 * time.Millisecond
)

// Deps are the long-lived services shared by every view.
type Deps struct {
	State    *state.Manager
	Lobby    *quiz.Lobby
	Selector *quiz.Selector
	Recorder *quiz.Recorder
	// Camera is reused by every scan visit.
	Camera       Scanner
	ScanInterval time.Duration
	Logger       *zap.Logger
	Context      context.Context
}

// Model is the root bubbletea model.
type Model struct {
	deps Deps
	log  *zap.Logger
	ctx  context.Context

	view   View
	width  int
	height int

	// Lobby
	names         [state.MaxPlayers]string
	field         int
	creating      bool
	confirmCamera bool

	// Select player
	cursor        int
	confirmLogout bool

	// Scan
	scanner    *ScanController
	scanStatus string

	// Quiz
	loading  bool
	question *quiz.Question
	shownAt  time.Time
	answered bool
	choice   int
	result   *quiz.Result

	// Result
	scores []quiz.Score

	status    string
	statusErr bool
	navSeq    int
	now       func() time.Time
}

// New creates a Model on the lobby view.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	return Model{
		deps: deps,
		log:  deps.Logger.Named("app"),
		ctx:  deps.Context,
		view: ViewLobby,
		now:  time.Now,
	}
}

// Init loads durable state.
func (m Model) Init() tea.Cmd {
	return loadStateCmd(m.deps.State)
}

func loadStateCmd(st *state.Manager) tea.Cmd {
	return func() tea.Msg {
		return StateLoadedMsg{Err: st.Load()}
	}
}

// createSessionCmd uploads a new session.
func createSessionCmd(ctx context.Context, lobby *quiz.Lobby, names []string) tea.Cmd {
	return func() tea.Msg {
		id, err := lobby.CreateSession(ctx, names)
		if err != nil {
			return SessionErrorMsg{Err: err}
		}
		return SessionCreatedMsg{ID: id}
	}
}

// waitTokenCmd blocks until the scanner reports text or stops.
func waitTokenCmd(sc *ScanController) tea.Cmd {
	return func() tea.Msg {
		select {
		case text := <-sc.Tokens():
			return TokenMsg{Text: text, scanner: sc}
		case <-sc.Done():
			return ScanEndedMsg{Err: sc.Status().Err, scanner: sc}
		}
	}
}

func scanTickCmd(sc *ScanController) tea.Cmd {
	return tea.Tick(scanTickEvery, func(time.Time) tea.Msg {
		return ScanTickMsg{scanner: sc}
	})
}

// loadQuestionCmd picks the next question for the scanned difficulty.
func loadQuestionCmd(ctx context.Context, sel *quiz.Selector) tea.Cmd {
	return func() tea.Msg {
		q, err := sel.Next(ctx)
		if err != nil {
			return QuestionErrorMsg{Err: err}
		}
		return QuestionLoadedMsg{Question: q}
	}
}

// submitAnswerCmd grades and uploads an answer.
func submitAnswerCmd(ctx context.Context, rec *quiz.Recorder, q quiz.Question, choice int, elapsed time.Duration) tea.Cmd {
	return func() tea.Msg {
		res, err := rec.Submit(ctx, q, choice, elapsed)
		return AnswerSubmittedMsg{Result: res, Err: err}
	}
}

// loadErrorText tells the players whether another scan may help or the bank
// needs attention first.
func loadErrorText(err error) string {
	var le *quiz.LoadError
	if !errors.As(err, &le) {
		return "Could not load a question. " + hintRescan
	}
	if le.Retryable() {
		return le.Message + " " + hintRescan
	}
	return le.Message + " " + hintFixBank
}

const (
	hintRescan  = "Scan an L1, L2 or L3 card to try again."
	hintFixBank = "Ask the teacher to check the question bank."
)

// navigateAfter schedules a move to v.
func (m *Model) navigateAfter(d time.Duration, v View) tea.Cmd {
	m.navSeq++
	seq := m.navSeq
	return tea.Tick(d, func(time.Time) tea.Msg {
		return NavigateMsg{View: v, seq: seq}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StateLoadedMsg:
		if msg.Err != nil {
			m.setError("Could not read saved state: " + msg.Err.Error())
			return m, nil
		}
		m.restoreLobby()
		return m, nil

	case SessionCreatedMsg:
		m.creating = false
		m.setStatus("Session created.")
		return m, m.goTo(ViewSelectPlayer)

	case SessionErrorMsg:
		m.creating = false
		m.setError("Could not create the session. Try again.")
		return m, nil

	case TokenMsg:
		if msg.scanner != m.scanner || m.view != ViewScan {
			return m, nil
		}
		if _, ok := m.scanner.HandleToken(msg.Text); !ok {
			return m, waitTokenCmd(m.scanner)
		}
		m.scanner = nil
		cmd := m.goTo(ViewQuiz)
		if m.view != ViewQuiz {
			return m, cmd
		}
		m.loading = true
		return m, loadQuestionCmd(m.ctx, m.deps.Selector)

	case ScanEndedMsg:
		if msg.scanner != m.scanner || m.view != ViewScan {
			return m, nil
		}
		if msg.Err != nil {
			m.setError(fmt.Sprintf("Camera stopped: %v. Press r to retry.", msg.Err))
		}
		return m, nil

	case ScanTickMsg:
		if msg.scanner != m.scanner || m.view != ViewScan {
			return m, nil
		}
		m.scanStatus = describeScan(m.scanner)
		return m, scanTickCmd(m.scanner)

	case QuestionLoadedMsg:
		if m.view != ViewQuiz {
			return m, nil
		}
		q := msg.Question
		m.loading = false
		m.question = &q
		m.answered = false
		m.result = nil
		m.choice = 0
		m.shownAt = m.now()
		m.status = ""
		return m, nil

	case QuestionErrorMsg:
		if m.view != ViewQuiz {
			return m, nil
		}
		m.loading = false
		m.setError(loadErrorText(msg.Err))
		return m, m.navigateAfter(LoadErrorDelay, ViewSelectPlayer)

	case AnswerSubmittedMsg:
		if m.view != ViewQuiz {
			return m, nil
		}
		switch {
		case errors.Is(msg.Err, state.ErrNotLoggedIn):
			m.setError("No active session. Create one first.")
			return m, m.navigateAfter(LoadErrorDelay, ViewLobby)
		case errors.Is(msg.Err, state.ErrNoPlayer):
			m.setError("No player selected.")
			return m, m.navigateAfter(LoadErrorDelay, ViewSelectPlayer)
		}
		res := msg.Result
		m.result = &res
		switch {
		case msg.Err != nil:
			m.setError("Answer saved here but not uploaded.")
		case res.Correct:
			m.setStatus(fmt.Sprintf("Correct! %s has %d.", res.Player.Name, res.Player.Score))
		default:
			m.setStatus("Not quite.")
		}
		return m, m.navigateAfter(AnswerDelay, ViewSelectPlayer)

	case NavigateMsg:
		if msg.seq != m.navSeq {
			return m, nil
		}
		return m, m.goTo(msg.View)
	}

	return m, nil
}

// goTo switches view. Gated views without a session fall back to the lobby.
func (m *Model) goTo(v View) tea.Cmd {
	m.navSeq++
	if m.view == ViewScan && m.scanner != nil {
		m.scanner.Back()
		m.scanner = nil
	}
	if v.gated() && !m.deps.State.LoggedIn() {
		m.log.Warn("no session for view", zap.Stringer("view", v))
		m.view = ViewLobby
		m.restoreLobby()
		m.setError("No active session. Create one first.")
		return nil
	}

	m.log.Debug("view", zap.Stringer("from", m.view), zap.Stringer("to", v))
	m.view = v
	m.confirmCamera = false
	m.confirmLogout = false

	switch v {
	case ViewLobby:
		m.restoreLobby()
	case ViewSelectPlayer:
		m.cursor = 0
		if p, ok := m.deps.State.ActingPlayer(); ok {
			for i, r := range m.deps.State.Roster() {
				if r.Index == p.Index {
					m.cursor = i
				}
			}
		}
	case ViewScan:
		return m.enterScan()
	case ViewQuiz:
		m.question = nil
		m.result = nil
		m.answered = false
	case ViewResult:
		m.scores = quiz.Scoreboard(m.deps.State)
	}
	return nil
}

func (m *Model) enterScan() tea.Cmd {
	if _, ok := m.deps.State.ActingPlayer(); !ok {
		m.view = ViewSelectPlayer
		m.setError("Choose a player first.")
		return nil
	}
	m.scanner = NewScanController(m.deps.Camera, m.deps.State, m.deps.ScanInterval, m.deps.Logger)
	m.scanner.Enter(m.ctx)
	m.scanStatus = "starting camera"
	m.status = ""
	return tea.Batch(waitTokenCmd(m.scanner), scanTickCmd(m.scanner))
}

// restoreLobby shows the current roster when a session is active.
func (m *Model) restoreLobby() {
	m.creating = false
	m.field = 0
	if m.deps.State.LoggedIn() {
		m.names = m.deps.State.Names()
		return
	}
	m.names = [state.MaxPlayers]string{}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		if m.scanner != nil {
			m.scanner.Back()
		}
		return m, tea.Quit
	}

	switch m.view {
	case ViewLobby:
		return m.lobbyKey(msg)
	case ViewSelectPlayer:
		return m.selectPlayerKey(key)
	case ViewScan:
		return m.scanKey(key)
	case ViewQuiz:
		return m.quizKey(key)
	case ViewResult:
		return m.resultKey(key)
	}
	return m, nil
}

func (m Model) lobbyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	loggedIn := m.deps.State.LoggedIn()

	if m.confirmCamera {
		switch key {
		case KeyYes, KeyEnter:
			m.confirmCamera = false
			return m, m.goTo(ViewScan)
		case KeyNo, KeyEsc:
			m.confirmCamera = false
		}
		return m, nil
	}

	if loggedIn {
		switch key {
		case KeyEnter:
			return m, m.goTo(ViewSelectPlayer)
		case KeyCamera:
			m.confirmCamera = true
		case KeyQuit, KeyQuitUpper:
			return m, tea.Quit
		}
		return m, nil
	}

	if m.creating {
		return m, nil
	}
	switch key {
	case KeyEnter:
		m.creating = true
		m.setStatus("Creating session...")
		return m, createSessionCmd(m.ctx, m.deps.Lobby, m.names[:])
	case KeyTab, KeyDown:
		m.field = (m.field + 1) % state.MaxPlayers
		return m, nil
	case KeyShiftTab, KeyUp:
		m.field = (m.field + state.MaxPlayers - 1) % state.MaxPlayers
		return m, nil
	case KeyBackspace:
		r := []rune(m.names[m.field])
		if len(r) > 0 {
			m.names[m.field] = string(r[:len(r)-1])
		}
		return m, nil
	case KeyEsc:
		return m, tea.Quit
	}
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.names[m.field] += string(msg.Runes)
	}
	return m, nil
}

func (m Model) selectPlayerKey(key string) (tea.Model, tea.Cmd) {
	roster := m.deps.State.Roster()

	if m.confirmLogout {
		switch key {
		case KeyYes, KeyEnter:
			return m, m.goTo(ViewResult)
		case KeyNo, KeyEsc:
			m.confirmLogout = false
		}
		return m, nil
	}

	switch key {
	case KeyUp, KeyK:
		if m.cursor > 0 {
			m.cursor--
		}
	case KeyDown, KeyJ:
		if m.cursor < len(roster)-1 {
			m.cursor++
		}
	case KeyEnter:
		if m.cursor >= len(roster) {
			return m, nil
		}
		if err := m.deps.State.SetActingPlayer(roster[m.cursor].Index); err != nil {
			m.setError("That slot is empty.")
			return m, nil
		}
		return m, m.goTo(ViewScan)
	case KeyLogout:
		m.confirmLogout = true
	case KeyEsc, KeyBack:
		return m, m.goTo(ViewLobby)
	case KeyQuit, KeyQuitUpper:
		return m, tea.Quit
	default:
		// Number keys pick a player directly.
		if n, ok := digit(key); ok && n >= 1 && n <= len(roster) {
			m.cursor = n - 1
			return m.selectPlayerKey(KeyEnter)
		}
	}
	return m, nil
}

func (m Model) scanKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyEsc, KeyBack:
		return m, m.goTo(ViewSelectPlayer)
	case KeyRetry:
		if m.scanner != nil && m.scanner.Restart(m.ctx) {
			m.status = ""
			return m, waitTokenCmd(m.scanner)
		}
	}
	return m, nil
}

func (m Model) quizKey(key string) (tea.Model, tea.Cmd) {
	if m.question == nil {
		if (key == KeyEsc || key == KeyBack) && !m.loading {
			return m, m.goTo(ViewSelectPlayer)
		}
		return m, nil
	}
	if m.answered {
		return m, nil
	}

	switch key {
	case KeyUp, KeyK:
		if m.choice > 0 {
			m.choice--
		}
		return m, nil
	case KeyDown, KeyJ:
		if m.choice < len(m.question.Options)-1 {
			m.choice++
		}
		return m, nil
	case KeyEnter:
		return m.answer(m.choice)
	}
	if n, ok := digit(key); ok && n >= 1 && n <= len(m.question.Options) {
		return m.answer(n - 1)
	}
	return m, nil
}

// answer submits once per question.
func (m Model) answer(choice int) (tea.Model, tea.Cmd) {
	m.answered = true
	m.choice = choice
	elapsed := m.now().Sub(m.shownAt)
	return m, submitAnswerCmd(m.ctx, m.deps.Recorder, *m.question, choice, elapsed)
}

func (m Model) resultKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case KeyEnter, KeyEsc:
		if err := m.deps.State.Clear(); err != nil {
			m.setError("Could not clear the session.")
		} else {
			m.setStatus("Logged out.")
		}
		m.scores = nil
		return m, m.goTo(ViewLobby)
	case KeyQuit, KeyQuitUpper:
		return m, tea.Quit
	}
	return m, nil
}

func digit(key string) (int, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	return int(key[0] - '0'), true
}

func describeScan(sc *ScanController) string {
	st := sc.Status()
	switch {
	case st.Starting:
		return "starting camera"
	case st.Running:
		return fmt.Sprintf("scanning %dx%d, %d frames, %d codes", st.Width, st.Height, st.Attempts, st.Hits)
	case st.Err != nil:
		return "stopped: " + st.Err.Error()
	}
	return "stopped"
}
