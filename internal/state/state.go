// Package state holds the classroom session: roster, scores and the current
// session id, persisted to SQLite, plus the memory-only scan and quiz state.
package state

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/token"
)

// MaxPlayers is the number of roster slots.
const MaxPlayers = 4

// Durable keys.
const (
	KeySessionID   = "CurrentSessionID"
	KeyNamePrefix  = "PlayerName_"
	KeyScorePrefix = "PlayerScore_"
)

// NameKey returns the key of roster slot i.
func NameKey(i int) string { return KeyNamePrefix + strconv.Itoa(i) }

// ScoreKey returns the score key of roster slot i.
func ScoreKey(i int) string { return KeyScorePrefix + strconv.Itoa(i) }

var (
	ErrNoPlayer    = errors.New("no player in that slot")
	ErrNotLoggedIn = errors.New("no active session")
)

// Player is a named roster slot.
type Player struct {
	Index int
	Name  string
	Score int
}

// Answer is one locally recorded answer.
type Answer struct {
	QuestionID string
	Player     string
	Correct    bool
	Elapsed    time.Duration
	At         time.Time
}

// Manager is the in-memory session state. All views share one Manager.
type Manager struct {
	mu    sync.Mutex
	store *Store
	log   *zap.Logger

	sessionID string
	names     [MaxPlayers]string
	scores    [MaxPlayers]int

	acting     int
	difficulty token.Difficulty
	pinned     string
	used       map[token.Difficulty]map[string]struct{}
	history    []Answer
}

// NewManager returns a Manager with default state. Call Load to restore.
func NewManager(store *Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, log: logger}
	m.resetLocked()
	return m
}

func (m *Manager) resetLocked() {
	m.sessionID = ""
	m.names = [MaxPlayers]string{}
	m.scores = [MaxPlayers]int{}
	m.acting = -1
	m.difficulty = token.None
	m.pinned = ""
	m.used = make(map[token.Difficulty]map[string]struct{})
	m.history = nil
}

// Load replaces the durable fields with what is stored. Missing keys read as
// empty names and zero scores. Memory-only fields are left alone.
func (m *Manager) Load() error {
	prefs, err := m.store.Prefs()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessionID = prefs[KeySessionID]
	for i := 0; i < MaxPlayers; i++ {
		m.names[i] = prefs[NameKey(i)]
		m.scores[i] = 0
		if v, ok := prefs[ScoreKey(i)]; ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				m.log.Warn("bad stored score", zap.String("key", ScoreKey(i)), zap.String("value", v))
				continue
			}
			m.scores[i] = n
		}
	}
	return nil
}

// Save writes the durable fields in one transaction.
func (m *Manager) Save() error {
	m.mu.Lock()
	err := m.saveLocked()
	m.mu.Unlock()
	return err
}

func (m *Manager) saveLocked() error {
	values := map[string]string{KeySessionID: m.sessionID}
	for i := 0; i < MaxPlayers; i++ {
		values[NameKey(i)] = m.names[i]
		values[ScoreKey(i)] = strconv.Itoa(m.scores[i])
	}
	if err := m.store.PutPrefs(values); err != nil {
		m.log.Error("save state failed", zap.Error(err))
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Clear resets everything and erases the durable rows.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()
	if err := m.store.DeleteAll(); err != nil {
		m.log.Error("clear state failed", zap.Error(err))
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}

// LoggedIn reports whether a session id is set.
func (m *Manager) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID != ""
}

// SessionID returns the current session id, empty when logged out.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// SetSession starts a new session with the given roster and saves. Scores,
// history and the per-session selection state start empty. Names beyond
// MaxPlayers are dropped.
func (m *Manager) SetSession(id string, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()
	m.sessionID = id
	copy(m.names[:], names)
	return m.saveLocked()
}

// Names returns all roster slots, including empty ones.
func (m *Manager) Names() [MaxPlayers]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names
}

// Roster returns the named slots in slot order.
func (m *Manager) Roster() []Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	var players []Player
	for i, name := range m.names {
		if name == "" {
			continue
		}
		players = append(players, Player{Index: i, Name: name, Score: m.scores[i]})
	}
	return players
}

// Player returns slot i if it holds a name.
func (m *Manager) Player(i int) (Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= MaxPlayers || m.names[i] == "" {
		return Player{}, false
	}
	return Player{Index: i, Name: m.names[i], Score: m.scores[i]}, true
}

// SetActingPlayer chooses who answers next.
func (m *Manager) SetActingPlayer(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= MaxPlayers || m.names[i] == "" {
		return ErrNoPlayer
	}
	m.acting = i
	return nil
}

// ActingPlayer returns the acting player, if one is chosen.
func (m *Manager) ActingPlayer() (Player, bool) {
	m.mu.Lock()
	i := m.acting
	m.mu.Unlock()
	return m.Player(i)
}

// RecordCorrect credits slot i with one correct answer and saves at once.
func (m *Manager) RecordCorrect(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= MaxPlayers || m.names[i] == "" {
		return ErrNoPlayer
	}
	m.scores[i]++
	return m.saveLocked()
}

// SelectDifficulty records the tier resolved from a scan.
func (m *Manager) SelectDifficulty(d token.Difficulty) {
	m.mu.Lock()
	m.difficulty = d
	m.mu.Unlock()
}

// Difficulty returns the selected tier, token.None when nothing is selected.
func (m *Manager) Difficulty() token.Difficulty {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.difficulty
}

// ConsumeDifficulty clears the selection and returns what it was.
func (m *Manager) ConsumeDifficulty() token.Difficulty {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.difficulty
	m.difficulty = token.None
	return d
}

// PinnedQuestionID returns the fixed question override, if any.
func (m *Manager) PinnedQuestionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pinned
}

// SetPinnedQuestionID sets or, with "", clears the fixed question override.
func (m *Manager) SetPinnedQuestionID(id string) {
	m.mu.Lock()
	m.pinned = id
	m.mu.Unlock()
}

// Used returns a copy of the served question ids for tier d.
func (m *Manager) Used(d token.Difficulty) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.used[d]))
	for id := range m.used[d] {
		out[id] = true
	}
	return out
}

// MarkUsed adds id to the served set of tier d.
func (m *Manager) MarkUsed(d token.Difficulty, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.used[d]
	if !ok {
		set = make(map[string]struct{})
		m.used[d] = set
	}
	set[id] = struct{}{}
}

// ResetUsed forgets the served set of tier d.
func (m *Manager) ResetUsed(d token.Difficulty) {
	m.mu.Lock()
	delete(m.used, d)
	m.mu.Unlock()
}

// AppendHistory records an answer locally.
func (m *Manager) AppendHistory(a Answer) {
	m.mu.Lock()
	m.history = append(m.history, a)
	m.mu.Unlock()
}

// History returns the local answers in the order they were given.
func (m *Manager) History() []Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Answer, len(m.history))
	copy(out, m.history)
	return out
}
