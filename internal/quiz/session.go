package quiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/state"
)

// SessionTimeLayout is the format of SessionRecord.Timestamp.
const SessionTimeLayout = "2006-01-02 15:04:05"

// SessionRecord is the uploaded form of a classroom session.
type SessionRecord struct {
	Timestamp string   `json:"timestamp"`
	Students  []string `json:"students"`
}

// DefaultName is the name given to roster slot i when left blank.
func DefaultName(i int) string {
	return fmt.Sprintf("Student_%d", i+1)
}

// NormalizeRoster trims names and fills every blank slot with its default.
func NormalizeRoster(names []string) []string {
	out := make([]string, state.MaxPlayers)
	for i := range out {
		if i < len(names) {
			out[i] = strings.TrimSpace(names[i])
		}
		if out[i] == "" {
			out[i] = DefaultName(i)
		}
	}
	return out
}

// Lobby creates sessions.
type Lobby struct {
	store remote.Store
	state *state.Manager
	log   *zap.Logger
	now   func() time.Time
}

// NewLobby returns a Lobby writing sessions to store.
func NewLobby(store remote.Store, st *state.Manager, logger *zap.Logger) *Lobby {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lobby{store: store, state: st, log: logger, now: time.Now}
}

// CreateSession uploads a new session and, once it is stored remotely, makes
// it the current one. Local state is untouched on failure.
func (l *Lobby) CreateSession(ctx context.Context, names []string) (string, error) {
	roster := NormalizeRoster(names)
	rec := SessionRecord{
		Timestamp: l.now().Format(SessionTimeLayout),
		Students:  roster,
	}

	id, err := l.store.Push(ctx, remote.SessionsPath, rec)
	if err != nil {
		l.log.Error("create session failed", zap.Error(err))
		return "", fmt.Errorf("create session: %w", err)
	}
	if err := l.state.SetSession(id, roster); err != nil {
		return id, err
	}
	l.log.Info("session created", zap.String("session", id), zap.Strings("students", roster))
	return id, nil
}
