// Package mcpserver exposes the classroom state and the remote question bank
// as read-only MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/quiz"
	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/state"
	"github.com/quizflow/quizflow/internal/token"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Server answers tool calls. The state manager is reloaded on every call
// because the quiz app writes the same database.
type Server struct {
	state    *state.Manager
	remote   remote.Store
	bankPath string
	log      *zap.Logger
}

// New returns a Server over st and the remote store. bankPath is the bank
// location in the store.
func New(st *state.Manager, store remote.Store, bankPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{state: st, remote: store, bankPath: bankPath, log: logger.Named("mcp")}
}

// MCP builds the MCP server with every tool registered.
func (s *Server) MCP() *server.MCPServer {
	srv := server.NewMCPServer("quizflow", Version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Current classroom session: id, players and the acting roster."),
	), s.sessionStatus)

	srv.AddTool(mcp.NewTool("scoreboard",
		mcp.WithDescription("Correct answer count per player in the current session."),
	), s.scoreboard)

	srv.AddTool(mcp.NewTool("question_bank",
		mcp.WithDescription("Question counts per difficulty. With difficulty set, lists that tier."),
		mcp.WithString("difficulty", mcp.Description("easy, medium or hard")),
	), s.questionBank)

	srv.AddTool(mcp.NewTool("session_answers",
		mcp.WithDescription("Answers uploaded for a session, oldest first."),
		mcp.WithString("session_id", mcp.Description("Session id; defaults to the current session")),
	), s.sessionAnswers)

	return srv
}

// SessionStatus is the session_status result.
type SessionStatus struct {
	Active    bool          `json:"active"`
	SessionID string        `json:"session_id,omitempty"`
	Players   []PlayerScore `json:"players"`
}

// PlayerScore is one roster slot.
type PlayerScore struct {
	Slot    int    `json:"slot"`
	Name    string `json:"name"`
	Correct int    `json:"correct"`
}

// BankReport is the question_bank result.
type BankReport struct {
	Total     int            `json:"total"`
	Skipped   int            `json:"skipped"`
	PerTier   map[string]int `json:"per_tier"`
	Questions []BankQuestion `json:"questions,omitempty"`
}

// BankQuestion is a question listed by question_bank.
type BankQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Correct int      `json:"correct_index"`
	Reward  int      `json:"reward"`
}

func (s *Server) sessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.state.Load(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read state: %v", err)), nil
	}
	status := SessionStatus{
		Active:    s.state.LoggedIn(),
		SessionID: s.state.SessionID(),
		Players:   []PlayerScore{},
	}
	for _, p := range s.state.Roster() {
		status.Players = append(status.Players, PlayerScore{Slot: p.Index + 1, Name: p.Name, Correct: p.Score})
	}
	return jsonResult(status)
}

func (s *Server) scoreboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.state.Load(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read state: %v", err)), nil
	}
	if !s.state.LoggedIn() {
		return mcp.NewToolResultText("No active session."), nil
	}
	return jsonResult(quiz.Scoreboard(s.state))
}

func (s *Server) questionBank(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tier token.Difficulty
	if name := req.GetString("difficulty", ""); name != "" {
		d, ok := parseTier(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown difficulty %q", name)), nil
		}
		tier = d
	}

	qs, skipped, err := quiz.LoadBank(ctx, s.remote, s.bankPath)
	if err != nil {
		s.log.Warn("bank fetch failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}

	report := BankReport{Total: len(qs), Skipped: skipped, PerTier: map[string]int{}}
	for d, n := range quiz.BankSummary(qs) {
		report.PerTier[d.String()] = n
	}
	if tier.Valid() {
		for _, q := range quiz.ByDifficulty(qs, tier) {
			report.Questions = append(report.Questions, BankQuestion{
				ID:      q.ID,
				Text:    q.Text,
				Options: q.Options,
				Correct: q.CorrectIndex,
				Reward:  q.Reward,
			})
		}
		sort.Slice(report.Questions, func(i, j int) bool {
			return report.Questions[i].ID < report.Questions[j].ID
		})
	}
	return jsonResult(report)
}

func (s *Server) sessionAnswers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		if err := s.state.Load(); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read state: %v", err)), nil
		}
		id = s.state.SessionID()
	}
	if id == "" {
		return mcp.NewToolResultError("no session_id given and no active session"), nil
	}

	answers, err := quiz.SessionAnswers(ctx, s.remote, id)
	if err != nil {
		s.log.Warn("answers fetch failed", zap.String("session", id), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(answers)
}

func parseTier(name string) (token.Difficulty, bool) {
	for _, d := range []token.Difficulty{token.Easy, token.Medium, token.Hard} {
		if name == d.String() || name == d.Code() {
			return d, true
		}
	}
	return token.None, false
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
