package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/scan"
	"github.com/quizflow/quizflow/internal/state"
	"github.com/quizflow/quizflow/internal/token"
)

// Scanner is the decode cycle as seen by the scan view.
type Scanner interface {
	Start(ctx context.Context, interval time.Duration, onToken func(string))
	Stop()
	Done() <-chan struct{}
	Status() scan.Status
}

// ScanState is the phase of one scan view visit.
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanScanning
	ScanProcessing
	ScanTransitioning
)

func (s ScanState) String() string {
	switch s {
	case ScanIdle:
		return "idle"
	case ScanScanning:
		return "scanning"
	case ScanProcessing:
		return "processing"
	case ScanTransitioning:
		return "transitioning"
	}
	return "unknown"
}

const tokenBuffer = 16

// ScanController runs one visit to the scan view. It acts on the first legal
// card only; a new controller is made for every visit.
type ScanController struct {
	cycle    Scanner
	state    *state.Manager
	interval time.Duration
	log      *zap.Logger
	tokens   chan string

	mu    sync.Mutex
	phase ScanState
}

// NewScanController returns an idle controller.
func NewScanController(cycle Scanner, st *state.Manager, interval time.Duration, logger *zap.Logger) *ScanController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanController{
		cycle:    cycle,
		state:    st,
		interval: interval,
		log:      logger,
		tokens:   make(chan string, tokenBuffer),
	}
}

// Enter starts the decode cycle. Only the first call has any effect.
func (c *ScanController) Enter(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != ScanIdle {
		return
	}
	c.phase = ScanScanning
	c.cycle.Start(ctx, c.interval, c.deliver)
}

// deliver runs on the cycle goroutine. A full buffer drops the text; the
// cycle reports the card again on a later frame.
func (c *ScanController) deliver(text string) {
	select {
	case c.tokens <- text:
	default:
	}
}

// Tokens yields decoded text in arrival order.
func (c *ScanController) Tokens() <-chan string { return c.tokens }

// Done is closed when the decode cycle stops.
func (c *ScanController) Done() <-chan struct{} { return c.cycle.Done() }

// Status reports the decode cycle state.
func (c *ScanController) Status() scan.Status { return c.cycle.Status() }

// State returns the current phase.
func (c *ScanController) State() ScanState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// HandleToken acts on decoded text. The first legal card selects its
// difficulty, clears any pinned question, stops the cycle and returns true.
// Everything else, including cards arriving after the first, is ignored.
func (c *ScanController) HandleToken(text string) (token.Difficulty, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != ScanScanning {
		return token.None, false
	}

	d, ok := token.Parse(text)
	if !ok {
		if qid, found := token.ExtractQID(text); found {
			c.log.Warn("ignored scan code", zap.String("qid", qid))
		} else if strings.Contains(text, token.Marker) {
			c.log.Warn("ignored scan text", zap.String("text", text))
		}
		return token.None, false
	}

	c.phase = ScanProcessing
	c.state.SelectDifficulty(d)
	c.state.SetPinnedQuestionID("")
	c.cycle.Stop()
	c.phase = ScanTransitioning
	c.log.Info("difficulty scanned", zap.Stringer("difficulty", d))
	return d, true
}

// Back stops scanning without touching state. It reports false once the
// visit has already ended.
func (c *ScanController) Back() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case ScanScanning, ScanProcessing:
		c.cycle.Stop()
		c.phase = ScanTransitioning
		return true
	}
	return false
}

// Restart begins a new scan after the cycle stopped on its own.
func (c *ScanController) Restart(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != ScanScanning || c.cycle.Status().Running || c.cycle.Status().Starting {
		return false
	}
	c.cycle.Start(ctx, c.interval, c.deliver)
	return true
}
