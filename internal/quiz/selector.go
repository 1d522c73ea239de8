package quiz

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quizflow/quizflow/internal/remote"
	"github.com/quizflow/quizflow/internal/state"
	"github.com/quizflow/quizflow/internal/token"
)

// Selector serves one unseen question per scan from the selected tier.
type Selector struct {
	store remote.Store
	state *state.Manager
	path  string
	log   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// SelectorOptions configures a Selector. Zero values are usable.
type SelectorOptions struct {
	// Path is the bank location in the remote store; "" is the root.
	Path   string
	Rand   *rand.Rand
	Logger *zap.Logger
}

// NewSelector returns a Selector reading the bank from store.
func NewSelector(store remote.Store, st *state.Manager, opts SelectorOptions) *Selector {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>32|1))
	}
	return &Selector{store: store, state: st, path: opts.Path, rng: opts.Rand, log: opts.Logger}
}

// Next fetches the bank and returns a question of the selected tier that has
// not been served since the tier was last exhausted. The tier selection is
// consumed by any attempt that reaches the fetch. Every failure is a
// *LoadError and also clears the pinned question id.
func (s *Selector) Next(ctx context.Context) (Question, error) {
	q, err := s.next(ctx)
	if err != nil {
		s.state.SetPinnedQuestionID("")
		s.log.Warn("question load failed", zap.Error(err))
	}
	return q, err
}

func (s *Selector) next(ctx context.Context) (Question, error) {
	if id := s.state.PinnedQuestionID(); id != "" {
		return Question{}, loadError("Fixed question ids are disabled.", ErrFixedQuestion)
	}
	tier := s.state.Difficulty()
	if !tier.Valid() {
		return Question{}, loadError("No difficulty selected.", ErrNoDifficulty)
	}
	s.state.ConsumeDifficulty()

	root, err := s.store.Get(ctx, s.path)
	if err != nil {
		return Question{}, loadError("Could not reach the question bank.", fmt.Errorf("%w: %w", ErrFetch, err))
	}
	if !root.Exists() {
		return Question{}, loadError("The question bank is empty.", ErrEmptyBank)
	}
	all, skipped, err := ParseQuestions(root)
	if err != nil {
		return Question{}, loadError("The question bank is unreadable.", fmt.Errorf("%w: %w", ErrFetch, err))
	}
	if skipped > 0 {
		s.log.Debug("skipped bank records", zap.Int("skipped", skipped), zap.Int("parsed", len(all)))
	}

	candidates := ByDifficulty(all, tier)
	if len(candidates) == 0 {
		return Question{}, loadError(fmt.Sprintf("No %s questions in the bank.", tier), fmt.Errorf("%w %d", ErrEmptyTier, int(tier)))
	}

	q := s.pick(tier, candidates)
	s.log.Info("question selected", zap.String("id", q.ID), zap.Stringer("difficulty", tier))
	return q, nil
}

// pick chooses uniformly among the unseen candidates and marks the choice
// served. An exhausted tier starts over.
func (s *Selector) pick(tier token.Difficulty, candidates []Question) Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.state.Used(tier)
	var available []Question
	for _, q := range candidates {
		if !used[q.ID] {
			available = append(available, q)
		}
	}
	if len(available) == 0 {
		s.log.Info("tier exhausted, starting over", zap.Stringer("difficulty", tier), zap.Int("questions", len(candidates)))
		s.state.ResetUsed(tier)
		available = candidates
	}

	q := available[s.rng.IntN(len(available))]
	s.state.MarkUsed(tier, q.ID)
	return q
}
