package compositor

import (
	"context"
	"sync"

	"github.com/google/uuid"

	errs "github.com/matzehuels/layerstack/pkg/errors"
)

// ErrSuperseded is returned by [Supervisor.Commit] for a pass that is no
// longer current.
var ErrSuperseded = errs.New(errs.ErrCodeSuperseded, "render pass superseded by a newer pass")

// Ticket identifies one pass started by a [Supervisor].
type Ticket struct {
	ID  string
	Ctx context.Context
}

// Supervisor enforces that only the most recently started pass may publish
// its results.
type Supervisor struct {
	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
}

// Begin starts a new pass and cancels the context of the previous one.
// The ticket's context carries the pass ID for [Compositor.Compose].
func (s *Supervisor) Begin(parent context.Context) Ticket {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(WithPassID(parent, id))

	s.mu.Lock()
	prev := s.cancel
	s.current, s.cancel = id, cancel
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	return Ticket{ID: id, Ctx: ctx}
}

// Current reports whether t is the most recently begun pass.
func (s *Supervisor) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.ID == s.current
}

// Commit ends t. It returns [ErrSuperseded] when a newer pass has begun
// since; the caller must then discard t's results.
func (s *Supervisor) Commit(t Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID != s.current {
		return ErrSuperseded
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.current, s.cancel = "", nil
	return nil
}

// Stop cancels the current pass, if any.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.current, s.cancel = "", nil
}
