// Package pathsel implements path selection: the order in which forked
// States are explored. The engine only ever does depth-first search, a LIFO
// stack of pending paths, matching the original's path_exploration::dfs
// strategy and the teacher's own worklist-style traversal in its backend
// register allocator.
package pathsel

import (
	"symex/src/smt"
	"symex/src/state"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Selector hands the Executor its next path to run and accepts newly forked
// ones, in strict LIFO order: the most recently forked sibling always runs
// next, so a run exhausts one branch completely before backtracking to its
// sibling, exactly like a recursive depth-first walk.
type Selector struct {
	pending []Pending
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a Selector seeded with the single initial path and no
// constraint left to assert (the entry path starts unconstrained).
func New(initial *state.State) *Selector {
	return &Selector{pending: []Pending{{State: initial}}}
}

// SavePath pushes a newly forked path onto the stack, along with the branch
// constraint (nil if none) that must be asserted once it is resumed.
func (s *Selector) SavePath(st *state.State, constraint *smt.Expr) {
	s.pending = append(s.pending, Pending{State: st, Constraint: constraint})
}

// GetPath pops the next path to run, asserting its deferred constraint (if
// any) into its own constraint store before handing it back. ok is false
// once every path has been explored to termination, the Run loop's exit
// condition.
func (s *Selector) GetPath() (*state.State, bool) {
	if len(s.pending) == 0 {
		return nil, false
	}
	top := s.pending[len(s.pending)-1]
	s.pending = s.pending[:len(s.pending)-1]
	if top.Constraint != nil {
		top.State.Constraints.Assert(top.Constraint)
	}
	return top.State, true
}

// Remaining reports how many paths are still queued, used for progress
// logging.
func (s *Selector) Remaining() int { return len(s.pending) }
