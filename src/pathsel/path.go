package pathsel

import (
	"symex/src/smt"
	"symex/src/state"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Pending pairs a forked State with the constraint that still needs to be
// asserted before it resumes. Deferring the assert to resume time (rather
// than asserting immediately at fork time) means a path sitting on the
// selector's stack costs nothing but the State clone itself; the solver
// only ever sees the constraints of paths actually running.
type Pending struct {
	State      *state.State
	Constraint *smt.Expr
}
