package smt

import (
	"errors"
	"math/rand"

	"github.com/holiman/uint256"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SatResult is the three-valued outcome of a satisfiability query.
type SatResult int

const (
	Sat SatResult = iota
	Unsat
	Unknown
)

func (r SatResult) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// ValueSet is the result of a bounded model-enumeration query: either the
// complete set of distinct solutions (Exactly) or a truncated, non-
// exhaustive sample (AtLeast), mirroring the original Solutions::Exactly /
// Solutions::AtLeast split.
type ValueSet struct {
	Values     []*Expr
	Exhaustive bool
}

// Store is a per-state assertion stack over a shared Context. A forked path
// gets its own copy via Clone rather than a Push on a shared stack; Push,
// Pop and Clone are all cheap, since the store only holds expression
// pointers, never owns solver-engine state.
type Store struct {
	ctx    *Context
	frames [][]*Expr

	// rng drives the bounded model search below. Seeded once per Store so
	// repeated queries against the same assertion set are reproducible,
	// which backtracking equivalence (spec testable property) depends on.
	rng *rand.Rand
}

// ---------------------
// ----- Constants -----
// ---------------------

// maxSearchTrials bounds the bounded-model-search fallback used by is_sat
// when interval propagation alone cannot decide a query.
const maxSearchTrials = 4096

// ---------------------
// ----- Errors --------
// ---------------------

var (
	// ErrUnknown is returned when the bounded search could neither prove
	// satisfiability nor refute it within its trial budget.
	ErrUnknown = errors.New("smt: solver result unknown")
	// ErrNoFrame is returned by Pop when the base frame would be popped.
	ErrNoFrame = errors.New("smt: pop would remove the base assertion frame")
	// ErrNotBoolean is returned by Assert when passed a non-width-1 expression.
	ErrNotBoolean = errors.New("smt: asserted expression is not width 1")
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewStore returns a Store over ctx with a single, empty base frame.
func NewStore(ctx *Context) *Store {
	return &Store{ctx: ctx, frames: [][]*Expr{{}}, rng: rand.New(rand.NewSource(1))}
}

// Context returns the Store's underlying Context.
func (s *Store) Context() *Context { return s.ctx }

// Assert adds e to the current assertion frame. e must have width 1.
func (s *Store) Assert(e *Expr) error {
	if e.width != 1 {
		return ErrNotBoolean
	}
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], e)
	return nil
}

// Push opens a new assertion frame on top of the stack.
func (s *Store) Push() { s.frames = append(s.frames, nil) }

// Pop discards the top assertion frame.
func (s *Store) Pop() error {
	if len(s.frames) <= 1 {
		return ErrNoFrame
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// Clone returns an independent copy of the Store sharing the same Context.
// Used when a State is forked: the new Path gets its own frame stack so
// constraints added on one branch never leak to its sibling.
func (s *Store) Clone() *Store {
	frames := make([][]*Expr, len(s.frames))
	for i, f := range s.frames {
		frames[i] = append([]*Expr(nil), f...)
	}
	return &Store{ctx: s.ctx, frames: frames, rng: rand.New(rand.NewSource(1))}
}

func (s *Store) assertions() []*Expr {
	var all []*Expr
	for _, f := range s.frames {
		all = append(all, f...)
	}
	return all
}

// IsSat reports whether the current assertion set is satisfiable.
func (s *Store) IsSat() (SatResult, error) {
	return solve(s.assertions(), s.rng)
}

// IsSatWith reports whether the current assertions, plus e asserted as an
// additional single-use assumption, are satisfiable. It does not mutate s.
func (s *Store) IsSatWith(e *Expr) (bool, error) {
	if e.width != 1 {
		return false, ErrNotBoolean
	}
	all := append(append([]*Expr(nil), s.assertions()...), e)
	res, err := solve(all, s.rng)
	if err != nil {
		return false, err
	}
	return res == Sat, nil
}

// GetValue returns one concrete witness for e under the current
// assertions, as a constant Expr.
func (s *Store) GetValue(e *Expr) (*Expr, error) {
	vs, err := s.GetValues(e, 1)
	if err != nil {
		return nil, err
	}
	if len(vs.Values) == 0 {
		return nil, Unsat.asError()
	}
	return vs.Values[0], nil
}

// GetValues returns up to n distinct witnesses for e under the current
// assertions. If more than n solutions exist, Exhaustive is false and the
// returned slice is a truncated sample (the AtLeast case).
func (s *Store) GetValues(e *Expr, n int) (ValueSet, error) {
	if n < 1 {
		n = 1
	}
	base := s.assertions()
	// The tautology e == e brings e's own symbols into the search, so a
	// symbol no assertion mentions still gets a value to evaluate e with.
	env, res, err := findAssignment(append(append([]*Expr(nil), base...), s.ctx.Eq(e, e)), s.rng)
	if err != nil {
		return ValueSet{}, err
	}
	if res != Sat {
		return ValueSet{Values: nil, Exhaustive: true}, nil
	}

	seen := make(map[string]bool)
	var out []*Expr
	cur := append([]*Expr(nil), base...)
	for len(out) < n {
		v, ok := evalWith(e, env)
		if !ok {
			break
		}
		key := v.Hex()
		if !seen[key] {
			seen[key] = true
			out = append(out, s.ctx.FromBig(v, e.width))
		}
		// Exclude this value and search again.
		exclude := s.ctx.Ne(e, s.ctx.FromBig(v, e.width))
		cur = append(cur, exclude)
		env, res, err = findAssignment(cur, s.rng)
		if err != nil || res != Sat {
			return ValueSet{Values: out, Exhaustive: true}, nil
		}
	}
	// There may still be more solutions than we enumerated.
	more, res2, err2 := findAssignment(cur, s.rng)
	if err2 == nil && res2 == Sat && more != nil {
		return ValueSet{Values: out, Exhaustive: false}, nil
	}
	return ValueSet{Values: out, Exhaustive: true}, nil
}

func (r SatResult) asError() error {
	if r == Unsat {
		return errors.New("smt: unsat")
	}
	return ErrUnknown
}

// solve is the boolean entry point used by IsSat/IsSatWith.
func solve(assertions []*Expr, rng *rand.Rand) (SatResult, error) {
	_, res, err := findAssignment(assertions, rng)
	return res, err
}

// findAssignment attempts to find a symbol assignment that satisfies every
// expression in assertions. It combines a few fast-path heuristics (direct
// equality binding, constant folding of symbol-free assertions) with a
// bounded randomized search for anything more complex, which is sufficient
// for the linear, branch-shaped constraints symbolic execution over
// straight-line and loop-free code produces. See DESIGN.md for the
// rationale: no SMT backend binding exists in the reference corpus, so this
// package owns the whole solving algorithm instead of wrapping one.
func findAssignment(assertions []*Expr, rng *rand.Rand) (assignment, SatResult, error) {
	if len(assertions) == 0 {
		return assignment{}, Sat, nil
	}

	syms := collectSymbols(assertions)
	if len(syms) == 0 {
		for _, a := range assertions {
			v, ok := evalConst(a)
			if !ok {
				return nil, Unknown, ErrUnknown
			}
			if v.Sign() == 0 {
				return nil, Unsat, nil
			}
		}
		return assignment{}, Sat, nil
	}

	lo, hi, ok := propagateIntervals(assertions, syms)
	if !ok {
		return nil, Unsat, nil
	}

	// Deterministic candidate probes first: all-lo, all-hi, then alternating
	// lo/hi per symbol, then random samples drawn from each symbol's
	// propagated interval.
	candidates := []func() assignment{
		func() assignment { return boundaryEnv(syms, lo) },
		func() assignment { return boundaryEnv(syms, hi) },
		func() assignment { return alternatingEnv(syms, lo, hi) },
	}
	for _, mk := range candidates {
		env := mk()
		if satisfies(assertions, env) {
			return env, Sat, nil
		}
	}

	// Every symbol pinned to a single value: the all-lo probe above was the
	// whole search space, so its failure proves the set unsatisfiable.
	pinned := true
	for _, si := range syms {
		if !lo[si.name].Eq(hi[si.name]) {
			pinned = false
			break
		}
	}
	if pinned {
		return nil, Unsat, nil
	}

	for i := 0; i < maxSearchTrials; i++ {
		env := randomEnv(syms, lo, hi, rng)
		if satisfies(assertions, env) {
			return env, Sat, nil
		}
	}
	return nil, Unknown, ErrUnknown
}

func satisfies(assertions []*Expr, env assignment) bool {
	for _, a := range assertions {
		v, ok := evalWith(a, env)
		if !ok || v.Sign() == 0 {
			return false
		}
	}
	return true
}

type symInfo struct {
	name  string
	width uint32
}

func collectSymbols(exprs []*Expr) []symInfo {
	seen := make(map[string]bool)
	var out []symInfo
	var walk func(e *Expr)
	walk = func(e *Expr) {
		if e.op == OpSymbol {
			if !seen[e.name] {
				seen[e.name] = true
				out = append(out, symInfo{e.name, e.width})
			}
			return
		}
		for _, k := range e.kids {
			walk(k)
		}
	}
	for _, e := range exprs {
		walk(e)
	}
	return out
}

// propagateIntervals computes, for each symbol, a conservative [lo, hi]
// unsigned range consistent with any simple (symbol OP constant) or
// (constant OP symbol) comparison assertions. It is not a full constraint
// solver: assertions it cannot interpret are simply skipped (left at full
// range) and re-checked exactly by satisfies() later. It returns ok=false
// only when propagation proves an empty domain for some symbol.
func propagateIntervals(assertions []*Expr, syms []symInfo) (lo, hi map[string]*uint256.Int, ok bool) {
	lo = make(map[string]*uint256.Int, len(syms))
	hi = make(map[string]*uint256.Int, len(syms))
	for _, si := range syms {
		lo[si.name] = new(uint256.Int)
		hi[si.name] = maskTo(new(uint256.Int).Not(new(uint256.Int)), si.width)
	}

	tighten := func(name string, newLo, newHi *uint256.Int) bool {
		if newLo.Gt(lo[name]) {
			lo[name] = newLo
		}
		if newHi.Lt(hi[name]) {
			hi[name] = newHi
		}
		return lo[name].Lt(hi[name]) || lo[name].Eq(hi[name])
	}

	for _, a := range assertions {
		if len(a.kids) != 2 {
			continue
		}
		l, r := a.kids[0], a.kids[1]
		var sym *Expr
		var constSide *uint256.Int
		var symIsLeft bool
		if l.op == OpSymbol {
			if v, ok := evalConst(r); ok {
				sym, constSide, symIsLeft = l, v, true
			} else {
				continue
			}
		} else if r.op == OpSymbol {
			if v, ok := evalConst(l); ok {
				sym, constSide, symIsLeft = r, v, false
			} else {
				continue
			}
		} else {
			continue
		}

		width := sym.width
		full := maskTo(new(uint256.Int).Not(new(uint256.Int)), width)
		switch a.op {
		case OpEq:
			if !tighten(sym.name, constSide, constSide) {
				return nil, nil, false
			}
		case OpUlt:
			if symIsLeft {
				if constSide.IsZero() || !tighten(sym.name, new(uint256.Int), new(uint256.Int).Sub(constSide, uint256.NewInt(1))) {
					return nil, nil, false
				}
			} else {
				if !tighten(sym.name, new(uint256.Int).Add(constSide, uint256.NewInt(1)), full) {
					return nil, nil, false
				}
			}
		case OpUle:
			if symIsLeft {
				if !tighten(sym.name, new(uint256.Int), constSide) {
					return nil, nil, false
				}
			} else {
				if !tighten(sym.name, constSide, full) {
					return nil, nil, false
				}
			}
		case OpUgt:
			if symIsLeft {
				if !tighten(sym.name, new(uint256.Int).Add(constSide, uint256.NewInt(1)), full) {
					return nil, nil, false
				}
			} else if constSide.IsZero() || !tighten(sym.name, new(uint256.Int), new(uint256.Int).Sub(constSide, uint256.NewInt(1))) {
				return nil, nil, false
			}
		case OpUge:
			if symIsLeft {
				if !tighten(sym.name, constSide, full) {
					return nil, nil, false
				}
			} else if !tighten(sym.name, new(uint256.Int), constSide) {
				return nil, nil, false
			}
		}
	}
	return lo, hi, true
}

func boundaryEnv(syms []symInfo, bound map[string]*uint256.Int) assignment {
	env := make(assignment, len(syms))
	for _, si := range syms {
		env[si.name] = new(uint256.Int).Set(bound[si.name])
	}
	return env
}

// alternatingEnv assigns each symbol its lo or hi bound in turn, giving the
// deterministic probe set a mixed-sign/mixed-magnitude candidate beyond the
// two uniform extremes, cheaply covering constraints that relate several
// symbols to each other rather than each to a single constant.
func alternatingEnv(syms []symInfo, lo, hi map[string]*uint256.Int) assignment {
	env := make(assignment, len(syms))
	for i, si := range syms {
		if i%2 == 0 {
			env[si.name] = new(uint256.Int).Set(lo[si.name])
		} else {
			env[si.name] = new(uint256.Int).Set(hi[si.name])
		}
	}
	return env
}

func randomEnv(syms []symInfo, lo, hi map[string]*uint256.Int, rng *rand.Rand) assignment {
	env := make(assignment, len(syms))
	for _, si := range syms {
		l, h := lo[si.name], hi[si.name]
		span := new(uint256.Int).Sub(h, l)
		if span.IsZero() {
			env[si.name] = new(uint256.Int).Set(l)
			continue
		}
		var r uint64
		if span.Lt(uint256.NewInt(1 << 62)) {
			r = rng.Uint64() % (span.Uint64() + 1)
		} else {
			r = rng.Uint64()
		}
		env[si.name] = new(uint256.Int).Add(l, new(uint256.Int).SetUint64(r))
	}
	return env
}
