package executor

import (
	llvm "tinygo.org/x/go-llvm"

	"symex/src/pathsel"
	"symex/src/smt"
	"symex/src/state"
)

// ----------------------------
// ----- Functions -----------
// ----------------------------

// execRet implements ret: pop the current call frame. If one remains,
// assign the returned value (if any) to the caller's destination local and
// resume the caller; if none remains, the entry function itself is
// returning and the path terminates successfully.
func (e *Executor) execRet(st *state.State, inst llvm.Value) Result {
	var retExpr *smt.Expr
	var hasRet bool
	if inst.OperandsCount() > 0 {
		v, err := e.eval(st, inst.Operand(0))
		if err != nil {
			return fail(err)
		}
		retExpr, hasRet = v, true
	}

	site, ok := st.Calls.Pop()
	if !ok {
		if e.Metrics != nil {
			e.Metrics.Terminations.WithLabelValues("success").Inc()
		}
		return Result{Status: StatusReturned, ReturnVal: retExpr, HasReturn: hasRet}
	}

	st.Vars.TruncateTo(site.ScopeDepth)
	if site.HasDest && hasRet {
		st.Assign(site.DestLocal, retExpr)
	}
	st.PC = site.CallerPC
	if site.IsInvoke {
		jump(st, site.NormalBlock)
	} else {
		advance(st)
	}
	return Result{Status: StatusRunning}
}

// execBr implements br: unconditional branches just jump; conditional
// branches fork when both polarities are satisfiable, continue on the
// single feasible polarity when only one is, and report Unsat-as-Suppress
// when neither is (an infeasible path, not a program failure).
func (e *Executor) execBr(st *state.State, sel *pathsel.Selector, inst llvm.Value) Result {
	if inst.OperandsCount() == 1 {
		target := inst.Successor(0)
		jump(st, target)
		if r := e.checkIterBound(st); r != nil {
			return *r
		}
		return Result{Status: StatusRunning}
	}

	cond, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	ctx := st.Context()
	trueDest := inst.Successor(0)
	falseDest := inst.Successor(1)

	canTrue, err := st.Store().IsSatWith(cond)
	if err != nil {
		return fail(err)
	}
	canFalse, err := st.Store().IsSatWith(ctx.Not(cond))
	if err != nil {
		return fail(err)
	}

	switch {
	case canTrue && canFalse:
		sibling := st.Fork()
		jump(sibling, falseDest)
		sel.SavePath(sibling, ctx.Eq(cond, ctx.Zero(1)))
		if e.Metrics != nil {
			e.Metrics.Forks.Inc()
		}
		jump(st, trueDest)
		st.Store().Assert(cond)
	case canTrue:
		jump(st, trueDest)
		st.Store().Assert(cond)
	case canFalse:
		jump(st, falseDest)
		st.Store().Assert(ctx.Eq(cond, ctx.Zero(1)))
	default:
		return Result{Status: StatusIgnored}
	}
	if r := e.checkIterBound(st); r != nil {
		return *r
	}
	return Result{Status: StatusRunning}
}

// execSwitch implements switch: every case whose equality is satisfiable
// forks its own path, and the default successor forks too if the
// conjunction of all case inequalities is satisfiable; the path the
// executor continues on in-line is simply the first satisfiable
// alternative, with the rest queued on sel.
func (e *Executor) execSwitch(st *state.State, sel *pathsel.Selector, inst llvm.Value) Result {
	cond, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	ctx := st.Context()
	store := st.Store()

	numCases := (inst.OperandsCount() - 2) / 2
	type branch struct {
		dest       llvm.BasicBlock
		constraint *smt.Expr
	}
	var feasible []branch
	var defaultExclusions []*smt.Expr

	for i := 0; i < numCases; i++ {
		caseVal, err := e.eval(st, inst.Operand(2+2*i))
		if err != nil {
			return fail(err)
		}
		eq := ctx.Eq(cond, caseVal)
		ok, err := store.IsSatWith(eq)
		if err != nil {
			return fail(err)
		}
		defaultExclusions = append(defaultExclusions, ctx.Ne(cond, caseVal))
		if ok {
			feasible = append(feasible, branch{dest: inst.Successor(i + 1), constraint: eq})
		}
	}

	defaultOk := true
	for _, ne := range defaultExclusions {
		sat, err := store.IsSatWith(ne)
		if err != nil {
			return fail(err)
		}
		if !sat {
			defaultOk = false
			break
		}
	}
	if defaultOk {
		conj := ctx.FromBool(true)
		for _, ne := range defaultExclusions {
			conj = ctx.And(conj, ne)
		}
		ok, err := store.IsSatWith(conj)
		if err != nil {
			return fail(err)
		}
		if ok {
			feasible = append(feasible, branch{dest: inst.Successor(0), constraint: conj})
		}
	}

	if len(feasible) == 0 {
		return Result{Status: StatusIgnored}
	}

	for _, b := range feasible[1:] {
		sibling := st.Fork()
		jump(sibling, b.dest)
		sel.SavePath(sibling, b.constraint)
		if e.Metrics != nil {
			e.Metrics.Forks.Inc()
		}
	}
	first := feasible[0]
	jump(st, first.dest)
	if err := store.Assert(first.constraint); err != nil {
		return fail(err)
	}
	if r := e.checkIterBound(st); r != nil {
		return *r
	}
	return Result{Status: StatusRunning}
}

// execPHI implements phi: pick the incoming value whose predecessor label
// equals the block execution just jumped from.
func (e *Executor) execPHI(st *state.State, inst llvm.Value) Result {
	for i := 0; i < inst.IncomingCount(); i++ {
		if inst.IncomingBlock(i) == st.PrevBlock {
			v, err := e.eval(st, inst.IncomingValue(i))
			if err != nil {
				return fail(err)
			}
			st.Assign(inst, v)
			advance(st)
			return Result{Status: StatusRunning}
		}
	}
	return Result{Status: StatusFailed, Err: ErrMalformedPhi}
}

// checkIterBound enforces Bounds.MaxIterCount, turning a loop that never
// converges into a reported, typed failure instead of an unbounded run.
func (e *Executor) checkIterBound(st *state.State) *Result {
	st.IterCount++
	if e.Bounds.MaxIterCount > 0 && st.IterCount > e.Bounds.MaxIterCount {
		if e.Metrics != nil {
			e.Metrics.BoundHits.WithLabelValues("max_iter_count").Inc()
		}
		r := Result{Status: StatusFailed, Err: ErrMaxIterations}
		return &r
	}
	return nil
}
