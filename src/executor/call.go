package executor

import (
	"fmt"

	llvm "tinygo.org/x/go-llvm"

	"symex/src/pathsel"
	"symex/src/project"
	"symex/src/smt"
	"symex/src/state"
)

// ----------------------------
// ----- Functions -----------
// ----------------------------

// execCall implements both call and invoke: resolve the callee (by name,
// or by concretizing a function-pointer expression through the global
// table when more than one target is feasible), then either run a hook/
// intrinsic closed-form, or push a callsite and step into the IR function.
func (e *Executor) execCall(st *state.State, sel *pathsel.Selector, inst llvm.Value) Result {
	isInvoke := inst.InstructionOpcode() == llvm.Invoke
	extra := 1
	if isInvoke {
		extra = 3
	}
	argc := inst.OperandsCount() - extra
	calleeOperand := inst.Operand(inst.OperandsCount() - 1)

	targets, err := e.resolveCallees(st, calleeOperand)
	if err != nil {
		return fail(err)
	}
	if len(targets) == 0 {
		return Result{Status: StatusFailed, Err: ErrNoCallee}
	}
	if len(targets) > e.Bounds.MaxFnPtrResolutions {
		targets = targets[:e.Bounds.MaxFnPtrResolutions]
		if e.Metrics != nil {
			e.Metrics.BoundHits.WithLabelValues("max_fn_ptr_resolutions").Inc()
		}
	}

	args := make([]llvm.Value, argc)
	for i := 0; i < argc; i++ {
		args[i] = inst.Operand(i)
	}

	run := func(st *state.State, fn llvm.Value) Result {
		return e.invoke(st, sel, inst, fn, args, isInvoke)
	}

	if len(targets) == 1 {
		return run(st, targets[0])
	}

	ctx := st.Context()
	calleeExpr, _ := e.eval(st, calleeOperand)
	for _, fn := range targets[1:] {
		sibling := st.Fork()
		addr, _ := st.Globals.AddressOf(fn.Name())
		sel.SavePath(sibling, ctx.Eq(calleeExpr, ctx.FromUint64(addr, st.PointerBits())))
		if e.Metrics != nil {
			e.Metrics.Forks.Inc()
		}
		// The sibling resumes independently on a later GetPath call, where
		// it replays execCall from the very same PC -- its call stack
		// hasn't moved yet, so this is a correct re-entry point.
	}
	return run(st, targets[0])
}

// resolveCallees returns the one or more functions a call target could
// name: a single entry for a direct call (by name), or every function
// whose address the solver finds satisfying an indirect (function-pointer)
// call target, ascending by address for deterministic fork order.
func (e *Executor) resolveCallees(st *state.State, callee llvm.Value) ([]llvm.Value, error) {
	if !callee.IsAFunction().IsNil() {
		return []llvm.Value{callee}, nil
	}
	expr, err := e.eval(st, callee)
	if err != nil {
		return nil, err
	}
	addrs, _, err := st.Memory().ResolveAddresses(st.Store(), expr, e.Bounds.MaxFnPtrResolutions)
	if err != nil {
		return nil, err
	}
	var out []llvm.Value
	for _, a := range addrs {
		if fn, ok := st.Globals.ValueAt(a); ok {
			out = append(out, fn)
		}
	}
	return out, nil
}

// invoke runs one resolved callee against st: a hook/intrinsic executes in
// closed form, an IR function gets a pushed callsite, a fresh variable
// scope, parameter bindings, and a jump to its entry block.
func (e *Executor) invoke(st *state.State, sel *pathsel.Selector, inst, fn llvm.Value, args []llvm.Value, isInvoke bool) Result {
	target, err := st.Proj.FindCallee(fn.Name())
	if err != nil {
		return fail(err)
	}

	if target.Kind != project.KindFunction {
		argExprs := make([]*smt.Expr, len(args))
		argNames := make([]string, len(args))
		for i, a := range args {
			v, err := e.eval(st, a)
			if err != nil {
				return fail(err)
			}
			argExprs[i] = v
			argNames[i] = a.Name()
		}
		call := &project.Call{Env: st, Name: target.Name, Args: argExprs, ArgNames: argNames, RetBits: retBits(inst, st.PointerBits())}
		var callErr error
		switch target.Kind {
		case project.KindIntrinsic:
			callErr = target.Intrinsic(call)
		case project.KindHook:
			callErr = target.Hook(call)
		}
		if callErr != nil {
			if _, ignored := callErr.(*state.IgnoredPath); ignored {
				return Result{Status: StatusIgnored}
			}
			if pf, isFailure := callErr.(*project.PathFailure); isFailure {
				if e.Metrics != nil {
					e.Metrics.Terminations.WithLabelValues("failure").Inc()
				}
				return Result{Status: StatusFailed, Err: fmt.Errorf("%s", pf.Message)}
			}
			return fail(callErr)
		}
		if v, ok := call.Result(); ok {
			st.Assign(inst, v)
		}
		if isInvoke {
			jump(st, inst.Successor(0))
		} else {
			advance(st)
		}
		return Result{Status: StatusRunning}
	}

	if st.Calls.Depth() >= e.Bounds.MaxCallDepth {
		if e.Metrics != nil {
			e.Metrics.BoundHits.WithLabelValues("max_call_depth").Inc()
		}
		return Result{Status: StatusFailed, Err: ErrMaxCallDepth}
	}

	var normalBlock llvm.BasicBlock
	if isInvoke {
		normalBlock = inst.Successor(0)
	}
	site := state.Callsite{
		CallerPC:    st.PC,
		DestLocal:   inst,
		HasDest:     inst.Type().TypeKind() != llvm.VoidTypeKind,
		NormalBlock: normalBlock,
		IsInvoke:    isInvoke,
		ScopeDepth:  st.Vars.Depth(),
	}
	params := fn.Params()
	argVals := make([]*smt.Expr, len(params))
	for i := range params {
		if i >= len(args) {
			break
		}
		v, err := e.eval(st, args[i])
		if err != nil {
			return fail(err)
		}
		argVals[i] = v
	}

	st.Calls.Push(site)
	st.Vars.EnterScope()
	for i, p := range params {
		if argVals[i] == nil {
			break
		}
		st.Assign(p, argVals[i])
	}
	jump(st, fn.EntryBasicBlock())
	return Result{Status: StatusRunning}
}

// retBits reports the bit width a hook/intrinsic should use to size a
// fresh return value, falling back to the pointer width for void/pointer
// calls where it is not otherwise meaningful.
func retBits(inst llvm.Value, ptrBits uint32) uint32 {
	ty := inst.Type()
	switch ty.TypeKind() {
	case llvm.IntegerTypeKind:
		return uint32(ty.IntTypeWidth())
	case llvm.VoidTypeKind:
		return 0
	default:
		return ptrBits
	}
}
