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
// ----- Type definitions -----
// ----------------------------

// Status reports what happened to a path after one Step call.
type Status int

const (
	// StatusRunning means the path's PC advanced and it should be stepped
	// again; it may also have spawned sibling paths onto sel.
	StatusRunning Status = iota
	// StatusReturned means the entry function itself returned: the path is
	// done and succeeded, with an optional return value.
	StatusReturned
	// StatusFailed means the path ended in a failure: a hook reported one
	// (panic, abort), an unreachable instruction was reached, a bound was
	// exceeded, or the instruction could not be executed.
	StatusFailed
	// StatusIgnored means the path was pruned (assume() on an unsatisfiable
	// condition, or an explicit ignore_path()) and should not be reported.
	StatusIgnored
)

// Result is what Step returns after every instruction.
type Result struct {
	Status    Status
	ReturnVal *smt.Expr
	HasReturn bool
	Err       error
}

// Executor steps exactly one State at a time; all of its fields are
// read-only configuration shared across every path in a run.
type Executor struct {
	Bounds  Bounds
	Metrics *Metrics
}

// ---------------------
// ----- Errors --------
// ---------------------

var (
	ErrMaxCallDepth         = fmt.Errorf("executor: max call depth exceeded")
	ErrMaxIterations        = fmt.Errorf("executor: max iteration count exceeded")
	ErrUnsupportedOpcode    = fmt.Errorf("executor: unsupported instruction opcode")
	ErrMalformedPhi         = fmt.Errorf("executor: phi has no incoming value for the predecessor block")
	ErrNoCallee             = fmt.Errorf("executor: could not resolve a call target")
	ErrMalformedInstruction = fmt.Errorf("executor: malformed instruction")
)

// ---------------------
// ----- Functions -----
// ---------------------

// New returns an Executor with the given bounds. metrics may be nil.
func New(bounds Bounds, metrics *Metrics) *Executor {
	return &Executor{Bounds: bounds, Metrics: metrics}
}

// Step executes the single instruction at st.PC and advances st in place
// (or forks siblings onto sel for a branch/switch/call with more than one
// satisfiable successor). sel is used only to push forked siblings; the
// caller (vm.Run) owns popping the next path to run.
func (e *Executor) Step(st *state.State, sel *pathsel.Selector) Result {
	block := st.PC.Block
	insts := instructionsOf(block)
	if st.PC.Instr >= len(insts) {
		return Result{Status: StatusFailed, Err: fmt.Errorf("executor: PC ran off the end of its block")}
	}
	inst := insts[st.PC.Instr]

	switch inst.InstructionOpcode() {
	case llvm.Ret:
		return e.execRet(st, inst)
	case llvm.Br:
		return e.execBr(st, sel, inst)
	case llvm.Switch:
		return e.execSwitch(st, sel, inst)
	case llvm.Unreachable:
		return Result{Status: StatusFailed, Err: fmt.Errorf("reached an unreachable instruction")}
	case llvm.Call, llvm.Invoke:
		return e.execCall(st, sel, inst)
	case llvm.Alloca:
		return e.execAlloca(st, inst)
	case llvm.Load:
		return e.execLoad(st, sel, inst)
	case llvm.Store:
		return e.execStore(st, sel, inst)
	case llvm.GetElementPtr:
		return e.execGEP(st, inst)
	case llvm.ICmp:
		return e.execICmp(st, inst)
	case llvm.Select:
		return e.execSelect(st, inst)
	case llvm.PHI:
		return e.execPHI(st, inst)
	case llvm.Trunc, llvm.ZExt, llvm.SExt, llvm.BitCast, llvm.PtrToInt, llvm.IntToPtr:
		return e.execCast(st, inst)
	case llvm.ExtractValue:
		return e.execExtractValue(st, inst)
	case llvm.InsertValue:
		return e.execInsertValue(st, inst)
	case llvm.Add, llvm.Sub, llvm.Mul, llvm.UDiv, llvm.SDiv, llvm.URem, llvm.SRem,
		llvm.Shl, llvm.LShr, llvm.AShr, llvm.And, llvm.Or, llvm.Xor:
		return e.execBinOp(st, inst)
	default:
		return Result{Status: StatusFailed, Err: fmt.Errorf("%w: %v", ErrUnsupportedOpcode, inst.InstructionOpcode())}
	}
}

// instructionsOf materializes a basic block's instructions into a slice so
// PC.Instr can index it directly instead of walking a linked list each
// step.
func instructionsOf(b llvm.BasicBlock) []llvm.Value {
	var out []llvm.Value
	for v := b.FirstInstruction(); !v.IsNil(); v = llvm.NextInstruction(v) {
		out = append(out, v)
	}
	return out
}

func advance(st *state.State) {
	st.PC.Instr++
}

func jump(st *state.State, target llvm.BasicBlock) {
	st.PrevBlock = st.PC.Block
	st.PC.Block = target
	st.PC.Instr = 0
}

// eval resolves an operand value into its Expr: constants fold directly,
// and anything else is looked up in the current path's variable map.
func (e *Executor) eval(st *state.State, v llvm.Value) (*smt.Expr, error) {
	ctx := st.Context()
	if !v.IsAConstantInt().IsNil() {
		width := v.Type().IntTypeWidth()
		return ctx.FromUint64(uint64(v.ZExtValue()), uint32(width)), nil
	}
	if !v.IsAGlobalValue().IsNil() {
		if addr, ok := st.Globals.AddressOf(v.Name()); ok {
			return ctx.FromUint64(addr, st.PointerBits()), nil
		}
	}
	if !v.IsAConstantPointerNull().IsNil() {
		return ctx.Zero(st.PointerBits()), nil
	}
	if !v.IsAConstantAggregateZero().IsNil() {
		return ctx.Zero(uint32(st.BitSizeOf(v.Type()))), nil
	}
	if !v.IsAUndef().IsNil() {
		// An undef value may legally take on any bit pattern; modeling it
		// as a fresh unconstrained symbol is a conservative over-
		// approximation rather than picking an arbitrary concrete one.
		return ctx.Unconstrained(uint32(st.BitSizeOf(v.Type())), ""), nil
	}
	return st.GetExpr(v)
}

// asEnv lets project.Env be satisfied by *state.State directly (see
// state.go); this helper exists purely to document the seam at the call
// site for readers following control from executor into project.
func asEnv(st *state.State) project.Env { return st }
