package executor

import (
	llvm "tinygo.org/x/go-llvm"

	"symex/src/smt"
	"symex/src/state"
)

// ----------------------------
// ----- Functions -----------
// ----------------------------

// execBinOp handles every opcode whose semantics are "apply one Algebra
// operator to two evaluated operands", the arithmetic/bitwise/shift family.
func (e *Executor) execBinOp(st *state.State, inst llvm.Value) Result {
	a, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	b, err := e.eval(st, inst.Operand(1))
	if err != nil {
		return fail(err)
	}
	ctx := st.Context()
	var out *smt.Expr
	switch inst.InstructionOpcode() {
	case llvm.Add:
		out = ctx.Add(a, b)
	case llvm.Sub:
		out = ctx.Sub(a, b)
	case llvm.Mul:
		out = ctx.Mul(a, b)
	case llvm.UDiv:
		out = ctx.UDiv(a, b)
	case llvm.SDiv:
		out = ctx.SDiv(a, b)
	case llvm.URem:
		out = ctx.URem(a, b)
	case llvm.SRem:
		out = ctx.SRem(a, b)
	case llvm.Shl:
		out = ctx.Shl(a, b)
	case llvm.LShr:
		out = ctx.LShr(a, b)
	case llvm.AShr:
		out = ctx.AShr(a, b)
	case llvm.And:
		out = ctx.And(a, b)
	case llvm.Or:
		out = ctx.Or(a, b)
	case llvm.Xor:
		out = ctx.Xor(a, b)
	default:
		return Result{Status: StatusFailed, Err: ErrUnsupportedOpcode}
	}
	st.Assign(inst, out)
	advance(st)
	return Result{Status: StatusRunning}
}

// execICmp implements the icmp instruction: the predicate selects which
// Algebra comparison to build, and the 1-bit result is bound to the
// instruction like any other value.
func (e *Executor) execICmp(st *state.State, inst llvm.Value) Result {
	a, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	b, err := e.eval(st, inst.Operand(1))
	if err != nil {
		return fail(err)
	}
	ctx := st.Context()
	var out *smt.Expr
	switch inst.IntPredicate() {
	case llvm.IntEQ:
		out = ctx.Eq(a, b)
	case llvm.IntNE:
		out = ctx.Ne(a, b)
	case llvm.IntUGT:
		out = ctx.Ugt(a, b)
	case llvm.IntUGE:
		out = ctx.Uge(a, b)
	case llvm.IntULT:
		out = ctx.Ult(a, b)
	case llvm.IntULE:
		out = ctx.Ule(a, b)
	case llvm.IntSGT:
		out = ctx.Sgt(a, b)
	case llvm.IntSGE:
		out = ctx.Sge(a, b)
	case llvm.IntSLT:
		out = ctx.Slt(a, b)
	case llvm.IntSLE:
		out = ctx.Sle(a, b)
	default:
		return Result{Status: StatusFailed, Err: ErrUnsupportedOpcode}
	}
	st.Assign(inst, out)
	advance(st)
	return Result{Status: StatusRunning}
}

// execCast implements trunc/zext/sext/bitcast/ptrtoint/inttoptr: all of
// them are equal-or-differently-sized bit-vector resizes once the
// destination width is known.
func (e *Executor) execCast(st *state.State, inst llvm.Value) Result {
	src, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	width := intWidthOf(inst.Type(), st.PointerBits())
	var out *smt.Expr
	switch inst.InstructionOpcode() {
	case llvm.Trunc:
		out = st.Context().Slice(src, 0, width-1)
	case llvm.ZExt:
		out = st.Context().ZeroExt(src, width)
	case llvm.SExt:
		out = st.Context().SignExt(src, width)
	case llvm.BitCast, llvm.PtrToInt, llvm.IntToPtr:
		out = st.Context().ResizeUnsigned(src, width)
	default:
		return Result{Status: StatusFailed, Err: ErrUnsupportedOpcode}
	}
	st.Assign(inst, out)
	advance(st)
	return Result{Status: StatusRunning}
}

// execSelect implements select: a concrete condition picks its arm
// directly (avoiding an unnecessary ite in the common case where the
// branch the condition took is already known); a symbolic condition
// produces an Ite expression instead.
func (e *Executor) execSelect(st *state.State, inst llvm.Value) Result {
	cond, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	thenV, err := e.eval(st, inst.Operand(1))
	if err != nil {
		return fail(err)
	}
	elseV, err := e.eval(st, inst.Operand(2))
	if err != nil {
		return fail(err)
	}
	var out *smt.Expr
	if b, ok := cond.GetConstantBool(); ok {
		if b {
			out = thenV
		} else {
			out = elseV
		}
	} else {
		out = st.Context().Ite(cond, thenV, elseV)
	}
	st.Assign(inst, out)
	advance(st)
	return Result{Status: StatusRunning}
}

// intWidthOf returns the bit width a scalar LLVM type should be treated as
// for cast purposes: the declared width for integers, the pointer width
// for pointers.
func intWidthOf(ty llvm.Type, ptrBits uint32) uint32 {
	if ty.TypeKind() == llvm.PointerTypeKind {
		return ptrBits
	}
	return uint32(ty.IntTypeWidth())
}

func fail(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}
