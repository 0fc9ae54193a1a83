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

// execAlloca implements alloca: compute the byte size of the allocated
// type times its (usually constant 1) array-size operand, reserve it from
// the path's memory model, and bind the resulting pointer-width address to
// the instruction.
func (e *Executor) execAlloca(st *state.State, inst llvm.Value) Result {
	elemBits := st.BitSizeOf(inst.Type().ElementType())
	count := uint64(1)
	if inst.OperandsCount() > 0 {
		if c, ok := mustConstCount(e, st, inst.Operand(0)); ok {
			count = c
		}
	}
	sizeBits := elemBits * count
	if sizeBits == 0 {
		sizeBits = 8
	}
	addr, err := st.Allocate(sizeBits, 0)
	if err != nil {
		return fail(err)
	}
	st.Assign(inst, st.Context().FromUint64(addr, st.PointerBits()))
	advance(st)
	return Result{Status: StatusRunning}
}

func mustConstCount(e *Executor, st *state.State, v llvm.Value) (uint64, bool) {
	expr, err := e.eval(st, v)
	if err != nil {
		return 0, false
	}
	c, ok := expr.GetConstant()
	if !ok {
		return 0, false
	}
	return c.Uint64(), true
}

// execLoad implements load: resolve the address (forking one path per
// concretization when it is symbolic and more than one address is
// feasible), and bind the pointee-width read to the instruction on each
// resulting path.
func (e *Executor) execLoad(st *state.State, sel *pathsel.Selector, inst llvm.Value) Result {
	addrExpr, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	if err := st.Memory().CheckNull(st.Store(), addrExpr); err != nil {
		return fail(err)
	}
	bits := uint32(st.BitSizeOf(inst.Type()))
	addrs, exhaustive, err := st.Memory().ResolveAddresses(st.Store(), addrExpr, e.Bounds.MaxMemoryAccessResolutions)
	if err != nil {
		return fail(err)
	}
	if len(addrs) == 0 {
		return Result{Status: StatusIgnored}
	}
	if !exhaustive && e.Metrics != nil {
		e.Metrics.BoundHits.WithLabelValues("max_memory_access_resolutions").Inc()
	}

	if len(addrs) == 1 {
		v, err := st.Memory().Read(addrs[0], bits)
		if err != nil {
			return fail(err)
		}
		st.Assign(inst, v)
		advance(st)
		return Result{Status: StatusRunning}
	}

	ctx := st.Context()
	for _, a := range addrs[1:] {
		sibling := st.Fork()
		v, err := sibling.Memory().Read(a, bits)
		if err != nil {
			return fail(err)
		}
		sibling.Assign(inst, v)
		advance(sibling)
		sel.SavePath(sibling, ctx.Eq(addrExpr, ctx.FromUint64(a, st.PointerBits())))
		if e.Metrics != nil {
			e.Metrics.Forks.Inc()
		}
	}
	v, err := st.Memory().Read(addrs[0], bits)
	if err != nil {
		return fail(err)
	}
	st.Assign(inst, v)
	if err := st.Store().Assert(ctx.Eq(addrExpr, ctx.FromUint64(addrs[0], st.PointerBits()))); err != nil {
		return fail(err)
	}
	advance(st)
	return Result{Status: StatusRunning}
}

// execStore implements store: same address-resolution/forking policy as
// load, writing the evaluated value's expression into each resulting
// path's memory instead of reading from it.
func (e *Executor) execStore(st *state.State, sel *pathsel.Selector, inst llvm.Value) Result {
	valExpr, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	addrExpr, err := e.eval(st, inst.Operand(1))
	if err != nil {
		return fail(err)
	}
	if err := st.Memory().CheckNull(st.Store(), addrExpr); err != nil {
		return fail(err)
	}
	addrs, exhaustive, err := st.Memory().ResolveAddresses(st.Store(), addrExpr, e.Bounds.MaxMemoryAccessResolutions)
	if err != nil {
		return fail(err)
	}
	if len(addrs) == 0 {
		return Result{Status: StatusIgnored}
	}
	if !exhaustive && e.Metrics != nil {
		e.Metrics.BoundHits.WithLabelValues("max_memory_access_resolutions").Inc()
	}

	if len(addrs) == 1 {
		if err := st.Memory().Write(addrs[0], valExpr); err != nil {
			return fail(err)
		}
		advance(st)
		return Result{Status: StatusRunning}
	}

	ctx := st.Context()
	for _, a := range addrs[1:] {
		sibling := st.Fork()
		if err := sibling.Memory().Write(a, valExpr); err != nil {
			return fail(err)
		}
		advance(sibling)
		sel.SavePath(sibling, ctx.Eq(addrExpr, ctx.FromUint64(a, st.PointerBits())))
		if e.Metrics != nil {
			e.Metrics.Forks.Inc()
		}
	}
	if err := st.Memory().Write(addrs[0], valExpr); err != nil {
		return fail(err)
	}
	if err := st.Store().Assert(ctx.Eq(addrExpr, ctx.FromUint64(addrs[0], st.PointerBits()))); err != nil {
		return fail(err)
	}
	advance(st)
	return Result{Status: StatusRunning}
}

// execGEP implements getelementptr: walk the base type with each index,
// summing byte offsets -- a constant index into a struct selects the
// prefix-sum of field sizes, while an array/vector/pointer index multiplies
// its element size by the (possibly symbolic) index expression. inbounds
// is advisory only, per spec.md 4.8.
func (e *Executor) execGEP(st *state.State, inst llvm.Value) Result {
	base, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	ctx := st.Context()
	ptrBits := st.PointerBits()
	offset := ctx.Zero(ptrBits)
	cur := inst.Operand(0).Type().ElementType()

	for i := 1; i < inst.OperandsCount(); i++ {
		idxVal := inst.Operand(i)
		switch cur.TypeKind() {
		case llvm.StructTypeKind:
			c, ok := mustConstCount(e, st, idxVal)
			if !ok {
				return Result{Status: StatusFailed, Err: ErrMalformedInstruction}
			}
			fields := cur.StructElementTypes()
			var bitOff uint64
			for f := uint64(0); f < c; f++ {
				bitOff += st.BitSizeOf(fields[f])
			}
			offset = ctx.Add(offset, ctx.FromUint64(bitOff/8, ptrBits))
			cur = fields[c]
		default:
			elem := cur.ElementType()
			idxExpr, err := e.eval(st, idxVal)
			if err != nil {
				return fail(err)
			}
			elemBytes := st.BitSizeOf(elem) / 8
			idxResized := ctx.ResizeSigned(idxExpr, ptrBits)
			offset = ctx.Add(offset, ctx.Mul(idxResized, ctx.FromUint64(elemBytes, ptrBits)))
			cur = elem
		}
	}
	st.Assign(inst, ctx.Add(base, offset))
	advance(st)
	return Result{Status: StatusRunning}
}

// execExtractValue implements extractvalue: walk the aggregate type with
// the instruction's constant index list to a bit offset and width, then
// slice it out of the evaluated struct/array expression.
func (e *Executor) execExtractValue(st *state.State, inst llvm.Value) Result {
	agg, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	off, width := aggregateOffset(st, inst.Operand(0).Type(), inst.Indices())
	out := st.Context().Slice(agg, uint32(off), uint32(off+width)-1)
	st.Assign(inst, out)
	advance(st)
	return Result{Status: StatusRunning}
}

// execInsertValue implements insertvalue: same offset walk as
// extractvalue, splicing the new element's value into the aggregate
// instead of slicing it out.
func (e *Executor) execInsertValue(st *state.State, inst llvm.Value) Result {
	agg, err := e.eval(st, inst.Operand(0))
	if err != nil {
		return fail(err)
	}
	elem, err := e.eval(st, inst.Operand(1))
	if err != nil {
		return fail(err)
	}
	off, _ := aggregateOffset(st, inst.Operand(0).Type(), inst.Indices())
	out := spliceInto(st.Context(), agg, uint32(off), elem)
	st.Assign(inst, out)
	advance(st)
	return Result{Status: StatusRunning}
}

// aggregateOffset walks ty through indices (LLVM's flat extractvalue/
// insertvalue index list) returning the bit offset of the selected element
// from the aggregate's low bit, and its bit width.
func aggregateOffset(st *state.State, ty llvm.Type, indices []uint32) (uint64, uint64) {
	var off uint64
	for _, idx := range indices {
		switch ty.TypeKind() {
		case llvm.StructTypeKind:
			fields := ty.StructElementTypes()
			for i := uint32(0); i < idx; i++ {
				off += st.BitSizeOf(fields[i])
			}
			ty = fields[idx]
		case llvm.ArrayTypeKind:
			elem := ty.ElementType()
			off += uint64(idx) * st.BitSizeOf(elem)
			ty = elem
		}
	}
	return off, st.BitSizeOf(ty)
}

// spliceInto replaces width(value) bits of agg starting at bit offset off
// with value, by slicing the untouched high/low remainders and
// concatenating, the same technique memory.Write uses for a partial
// object write.
func spliceInto(ctx *smt.Context, agg *smt.Expr, off uint32, value *smt.Expr) *smt.Expr {
	width := value.Width()
	total := agg.Width()
	var parts []*smt.Expr
	if off+width < total {
		parts = append(parts, ctx.Slice(agg, off+width, total-1))
	}
	parts = append(parts, value)
	if off > 0 {
		parts = append(parts, ctx.Slice(agg, 0, off-1))
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = ctx.Concat(out, p)
	}
	return out
}
