package project

import (
	"fmt"
	"strings"

	"symex/src/smt"
)

// ----------------------------
// ----- Functions -----------
// ----------------------------

// lookupIntrinsic matches name against the llvm.* families this engine
// gives closed-form semantics to, by stripping the trailing ".<type>"
// mangling LLVM intrinsics carry (e.g. "llvm.memcpy.p0i8.p0i8.i64" or
// "llvm.sadd.with.overflow.i32") and switching on the stable prefix.
func lookupIntrinsic(name string) (IntrinsicFn, bool) {
	if !strings.HasPrefix(name, "llvm.") {
		return nil, false
	}
	switch {
	case strings.HasPrefix(name, "llvm.memcpy.") || strings.HasPrefix(name, "llvm.memmove."):
		return intrinsicMemcpy, true
	case strings.HasPrefix(name, "llvm.memset."):
		return intrinsicMemset, true
	case strings.HasPrefix(name, "llvm.sadd.with.overflow."):
		return overflowIntrinsic((*smt.Context).SAddOverflow, (*smt.Context).Add), true
	case strings.HasPrefix(name, "llvm.uadd.with.overflow."):
		return overflowIntrinsic((*smt.Context).UAddOverflow, (*smt.Context).Add), true
	case strings.HasPrefix(name, "llvm.ssub.with.overflow."):
		return overflowIntrinsic((*smt.Context).SSubOverflow, (*smt.Context).Sub), true
	case strings.HasPrefix(name, "llvm.usub.with.overflow."):
		return overflowIntrinsic((*smt.Context).USubOverflow, (*smt.Context).Sub), true
	case strings.HasPrefix(name, "llvm.smul.with.overflow."):
		return overflowIntrinsic((*smt.Context).SMulOverflow, (*smt.Context).Mul), true
	case strings.HasPrefix(name, "llvm.umul.with.overflow."):
		return overflowIntrinsic((*smt.Context).UMulOverflow, (*smt.Context).Mul), true
	case strings.HasPrefix(name, "llvm.uadd.sat."):
		return intrinsicUAddSat, true
	case strings.HasPrefix(name, "llvm.sadd.sat."):
		return intrinsicSAddSat, true
	case strings.HasPrefix(name, "llvm.expect."):
		return intrinsicExpect, true
	case strings.HasPrefix(name, "llvm.lifetime.") || strings.HasPrefix(name, "llvm.dbg."):
		return intrinsicNoop, true
	default:
		return nil, false
	}
}

func intrinsicNoop(c *Call) error { return nil }

func intrinsicMemcpy(c *Call) error {
	if len(c.Args) < 3 {
		return fmt.Errorf("project: memcpy expects (dst, src, len), got %d args", len(c.Args))
	}
	dst, src, lenExpr := c.Args[0], c.Args[1], c.Args[2]
	n, ok := lenExpr.GetConstant()
	if !ok {
		return fmt.Errorf("project: memcpy requires a concrete length")
	}
	length := n.Uint64()
	if length == 0 {
		return nil
	}
	ctx := c.Env.Context()
	mem := c.Env.Memory()
	store := c.Env.Store()

	dstAddrs, _, err := mem.ResolveAddresses(store, dst, 1)
	if err != nil || len(dstAddrs) == 0 {
		return fmt.Errorf("project: memcpy: resolving dst: %w", err)
	}
	srcAddrs, _, err := mem.ResolveAddresses(store, src, 1)
	if err != nil || len(srcAddrs) == 0 {
		return fmt.Errorf("project: memcpy: resolving src: %w", err)
	}
	data, err := mem.Read(srcAddrs[0], uint32(length*8))
	if err != nil {
		return err
	}
	_ = ctx
	return mem.Write(dstAddrs[0], data)
}

func intrinsicMemset(c *Call) error {
	if len(c.Args) < 3 {
		return fmt.Errorf("project: memset expects (dst, value, len), got %d args", len(c.Args))
	}
	dst, val, lenExpr := c.Args[0], c.Args[1], c.Args[2]
	n, ok := lenExpr.GetConstant()
	if !ok {
		return fmt.Errorf("project: memset requires a concrete length")
	}
	length := n.Uint64()
	if length == 0 {
		return nil
	}
	byteVal, ok := val.GetConstant()
	if !ok {
		return fmt.Errorf("project: memset requires a concrete fill byte")
	}
	ctx := c.Env.Context()
	mem := c.Env.Memory()
	store := c.Env.Store()
	dstAddrs, _, err := mem.ResolveAddresses(store, dst, 1)
	if err != nil || len(dstAddrs) == 0 {
		return fmt.Errorf("project: memset: resolving dst: %w", err)
	}
	fill := ctx.FromUint64(byteVal.Uint64()&0xff, 8)
	full := fill
	for i := uint64(1); i < length; i++ {
		full = ctx.Concat(full, fill)
	}
	return mem.Write(dstAddrs[0], full)
}

// overflowIntrinsic builds an IntrinsicFn for the {s,u}{add,sub,mul}.with.overflow
// family: the result is the concatenation of a 1-bit overflow flag above the
// N-bit arithmetic result, so extractvalue index 0 reads the low N bits and
// index 1 reads the top bit.
func overflowIntrinsic(
	overflowOp func(*smt.Context, *smt.Expr, *smt.Expr) *smt.Expr,
	valueOp func(*smt.Context, *smt.Expr, *smt.Expr) *smt.Expr,
) IntrinsicFn {
	return func(c *Call) error {
		if len(c.Args) != 2 {
			return fmt.Errorf("project: overflow intrinsic expects 2 args, got %d", len(c.Args))
		}
		ctx := c.Env.Context()
		a, b := c.Args[0], c.Args[1]
		result := valueOp(ctx, a, b)
		overflow := overflowOp(ctx, a, b)
		c.Return(ctx.Concat(overflow, result))
		return nil
	}
}

func intrinsicUAddSat(c *Call) error {
	if len(c.Args) != 2 {
		return fmt.Errorf("project: uadd.sat expects 2 args")
	}
	ctx := c.Env.Context()
	c.Return(ctx.UAddSat(c.Args[0], c.Args[1]))
	return nil
}

func intrinsicSAddSat(c *Call) error {
	if len(c.Args) != 2 {
		return fmt.Errorf("project: sadd.sat expects 2 args")
	}
	ctx := c.Env.Context()
	a, b := c.Args[0], c.Args[1]
	width := a.Width()
	sum := ctx.Add(a, b)
	overflow := ctx.SAddOverflow(a, b)
	aSign := ctx.Slice(a, width-1, width-1)
	clampHigh := ctx.SignedMax(width)
	clampLow := ctx.SignedMin(width)
	clamp := ctx.Ite(ctx.Eq(aSign, ctx.One(1)), clampLow, clampHigh)
	c.Return(ctx.Ite(overflow, clamp, sum))
	return nil
}

func intrinsicExpect(c *Call) error {
	if len(c.Args) < 1 {
		return fmt.Errorf("project: llvm.expect expects at least 1 arg")
	}
	c.Return(c.Args[0])
	return nil
}
