package smt

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Context owns every Expr it produces. All width-checking lives here: a
// caller can never construct a mismatched-width expression through any
// other path. A Context is shared by every State forked from a single VM
// run, matching the "logically process-wide, passed explicitly" model in
// the design notes: it is never a package-level global.
type Context struct {
	nextID   uint64
	nextSym  uint64
	symNames map[string]bool
}

// ---------------------
// ----- Constants -----
// ---------------------

// MaxWidth bounds the width of constants and fresh symbols: FromBig,
// FromUint64 and Unconstrained panic on a wider request. Widths produced by
// derived operations (Concat, ZeroExt, SignExt) are not checked against it.
const MaxWidth = 1 << 20

// ---------------------
// ----- Functions -----
// ---------------------

// NewContext returns a fresh, empty Context.
func NewContext() *Context {
	return &Context{symNames: make(map[string]bool)}
}

func (c *Context) alloc(op Op, width uint32, kids ...*Expr) *Expr {
	c.nextID++
	return &Expr{id: c.nextID, ctx: c, op: op, width: width, kids: kids}
}

func mustMatch(a, b *Expr) {
	if a.width != b.width {
		panic(fmt.Sprintf("smt: width mismatch: %d vs %d", a.width, b.width))
	}
}

func mustBool(e *Expr) {
	if e.width != 1 {
		panic(fmt.Sprintf("smt: expected width-1 expression, got width %d", e.width))
	}
}

// Zero returns the all-zero constant of width n.
func (c *Context) Zero(n uint32) *Expr { return c.FromUint64(0, n) }

// One returns the constant 1 of width n.
func (c *Context) One(n uint32) *Expr { return c.FromUint64(1, n) }

// FromBool returns a width-1 constant.
func (c *Context) FromBool(b bool) *Expr {
	if b {
		return c.FromUint64(1, 1)
	}
	return c.FromUint64(0, 1)
}

// FromUint64 returns a constant of width n holding v, truncated to n bits.
func (c *Context) FromUint64(v uint64, n uint32) *Expr {
	return c.FromBig(new(uint256.Int).SetUint64(v), n)
}

// FromBig returns a constant of width n holding v masked to n bits.
func (c *Context) FromBig(v *uint256.Int, n uint32) *Expr {
	if n == 0 || n > MaxWidth {
		panic("smt: invalid width")
	}
	masked := maskTo(v, n)
	e := c.alloc(OpConst, n)
	e.value = masked
	return e
}

// FromBinaryString parses a string of '0'/'1' characters (MSB first) into a
// constant expression whose width equals the string length.
func (c *Context) FromBinaryString(s string) (*Expr, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("smt: empty binary string")
	}
	v := new(uint256.Int)
	for _, r := range s {
		v.Lsh(v, 1)
		switch r {
		case '0':
		case '1':
			v.Or(v, uint256.NewInt(1))
		default:
			return nil, fmt.Errorf("smt: invalid binary digit %q", r)
		}
	}
	return c.FromBig(v, uint32(len(s))), nil
}

// Unconstrained returns a fresh symbol of width n. If name is empty a unique
// name is generated.
func (c *Context) Unconstrained(n uint32, name string) *Expr {
	if n == 0 || n > MaxWidth {
		panic("smt: invalid width")
	}
	if name == "" {
		c.nextSym++
		name = fmt.Sprintf("sym%d", c.nextSym)
	}
	for c.symNames[name] {
		c.nextSym++
		name = fmt.Sprintf("%s_%d", name, c.nextSym)
	}
	c.symNames[name] = true
	e := c.alloc(OpSymbol, n)
	e.name = name
	return e
}

// UnsignedMax returns the largest unsigned value representable in n bits.
func (c *Context) UnsignedMax(n uint32) *Expr {
	v := maskTo(new(uint256.Int).Not(new(uint256.Int)), n)
	return c.FromBig(v, n)
}

// SignedMax returns the largest signed value representable in n bits.
func (c *Context) SignedMax(n uint32) *Expr {
	v := new(uint256.Int).Lsh(uint256.NewInt(1), uint(n-1))
	v.Sub(v, uint256.NewInt(1))
	return c.FromBig(v, n)
}

// SignedMin returns the smallest (most negative) signed value representable
// in n bits, expressed as its unsigned bit pattern.
func (c *Context) SignedMin(n uint32) *Expr {
	v := new(uint256.Int).Lsh(uint256.NewInt(1), uint(n-1))
	return c.FromBig(v, n)
}

// ---- unary ----

// Not returns the bitwise complement of e.
func (c *Context) Not(e *Expr) *Expr { return c.alloc(OpNot, e.width, e) }

// ZeroExt grows e to width n by zero-extension. n must be >= e.Width().
func (c *Context) ZeroExt(e *Expr, n uint32) *Expr {
	if n < e.width {
		panic("smt: ZeroExt to smaller width")
	}
	if n == e.width {
		return e
	}
	return c.alloc(OpZExt, n, e)
}

// SignExt grows e to width n by sign-extension. n must be >= e.Width().
func (c *Context) SignExt(e *Expr, n uint32) *Expr {
	if n < e.width {
		panic("smt: SignExt to smaller width")
	}
	if n == e.width {
		return e
	}
	return c.alloc(OpSExt, n, e)
}

// Slice returns bits [lo, hi] of e, inclusive, LSB-numbered. Width of the
// result is hi-lo+1.
func (c *Context) Slice(e *Expr, lo, hi uint32) *Expr {
	if hi < lo || hi >= e.width {
		panic("smt: invalid slice bounds")
	}
	out := c.alloc(OpSlice, hi-lo+1, e)
	out.lo, out.hi = lo, hi
	return out
}

// ResizeUnsigned grows or shrinks e to width n, unsigned: zero-extend when growing,
// slice the low n bits when shrinking.
func (c *Context) ResizeUnsigned(e *Expr, n uint32) *Expr {
	if n > e.width {
		return c.ZeroExt(e, n)
	}
	if n < e.width {
		return c.Slice(e, 0, n-1)
	}
	return e
}

// ResizeSigned grows or shrinks e to width n, signed: sign-extend when
// growing, slice the low n bits when shrinking.
func (c *Context) ResizeSigned(e *Expr, n uint32) *Expr {
	if n > e.width {
		return c.SignExt(e, n)
	}
	if n < e.width {
		return c.Slice(e, 0, n-1)
	}
	return e
}

// ---- binary arithmetic / bitwise / shifts ----

func (c *Context) binArith(op Op, a, b *Expr) *Expr {
	mustMatch(a, b)
	return c.alloc(op, a.width, a, b)
}

func (c *Context) Add(a, b *Expr) *Expr  { return c.binArith(OpAdd, a, b) }
func (c *Context) Sub(a, b *Expr) *Expr  { return c.binArith(OpSub, a, b) }
func (c *Context) Mul(a, b *Expr) *Expr  { return c.binArith(OpMul, a, b) }
func (c *Context) UDiv(a, b *Expr) *Expr { return c.binArith(OpUDiv, a, b) }
func (c *Context) SDiv(a, b *Expr) *Expr { return c.binArith(OpSDiv, a, b) }
func (c *Context) URem(a, b *Expr) *Expr { return c.binArith(OpURem, a, b) }
func (c *Context) SRem(a, b *Expr) *Expr { return c.binArith(OpSRem, a, b) }
func (c *Context) And(a, b *Expr) *Expr  { return c.binArith(OpAnd, a, b) }
func (c *Context) Or(a, b *Expr) *Expr   { return c.binArith(OpOr, a, b) }
func (c *Context) Xor(a, b *Expr) *Expr  { return c.binArith(OpXor, a, b) }
func (c *Context) Shl(a, b *Expr) *Expr  { return c.binArith(OpShl, a, b) }
func (c *Context) LShr(a, b *Expr) *Expr { return c.binArith(OpLShr, a, b) }
func (c *Context) AShr(a, b *Expr) *Expr { return c.binArith(OpAShr, a, b) }

// UAddSat returns the unsigned saturating sum of a and b.
func (c *Context) UAddSat(a, b *Expr) *Expr { return c.binArith(OpUAddSat, a, b) }

// ---- comparisons: all produce width-1 expressions ----

func (c *Context) cmp(op Op, a, b *Expr) *Expr {
	mustMatch(a, b)
	return c.alloc(op, 1, a, b)
}

func (c *Context) Eq(a, b *Expr) *Expr  { return c.cmp(OpEq, a, b) }
func (c *Context) Ne(a, b *Expr) *Expr  { return c.cmp(OpNe, a, b) }
func (c *Context) Ult(a, b *Expr) *Expr { return c.cmp(OpUlt, a, b) }
func (c *Context) Ule(a, b *Expr) *Expr { return c.cmp(OpUle, a, b) }
func (c *Context) Ugt(a, b *Expr) *Expr { return c.cmp(OpUgt, a, b) }
func (c *Context) Uge(a, b *Expr) *Expr { return c.cmp(OpUge, a, b) }
func (c *Context) Slt(a, b *Expr) *Expr { return c.cmp(OpSlt, a, b) }
func (c *Context) Sle(a, b *Expr) *Expr { return c.cmp(OpSle, a, b) }
func (c *Context) Sgt(a, b *Expr) *Expr { return c.cmp(OpSgt, a, b) }
func (c *Context) Sge(a, b *Expr) *Expr { return c.cmp(OpSge, a, b) }

// ---- overflow predicates: width-1 ----

func (c *Context) overflow(op Op, a, b *Expr) *Expr {
	mustMatch(a, b)
	return c.alloc(op, 1, a, b)
}

func (c *Context) SAddOverflow(a, b *Expr) *Expr { return c.overflow(OpSAddO, a, b) }
func (c *Context) UAddOverflow(a, b *Expr) *Expr { return c.overflow(OpUAddO, a, b) }
func (c *Context) SSubOverflow(a, b *Expr) *Expr { return c.overflow(OpSSubO, a, b) }
func (c *Context) USubOverflow(a, b *Expr) *Expr { return c.overflow(OpUSubO, a, b) }
func (c *Context) SMulOverflow(a, b *Expr) *Expr { return c.overflow(OpSMulO, a, b) }
func (c *Context) UMulOverflow(a, b *Expr) *Expr { return c.overflow(OpUMulO, a, b) }

// ---- structural ----

// Concat appends b as the low bits and a as the high bits, producing an
// expression of width a.Width()+b.Width().
func (c *Context) Concat(a, b *Expr) *Expr {
	return c.alloc(OpConcat, a.width+b.width, a, b)
}

// Ite returns then if cond is non-zero, otherwise els. then and els must
// have matching widths; cond must be width 1.
func (c *Context) Ite(cond, then, els *Expr) *Expr {
	mustBool(cond)
	mustMatch(then, els)
	return c.alloc(OpIte, then.width, cond, then, els)
}
