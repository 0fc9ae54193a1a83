// Package smt provides the bit-vector expression algebra and constraint
// store used by every other package in this module. Expressions are built
// exclusively through a Context so that width rules can never be bypassed.
package smt

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Op identifies the operation that produced an Expr.
type Op int

const (
	OpConst Op = iota
	OpSymbol
	OpNot
	OpZExt
	OpSExt
	OpSlice // lo, hi inclusive
	OpAdd
	OpSub
	OpMul
	OpUDiv
	OpSDiv
	OpURem
	OpSRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpEq
	OpNe
	OpUlt
	OpUle
	OpUgt
	OpUge
	OpSlt
	OpSle
	OpSgt
	OpSge
	OpConcat
	OpIte
	OpSAddO
	OpUAddO
	OpSSubO
	OpUSubO
	OpSMulO
	OpUMulO
	OpUAddSat
)

// Expr is a bit-vector term. Expr values are only ever produced by a
// Context; the zero value is not valid. Width is fixed at construction time
// and is never recomputed.
type Expr struct {
	id    uint64
	ctx   *Context
	op    Op
	width uint32

	// kids holds operand expressions, in operator-defined order.
	kids []*Expr

	// lo/hi are only meaningful for OpSlice: inclusive bit bounds.
	lo, hi uint32

	// value is the constant payload for OpConst, nil otherwise.
	value *uint256.Int

	// name is the display name for OpSymbol, and a debug label otherwise.
	name string
}

// Width returns the bit width of e.
func (e *Expr) Width() uint32 { return e.width }

// Operator returns the operator that produced e.
func (e *Expr) Operator() Op { return e.op }

// Operands returns the operand expressions of e, in operator-defined order.
func (e *Expr) Operands() []*Expr { return e.kids }

// Name returns the symbol name for symbols, or the debug label otherwise.
func (e *Expr) Name() string { return e.name }

func (e *Expr) String() string {
	switch e.op {
	case OpConst:
		return fmt.Sprintf("%s:i%d", e.value.Hex(), e.width)
	case OpSymbol:
		return fmt.Sprintf("%s:i%d", e.name, e.width)
	default:
		return fmt.Sprintf("(%s i%d %v)", opName(e.op), e.width, e.kids)
	}
}

func opName(o Op) string {
	names := [...]string{
		"const", "symbol", "not", "zext", "sext", "slice",
		"add", "sub", "mul", "udiv", "sdiv", "urem", "srem",
		"and", "or", "xor", "shl", "lshr", "ashr",
		"eq", "ne", "ult", "ule", "ugt", "uge", "slt", "sle", "sgt", "sge",
		"concat", "ite", "saddo", "uaddo", "ssubo", "usubo", "smulo", "umulo", "uaddsat",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// GetConstant returns the constant integer value of e if e is a concrete
// constant expression (no symbols anywhere in its tree), and ok=false
// otherwise. It does not consult the solver: an expression that is only
// constant *under the current constraints* is not considered constant here.
func (e *Expr) GetConstant() (*uint256.Int, bool) {
	return evalConst(e)
}

// GetConstantBool is GetConstant specialised for width-1 expressions.
func (e *Expr) GetConstantBool() (bool, bool) {
	if e.width != 1 {
		return false, false
	}
	v, ok := e.GetConstant()
	if !ok {
		return false, false
	}
	return v.Sign() != 0, true
}
