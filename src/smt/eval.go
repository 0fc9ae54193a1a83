package smt

import "github.com/holiman/uint256"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// assignment maps symbol names to concrete values, used both by constant
// folding (empty assignment, so any symbol lookup fails) and by the
// solver's candidate evaluation (populated assignment).
type assignment map[string]*uint256.Int

// ---------------------
// ----- Functions -----
// ---------------------

func maskTo(v *uint256.Int, bits uint32) *uint256.Int {
	if bits >= 256 {
		return new(uint256.Int).Set(v)
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
	mask.Sub(mask, uint256.NewInt(1))
	return new(uint256.Int).And(v, mask)
}

func signBit(v *uint256.Int, bits uint32) bool {
	if bits == 0 {
		return false
	}
	return v.Bit(int(bits - 1))
}

// negate returns the two's-complement negation of v within `bits` bits. The
// signed division, remainder and overflow helpers use it to work on
// magnitudes and then reapply the sign.
func negate(v *uint256.Int, bits uint32) *uint256.Int {
	full := new(uint256.Int).Not(v)
	full = maskTo(full.AddUint64(full, 1), bits)
	return full
}

func isNegative(v *uint256.Int, bits uint32) bool { return signBit(v, bits) }

func absAndSign(v *uint256.Int, bits uint32) (*uint256.Int, bool) {
	if isNegative(v, bits) {
		return negate(v, bits), true
	}
	return new(uint256.Int).Set(v), false
}

// evalConst attempts to fold e to a concrete constant with zero free
// symbols. Returns ok=false as soon as a symbol is encountered.
func evalConst(e *Expr) (*uint256.Int, bool) {
	return evalWith(e, nil)
}

// evalWith evaluates e given a (possibly partial) assignment of symbol
// values. Returns ok=false if any symbol encountered is not bound in env.
func evalWith(e *Expr, env assignment) (*uint256.Int, bool) {
	switch e.op {
	case OpConst:
		return new(uint256.Int).Set(e.value), true
	case OpSymbol:
		if env == nil {
			return nil, false
		}
		v, ok := env[e.name]
		return v, ok
	}

	kids := make([]*uint256.Int, len(e.kids))
	widths := make([]uint32, len(e.kids))
	for i, k := range e.kids {
		v, ok := evalWith(k, env)
		if !ok {
			return nil, false
		}
		kids[i] = v
		widths[i] = k.width
	}

	switch e.op {
	case OpNot:
		return maskTo(new(uint256.Int).Not(kids[0]), e.width), true
	case OpZExt:
		return maskTo(kids[0], e.width), true
	case OpSExt:
		if !isNegative(kids[0], widths[0]) {
			return maskTo(kids[0], e.width), true
		}
		ext := new(uint256.Int).Set(kids[0])
		// Set all bits above the source width, then mask to destination width.
		for b := widths[0]; b < e.width; b++ {
			ext.SetBit(ext, int(b), 1)
		}
		return maskTo(ext, e.width), true
	case OpSlice:
		shifted := new(uint256.Int).Rsh(kids[0], uint(e.lo))
		return maskTo(shifted, e.width), true
	case OpAdd:
		return maskTo(new(uint256.Int).Add(kids[0], kids[1]), e.width), true
	case OpSub:
		return maskTo(new(uint256.Int).Sub(kids[0], kids[1]), e.width), true
	case OpMul:
		return maskTo(new(uint256.Int).Mul(kids[0], kids[1]), e.width), true
	case OpUDiv:
		if kids[1].IsZero() {
			return new(uint256.Int), true
		}
		return maskTo(new(uint256.Int).Div(kids[0], kids[1]), e.width), true
	case OpURem:
		if kids[1].IsZero() {
			return new(uint256.Int).Set(kids[0]), true
		}
		return maskTo(new(uint256.Int).Mod(kids[0], kids[1]), e.width), true
	case OpSDiv, OpSRem:
		if kids[1].IsZero() {
			if e.op == OpSRem {
				return new(uint256.Int).Set(kids[0]), true
			}
			return new(uint256.Int), true
		}
		aAbs, aNeg := absAndSign(kids[0], e.width)
		bAbs, bNeg := absAndSign(kids[1], e.width)
		if e.op == OpSDiv {
			q := new(uint256.Int).Div(aAbs, bAbs)
			if aNeg != bNeg {
				q = negate(q, e.width)
			}
			return maskTo(q, e.width), true
		}
		r := new(uint256.Int).Mod(aAbs, bAbs)
		if aNeg {
			r = negate(r, e.width)
		}
		return maskTo(r, e.width), true
	case OpAnd:
		return maskTo(new(uint256.Int).And(kids[0], kids[1]), e.width), true
	case OpOr:
		return maskTo(new(uint256.Int).Or(kids[0], kids[1]), e.width), true
	case OpXor:
		return maskTo(new(uint256.Int).Xor(kids[0], kids[1]), e.width), true
	case OpShl:
		amt := shiftAmount(kids[1], widths[0])
		return maskTo(new(uint256.Int).Lsh(kids[0], uint(amt)), e.width), true
	case OpLShr:
		amt := shiftAmount(kids[1], widths[0])
		return maskTo(new(uint256.Int).Rsh(kids[0], uint(amt)), e.width), true
	case OpAShr:
		amt := shiftAmount(kids[1], widths[0])
		if !isNegative(kids[0], widths[0]) {
			return maskTo(new(uint256.Int).Rsh(kids[0], uint(amt)), e.width), true
		}
		shifted := new(uint256.Int).Rsh(kids[0], uint(amt))
		for b := widths[0] - amt; b < widths[0]; b++ {
			shifted.SetBit(shifted, int(b), 1)
		}
		return maskTo(shifted, e.width), true
	case OpEq:
		return boolExpr(kids[0].Eq(kids[1])), true
	case OpNe:
		return boolExpr(!kids[0].Eq(kids[1])), true
	case OpUlt:
		return boolExpr(kids[0].Lt(kids[1])), true
	case OpUle:
		return boolExpr(kids[0].Lt(kids[1]) || kids[0].Eq(kids[1])), true
	case OpUgt:
		return boolExpr(kids[0].Gt(kids[1])), true
	case OpUge:
		return boolExpr(kids[0].Gt(kids[1]) || kids[0].Eq(kids[1])), true
	case OpSlt, OpSle, OpSgt, OpSge:
		return boolExpr(signedCompare(e.op, kids[0], kids[1], widths[0])), true
	case OpConcat:
		hi := new(uint256.Int).Lsh(kids[0], uint(widths[1]))
		return maskTo(hi.Or(hi, kids[1]), e.width), true
	case OpIte:
		if kids[0].Sign() != 0 {
			return new(uint256.Int).Set(kids[1]), true
		}
		return new(uint256.Int).Set(kids[2]), true
	case OpSAddO:
		_, ovf := addOverflow(kids[0], kids[1], widths[0], true)
		return boolExpr(ovf), true
	case OpUAddO:
		_, ovf := addOverflow(kids[0], kids[1], widths[0], false)
		return boolExpr(ovf), true
	case OpSSubO:
		_, ovf := subOverflow(kids[0], kids[1], widths[0], true)
		return boolExpr(ovf), true
	case OpUSubO:
		_, ovf := subOverflow(kids[0], kids[1], widths[0], false)
		return boolExpr(ovf), true
	case OpSMulO:
		_, ovf := mulOverflow(kids[0], kids[1], widths[0], true)
		return boolExpr(ovf), true
	case OpUMulO:
		_, ovf := mulOverflow(kids[0], kids[1], widths[0], false)
		return boolExpr(ovf), true
	case OpUAddSat:
		sum := new(uint256.Int).Add(kids[0], kids[1])
		masked := maskTo(sum, e.width)
		if !sum.Eq(masked) {
			return maskTo(new(uint256.Int).Not(new(uint256.Int)), e.width), true
		}
		return masked, true
	}
	return nil, false
}

func shiftAmount(v *uint256.Int, width uint32) uint32 {
	m := uint256.NewInt(uint64(width))
	r := new(uint256.Int).Mod(v, m)
	return uint32(r.Uint64())
}

func boolExpr(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return new(uint256.Int)
}

func signedCompare(op Op, a, b *uint256.Int, bits uint32) bool {
	aNeg, bNeg := isNegative(a, bits), isNegative(b, bits)
	var lt bool
	switch {
	case aNeg && !bNeg:
		lt = true
	case !aNeg && bNeg:
		lt = false
	default:
		lt = a.Lt(b)
	}
	eq := a.Eq(b)
	switch op {
	case OpSlt:
		return lt
	case OpSle:
		return lt || eq
	case OpSgt:
		return !lt && !eq
	case OpSge:
		return !lt || eq
	}
	return false
}

func addOverflow(a, b *uint256.Int, bits uint32, signed bool) (*uint256.Int, bool) {
	sum := maskTo(new(uint256.Int).Add(a, b), bits)
	if !signed {
		full := new(uint256.Int).Add(a, b)
		return sum, !full.Eq(sum)
	}
	aNeg, bNeg := isNegative(a, bits), isNegative(b, bits)
	rNeg := isNegative(sum, bits)
	return sum, aNeg == bNeg && rNeg != aNeg
}

func subOverflow(a, b *uint256.Int, bits uint32, signed bool) (*uint256.Int, bool) {
	diff := maskTo(new(uint256.Int).Sub(a, b), bits)
	if !signed {
		return diff, a.Lt(b)
	}
	aNeg, bNeg := isNegative(a, bits), isNegative(b, bits)
	rNeg := isNegative(diff, bits)
	return diff, aNeg != bNeg && rNeg != aNeg
}

func mulOverflow(a, b *uint256.Int, bits uint32, signed bool) (*uint256.Int, bool) {
	prod := maskTo(new(uint256.Int).Mul(a, b), bits)
	if !signed {
		if a.IsZero() || b.IsZero() {
			return prod, false
		}
		back := new(uint256.Int).Div(prod, a)
		return prod, !back.Eq(maskTo(b, bits))
	}
	aAbs, aNeg := absAndSign(a, bits)
	bAbs, bNeg := absAndSign(b, bits)
	full := new(uint256.Int).Mul(aAbs, bAbs)
	limit := new(uint256.Int)
	if aNeg != bNeg {
		limit.Lsh(uint256.NewInt(1), uint(bits-1))
		return prod, full.Gt(limit)
	}
	limit.Lsh(uint256.NewInt(1), uint(bits-1))
	limit.Sub(limit, uint256.NewInt(1))
	return prod, full.Gt(limit)
}
