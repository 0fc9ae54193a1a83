// Package state implements the per-path execution state an Executor steps:
// the local variable bindings, call stack, constraint store, memory model,
// and global table that together let one path run independently of every
// other path forked from the same function.
package state

import (
	llvm "tinygo.org/x/go-llvm"

	"symex/src/smt"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// VarMap is a stack of scopes mapping an IR value (an instruction result or
// a function argument -- llvm.Value is a thin wrapper around a single C
// pointer and so is itself a valid, collision-free map key) to its current
// symbolic value. Entering a call pushes a fresh frame; leaving it pops
// back to the enclosing bindings, mirroring how the original keeps one
// HashMap per live stack frame instead of a single flat table.
type VarMap struct {
	scopes []map[llvm.Value]*smt.Expr
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewVarMap returns a VarMap with a single, empty root scope.
func NewVarMap() *VarMap {
	return &VarMap{scopes: []map[llvm.Value]*smt.Expr{{}}}
}

// EnterScope pushes a new, empty scope, used on function call.
func (v *VarMap) EnterScope() {
	v.scopes = append(v.scopes, map[llvm.Value]*smt.Expr{})
}

// LeaveScope pops the innermost scope. Calling it on the root scope is a
// programming error in the executor and panics rather than silently
// corrupting the stack.
func (v *VarMap) LeaveScope() {
	if len(v.scopes) == 1 {
		panic("state: LeaveScope called on root scope")
	}
	v.scopes = v.scopes[:len(v.scopes)-1]
}

// TruncateTo pops scopes until exactly depth remain, used on return to
// unwind however many scopes the returning call had entered (a call may
// push more than one, e.g. for nested blocks in some frontends).
func (v *VarMap) TruncateTo(depth int) {
	for len(v.scopes) > depth {
		v.LeaveScope()
	}
}

// Insert binds val to value in the innermost scope.
func (v *VarMap) Insert(val llvm.Value, value *smt.Expr) {
	v.scopes[len(v.scopes)-1][val] = value
}

// Get looks up val starting from the innermost scope outward, matching
// lexical shadowing semantics: a call's parameters and locals always win
// over anything bound in an enclosing scope (relevant once intrinsics
// inline helper scopes into the same VarMap).
func (v *VarMap) Get(val llvm.Value) (*smt.Expr, bool) {
	for i := len(v.scopes) - 1; i >= 0; i-- {
		if v2, ok := v.scopes[i][val]; ok {
			return v2, true
		}
	}
	return nil, false
}

// Depth reports how many scopes are currently pushed, used by Frame
// bookkeeping to pop back to the right depth on return.
func (v *VarMap) Depth() int { return len(v.scopes) }

// Clone deep-copies every scope so a forked path's assignments never alias
// its sibling's.
func (v *VarMap) Clone() *VarMap {
	out := &VarMap{scopes: make([]map[llvm.Value]*smt.Expr, len(v.scopes))}
	for i, scope := range v.scopes {
		cp := make(map[llvm.Value]*smt.Expr, len(scope))
		for k, val := range scope {
			cp[k] = val
		}
		out.scopes[i] = cp
	}
	return out
}
