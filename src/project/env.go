package project

import (
	"symex/src/memory"
	"symex/src/smt"
	"symex/src/witness"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Env is the slice of State that hooks and intrinsics are allowed to touch.
// It exists so this package never imports the state package back: state
// depends on project for name resolution, and project depends only on this
// narrow interface plus the leaf smt/memory/witness packages.
type Env interface {
	Context() *smt.Context
	Store() *smt.Store
	Memory() *memory.Model
	PointerBits() uint32

	// Allocate reserves fresh storage on the current path's memory model,
	// mirroring the allocator hooks bridge to (__rust_alloc and friends).
	Allocate(sizeBits, alignBytes uint64) (uint64, error)

	// MarkSymbolic records a named witness value for the final report,
	// used by the `symbolic`/`any<T>()` instrumentation hooks.
	MarkSymbolic(v witness.Variable)

	// IgnorePath aborts the current path without marking it failed, the
	// behavior backing the `ignore_path` hook.
	IgnorePath(reason string) error
}

// Call carries one call instruction's resolved argument expressions into an
// intrinsic or hook, plus a place to record its return value.
type Call struct {
	Env     Env
	Name    string
	Args    []*smt.Expr
	RetBits uint32

	// ArgNames holds each argument operand's IR name (empty string if the
	// operand is unnamed, e.g. a literal constant), parallel to Args. Hooks
	// that introduce a fresh symbol (e.g. `symbolic`) use it to name the
	// symbol after the variable it replaces instead of a generic counter.
	ArgNames []string

	result    *smt.Expr
	hasResult bool
}

// Return records the call's return value; intrinsics/hooks for void
// functions simply never call it.
func (c *Call) Return(v *smt.Expr) {
	c.result = v
	c.hasResult = true
}

// Result reports back what Return (if any) recorded.
func (c *Call) Result() (*smt.Expr, bool) { return c.result, c.hasResult }

// IntrinsicFn implements an llvm.* intrinsic's closed-form semantics.
type IntrinsicFn func(c *Call) error

// HookFn implements a named built-in standing in for a std/runtime function.
type HookFn func(c *Call) error
