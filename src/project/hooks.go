package project

import (
	"fmt"

	"symex/src/smt"
	"symex/src/witness"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// PathFailure is returned by a hook to signal that the current path should
// be reported failed (e.g. a reached `panic!`), as opposed to a Go error,
// which signals an engine-internal problem.
type PathFailure struct {
	Message string
}

func (e *PathFailure) Error() string { return e.Message }

// ---------------------
// ----- Tables --------
// ---------------------

// hookTable is consulted with the exact, demangled, and demangled-without-
// hash forms of a call target's name, in that order (see FindCallee).
var hookTable = map[string]HookFn{
	"assume":                              hookAssume,
	"symex_assume":                        hookAssume,
	"symex_lib::assume":                   hookAssume,
	"symbolic":                            hookSymbolic,
	"symex_symbolic":                      hookSymbolic,
	"symex_lib::symbolic":                 hookSymbolic,
	"ignore_path":                         hookIgnorePath,
	"symex_lib::ignore_path":              hookIgnorePath,
	"any":                                 hookAny,
	"__rust_alloc":                        hookRustAlloc,
	"__rust_alloc_zeroed":                 hookRustAllocZeroed,
	"__rust_realloc":                      hookRustRealloc,
	"__rust_dealloc":                      hookRustDealloc,
	"core::panicking::panic":              hookPanic,
	"core::panicking::panic_fmt":          hookPanic,
	"core::panicking::panic_bounds_check": hookPanic,
	"std::process::abort":                 hookAbort,
	"abort":                               hookAbort,
}

// ---------------------
// ----- Functions -----
// ---------------------

// hookAssume implements `assume(cond)`: add cond to the path's constraint
// store as a hard assertion. An unsatisfiable assumption kills the path the
// same way a branch whose condition is unsat does, without being reported
// as a failure.
func hookAssume(c *Call) error {
	if len(c.Args) != 1 {
		return fmt.Errorf("project: assume expects 1 arg, got %d", len(c.Args))
	}
	store := c.Env.Store()
	cond := store.Context().Ne(c.Args[0], store.Context().Zero(c.Args[0].Width()))
	store.Assert(cond)
	sat, err := store.IsSat()
	if err != nil {
		return err
	}
	if sat == smt.Unsat {
		return c.Env.IgnorePath("assume: condition is unsatisfiable")
	}
	return nil
}

// hookSymbolic implements `symbolic(ptr[, size])`: overwrite *ptr with a
// fresh, fully unconstrained value and mark that new value as a witness to
// report. size, when given, is the pointee's bit width as a concrete
// constant; otherwise the width is taken from the memory object ptr already
// points into, since no static LLVM pointee type reaches this hook.
func hookSymbolic(c *Call) error {
	if len(c.Args) < 1 || len(c.Args) > 2 {
		return fmt.Errorf("project: symbolic expects 1 or 2 args, got %d", len(c.Args))
	}
	mem := c.Env.Memory()
	store := c.Env.Store()

	addrs, _, err := mem.ResolveAddresses(store, c.Args[0], 1)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("project: symbolic: resolving pointer: %w", err)
	}
	addr := addrs[0]

	var size uint32
	if len(c.Args) == 2 {
		s, ok := c.Args[1].GetConstant()
		if !ok {
			return fmt.Errorf("project: symbolic requires a concrete size")
		}
		size = uint32(s.Uint64())
	} else {
		bits, ok := mem.SizeBitsAt(addr)
		if !ok {
			return fmt.Errorf("project: symbolic: cannot determine pointee size without an explicit size argument")
		}
		size = uint32(bits)
	}

	name := "symbolic"
	if len(c.ArgNames) > 0 && c.ArgNames[0] != "" {
		name = c.ArgNames[0]
	}
	v := c.Env.Context().Unconstrained(size, name)
	if err := mem.Write(addr, v); err != nil {
		return err
	}
	c.Env.MarkSymbolic(witness.Variable{
		Name:  v.Name(),
		Value: v,
		Type:  witness.TypeTag{Kind: witness.KindInteger, Bits: size},
	})
	return nil
}

// hookAny implements `any::<T>()`: return a fresh, fully unconstrained value
// of the requested width and mark it symbolic, the supplemented counterpart
// to explicit `symbolic()` calls (see SPEC_FULL.md).
func hookAny(c *Call) error {
	ctx := c.Env.Context()
	width := c.RetBits
	if width == 0 {
		width = 32
	}
	v := ctx.Unconstrained(width, "any")
	c.Env.MarkSymbolic(witness.Variable{Name: "any", Value: v, Type: witness.TypeTag{Kind: witness.KindInteger, Bits: width}})
	c.Return(v)
	return nil
}

// hookIgnorePath implements `ignore_path()`: abandon the current path
// without reporting it as a failure, for harnesses that want to prune
// uninteresting branches explicitly.
func hookIgnorePath(c *Call) error {
	return c.Env.IgnorePath("ignore_path() called")
}

func hookRustAlloc(c *Call) error {
	return allocHook(c, false)
}

func hookRustAllocZeroed(c *Call) error {
	return allocHook(c, true)
}

func allocHook(c *Call, zeroed bool) error {
	if len(c.Args) < 2 {
		return fmt.Errorf("project: __rust_alloc expects (size, align), got %d args", len(c.Args))
	}
	size, ok := c.Args[0].GetConstant()
	if !ok {
		return fmt.Errorf("project: __rust_alloc requires a concrete size")
	}
	align, ok := c.Args[1].GetConstant()
	if !ok {
		return fmt.Errorf("project: __rust_alloc requires a concrete alignment")
	}
	addr, err := c.Env.Allocate(size.Uint64()*8, align.Uint64())
	if err != nil {
		return err
	}
	ctx := c.Env.Context()
	ptr := ctx.FromUint64(addr, c.Env.PointerBits())
	if zeroed {
		if err := c.Env.Memory().Write(addr, ctx.Zero(uint32(size.Uint64()*8))); err != nil {
			return err
		}
	}
	c.Return(ptr)
	return nil
}

func hookRustRealloc(c *Call) error {
	if len(c.Args) < 4 {
		return fmt.Errorf("project: __rust_realloc expects (ptr, old_size, align, new_size), got %d args", len(c.Args))
	}
	oldPtr := c.Args[0]
	newSize, ok := c.Args[3].GetConstant()
	if !ok {
		return fmt.Errorf("project: __rust_realloc requires a concrete new size")
	}
	alignBytes := uint64(8)
	if a, ok := c.Args[2].GetConstant(); ok {
		alignBytes = a.Uint64()
	}
	oldSize, ok := c.Args[1].GetConstant()
	if !ok {
		return fmt.Errorf("project: __rust_realloc requires a concrete old size")
	}
	mem := c.Env.Memory()
	store := c.Env.Store()
	oldAddrs, _, err := mem.ResolveAddresses(store, oldPtr, 1)
	if err != nil || len(oldAddrs) == 0 {
		return fmt.Errorf("project: __rust_realloc: resolving old pointer: %w", err)
	}
	data, err := mem.Read(oldAddrs[0], uint32(oldSize.Uint64()*8))
	if err != nil {
		return err
	}
	addr, err := c.Env.Allocate(newSize.Uint64()*8, alignBytes)
	if err != nil {
		return err
	}
	if err := mem.Write(addr, data); err != nil {
		return err
	}
	c.Return(c.Env.Context().FromUint64(addr, c.Env.PointerBits()))
	return nil
}

func hookRustDealloc(c *Call) error {
	// No free-list exists in this bump allocator (see DESIGN.md); dealloc is
	// a correctly-typed no-op rather than an error, matching how a sound
	// over-approximation treats memory it chooses not to reclaim.
	return nil
}

func hookPanic(c *Call) error {
	return &PathFailure{Message: "panicked: " + c.Name}
}

func hookAbort(c *Call) error {
	return &PathFailure{Message: "aborted"}
}

// hookIsValidSymex backs the supplemented `<Type>::is_valid_symex(&self)`
// convention (see SPEC_FULL.md §D). FindCallee routes every name with that
// suffix here, ahead of any IR body the bitcode defines for it. The hook is
// permissive: it returns true without inspecting the value and adds no
// constraint.
func hookIsValidSymex(c *Call) error {
	c.Return(c.Env.Context().One(1))
	return nil
}
