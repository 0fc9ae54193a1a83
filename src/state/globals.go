package state

import (
	"fmt"

	llvm "tinygo.org/x/go-llvm"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Globals is the bidirectional map between every function and global
// variable in a Project and the address it was allocated at, so that a
// function pointer value (just an address, symbolically) can be resolved
// back to the llvm.Value to call, and so `&global` can be materialized as a
// pointer constant.
//
// Weak symbols (declared but possibly overridden, e.g. weak linkage or
// available_externally) are recorded separately from strong ones: two weak
// definitions of the same name are allowed to coexist, with the first one
// loaded winning, matching how a real linker would resolve the conflict in
// favor of whichever strong (or first weak) definition it sees.
type Globals struct {
	addrToValue map[uint64]llvm.Value
	valueToAddr map[string]uint64 // keyed by value name, one address space per project
	weak        map[string]bool
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewGlobals returns an empty table.
func NewGlobals() *Globals {
	return &Globals{
		addrToValue: make(map[uint64]llvm.Value),
		valueToAddr: make(map[string]uint64),
		weak:        make(map[string]bool),
	}
}

// Register binds name (a function or global variable) to addr. If name was
// already registered as strong (non-weak) linkage, a second strong
// registration is a conflict and returns an error; a weak registration
// never overrides an existing binding.
func (g *Globals) Register(name string, addr uint64, value llvm.Value, isWeak bool) error {
	if existingAddr, ok := g.valueToAddr[name]; ok {
		if !g.weak[name] {
			return fmt.Errorf("state: global %q already bound to address 0x%x", name, existingAddr)
		}
		if !isWeak {
			// A strong definition arriving after a weak one takes over, as
			// a real linker would prefer it.
			delete(g.addrToValue, existingAddr)
		} else {
			return nil
		}
	}
	g.valueToAddr[name] = addr
	g.addrToValue[addr] = value
	g.weak[name] = isWeak
	return nil
}

// AddressOf returns the address a function or global variable was assigned.
func (g *Globals) AddressOf(name string) (uint64, bool) {
	addr, ok := g.valueToAddr[name]
	return addr, ok
}

// ValueAt resolves a concrete address back to the llvm.Value registered
// there, used when a call target or load address turns out to name a
// function or global rather than heap/stack storage.
func (g *Globals) ValueAt(addr uint64) (llvm.Value, bool) {
	v, ok := g.addrToValue[addr]
	return v, ok
}
