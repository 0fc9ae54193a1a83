package state

import (
	"fmt"

	llvm "tinygo.org/x/go-llvm"

	"symex/src/memory"
	"symex/src/project"
	"symex/src/smt"
	"symex/src/witness"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// IgnoredPath is the error a hook returns through Env.IgnorePath (from
// ignore_path() or an unsatisfiable assume()) to mean "stop exploring this
// path, but it is not a failure" -- distinct from project.PathFailure,
// which the Reporter surfaces to the user.
type IgnoredPath struct {
	Reason string
}

func (e *IgnoredPath) Error() string { return "path ignored: " + e.Reason }

// State is everything execution needs that belongs to exactly one path:
// where it is, what its locals are bound to, what calls are in flight, the
// path's accumulated constraints, its private memory, and the inputs and
// symbolic marks made so far. Forking a path clones a State; only the
// constraint Store's underlying Context, the Globals table and the Project
// are shared.
type State struct {
	PC          PC
	Vars        *VarMap
	Calls       *CallStack
	Constraints *smt.Store
	Mem         *memory.Model
	Globals     *Globals
	Proj        *project.Project

	// PrevBlock is the block execution jumped from to reach PC.Block,
	// used to resolve which incoming value a phi instruction picks. It is
	// the zero BasicBlock on entry to the function's first block.
	PrevBlock llvm.BasicBlock

	// IterCount counts the br/switch transitions this path has taken, the
	// bound the executor checks against Bounds.MaxIterCount to turn an
	// unbounded loop into a reported failure instead of a hang.
	IterCount int

	ptrBits  uint32
	inputs   []witness.Variable
	marked   []witness.Variable
	finished bool
}

// ---------------------
// ----- Functions -----
// ---------------------

// New builds the initial State for a fresh run of entry: root scope, empty
// call stack, a fresh constraint store sharing ctx, and an empty memory
// model and globals table sized to proj's pointer width (vm.New fills in
// the globals). nullCheck enables the optional null-pointer read/write
// policy of spec.md §4.4/§9 (off by default at the CLI).
func New(proj *project.Project, ctx *smt.Context, entry llvm.Value, nullCheck bool) *State {
	return &State{
		PC:          PC{Function: entry, Block: entry.EntryBasicBlock(), Instr: 0},
		Vars:        NewVarMap(),
		Calls:       NewCallStack(),
		Constraints: smt.NewStore(ctx),
		Mem:         memory.NewModel(ctx, proj.PointerBits(), nullCheck),
		Globals:     NewGlobals(),
		Proj:        proj,
		ptrBits:     proj.PointerBits(),
	}
}

// Fork deep-copies everything needed for two paths to run independently
// from this point on: variable scopes, call stack, memory, and the
// constraint store (its whole assertion stack) are cloned, so asserting on
// one branch never leaks into the other; globals/project are shared
// read-only state neither branch mutates.
func (s *State) Fork() *State {
	clone := &State{
		PC:          s.PC,
		Vars:        s.Vars.Clone(),
		Calls:       s.Calls.Clone(),
		Constraints: s.Constraints.Clone(),
		Mem:         s.Mem.Clone(),
		Globals:     s.Globals,
		Proj:        s.Proj,
		PrevBlock:   s.PrevBlock,
		IterCount:   s.IterCount,
		ptrBits:     s.ptrBits,
		inputs:      append([]witness.Variable(nil), s.inputs...),
		marked:      append([]witness.Variable(nil), s.marked...),
	}
	return clone
}

// --- project.Env ---

func (s *State) Context() *smt.Context { return s.Constraints.Context() }
func (s *State) Store() *smt.Store     { return s.Constraints }

func (s *State) PointerBits() uint32 { return s.ptrBits }

func (s *State) Memory() *memory.Model { return s.Mem }

func (s *State) Allocate(sizeBits, alignBytes uint64) (uint64, error) {
	return s.Mem.Allocate(sizeBits, alignBytes)
}

func (s *State) MarkSymbolic(v witness.Variable) {
	s.marked = append(s.marked, v)
}

// RecordInput registers one of the entry function's parameters as a
// witness so the Reporter can solve for and print concrete inputs that
// drive this path.
func (s *State) RecordInput(v witness.Variable) {
	s.inputs = append(s.inputs, v)
}

// Inputs returns every parameter recorded via RecordInput, in declaration
// order.
func (s *State) Inputs() []witness.Variable { return append([]witness.Variable(nil), s.inputs...) }

func (s *State) IgnorePath(reason string) error {
	s.finished = true
	return &IgnoredPath{Reason: reason}
}

// Symbolic returns every value marked via symbolic()/any<T>() on this path.
func (s *State) Symbolic() []witness.Variable { return append([]witness.Variable(nil), s.marked...) }

// --- Variable access ---

// GetExpr resolves val (an instruction result or argument) through the
// current scope stack.
func (s *State) GetExpr(val llvm.Value) (*smt.Expr, error) {
	v, ok := s.Vars.Get(val)
	if !ok {
		return nil, fmt.Errorf("state: %q is not bound", val.Name())
	}
	return v, nil
}

// Assign binds val to value in the innermost scope.
func (s *State) Assign(val llvm.Value, value *smt.Expr) {
	s.Vars.Insert(val, value)
}

// BitSizeOf computes the storage width in bits of an LLVM type, used to
// size alloca/malloc-style allocations and GEP strides. Struct layout is
// approximated as the sum of field widths with no inter-field padding --
// correct for the packed, pointer-free aggregates a symbolic harness
// typically exercises.
func (s *State) BitSizeOf(ty llvm.Type) uint64 {
	switch ty.TypeKind() {
	case llvm.IntegerTypeKind:
		return uint64(ty.IntTypeWidth())
	case llvm.PointerTypeKind:
		return uint64(s.ptrBits)
	case llvm.ArrayTypeKind:
		return uint64(ty.ArrayLength()) * s.BitSizeOf(ty.ElementType())
	case llvm.StructTypeKind:
		var total uint64
		for _, f := range ty.StructElementTypes() {
			total += s.BitSizeOf(f)
		}
		return total
	case llvm.VectorTypeKind:
		return uint64(ty.VectorSize()) * s.BitSizeOf(ty.ElementType())
	default:
		return uint64(s.ptrBits)
	}
}
