// Package vm implements the driver loop that ties every other core package
// together: it seeds the initial path from an entry function, pops paths
// from the selector until none remain, and hands each terminated
// (PathResult, *state.State) pair back to the caller so the Reporter can
// query the still-live solver for witnesses.
package vm

import (
	"fmt"

	"github.com/google/uuid"
	llvm "tinygo.org/x/go-llvm"

	"symex/src/executor"
	"symex/src/pathsel"
	"symex/src/project"
	"symex/src/smt"
	"symex/src/state"
	"symex/src/witness"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Outcome classifies how a path ended, the engine-level counterpart to the
// Status an Executor.Step reports, collapsed into what the Reporter needs.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeSuppressed
)

// PathResult is one path's terminal verdict, independent of any solving:
// whether it ran to a `ret` from the entry frame, hit a program failure, or
// was dropped via ignore_path/an unsatisfiable assume.
type PathResult struct {
	Outcome   Outcome
	ReturnVal *smt.Expr
	HasReturn bool
	Err       error
	RunID     string
	PathIndex int
}

// VM owns the shared, read-only-after-bootstrap pieces of one run
// (project, solver context, executor config) and the path selector that
// drives exploration to completion.
type VM struct {
	Proj     *project.Project
	Ctx      *smt.Context
	Exec     *executor.Executor
	Selector *pathsel.Selector
	RunID    string

	entry     llvm.Value
	pathsSeen int
}

// ---------------------
// ----- Functions -----
// ---------------------

// New builds a VM for one entry function: it allocates a fresh initial
// State, registers every global and function address, writes global
// initializers into memory, records the entry's parameters as reportable
// inputs, and pushes the resulting path as the selector's sole seed.
// nullCheck is threaded down into the initial State's memory model, per
// spec.md §4.4/§9's opt-in null-pointer policy.
func New(proj *project.Project, entryName string, bounds executor.Bounds, metrics *executor.Metrics, nullCheck bool) (*VM, error) {
	entry, err := proj.FindEntryFunction(entryName)
	if err != nil {
		return nil, fmt.Errorf("vm: %w", err)
	}

	ctx := smt.NewContext()
	st := state.New(proj, ctx, entry, nullCheck)

	if err := bootstrapGlobals(proj, st); err != nil {
		return nil, fmt.Errorf("vm: bootstrapping globals: %w", err)
	}
	for _, p := range entry.Params() {
		width := paramWidth(p, proj.PointerBits())
		sym := ctx.Unconstrained(width, p.Name())
		st.Assign(p, sym)
		st.RecordInput(witness.Variable{
			Name:  p.Name(),
			Value: sym,
			Type:  witness.TypeTag{Kind: witness.KindInteger, Bits: width},
		})
	}

	return &VM{
		Proj:     proj,
		Ctx:      ctx,
		Exec:     executor.New(bounds, metrics),
		Selector: pathsel.New(st),
		RunID:    uuid.NewString(),
	}, nil
}

func paramWidth(p llvm.Value, ptrBits uint32) uint32 {
	if p.Type().TypeKind() == llvm.PointerTypeKind {
		return ptrBits
	}
	return uint32(p.Type().IntTypeWidth())
}

// bootstrapGlobals allocates every global variable and function in proj,
// registers their addresses in st.Globals, then writes declared
// initializers into memory -- functions get a placeholder allocation
// (their body is never read through memory, only resolved by name/address)
// while globals get storage sized from their own type.
func bootstrapGlobals(proj *project.Project, st *state.State) error {
	// Functions first, so a global variable's initializer that takes a
	// function's address can resolve it.
	for _, mod := range proj.Modules() {
		for fn := mod.FirstFunction(); !fn.IsNil(); fn = llvm.NextFunction(fn) {
			addr, err := st.Allocate(st.PointerBits(), 0)
			if err != nil {
				return err
			}
			if err := st.Globals.Register(fn.Name(), addr, fn, fn.Linkage() == llvm.WeakAnyLinkage); err != nil {
				return err
			}
		}
		for g := mod.FirstGlobal(); !g.IsNil(); g = llvm.NextGlobal(g) {
			bits := st.BitSizeOf(g.Type().ElementType())
			if bits == 0 {
				bits = 8
			}
			addr, err := st.Allocate(bits, 0)
			if err != nil {
				return err
			}
			if err := st.Globals.Register(g.Name(), addr, g, g.Linkage() == llvm.WeakAnyLinkage); err != nil {
				return err
			}
		}
	}
	for _, mod := range proj.Modules() {
		for g := mod.FirstGlobal(); !g.IsNil(); g = llvm.NextGlobal(g) {
			init := g.Initializer()
			if init.IsNil() {
				continue
			}
			addr, _ := st.Globals.AddressOf(g.Name())
			expr, err := globalConstExpr(st, init)
			if err != nil {
				return err
			}
			if err := st.Mem.Write(addr, expr); err != nil {
				return err
			}
		}
	}
	return nil
}

// globalConstExpr folds a global's initializer constant into an
// Expression. It supports the scalar/null/aggregate-zero forms the bump
// allocator's globals realistically carry; anything else widens to a
// fresh unconstrained symbol of the right size rather than failing the
// whole run over one unmodeled initializer shape.
func globalConstExpr(st *state.State, v llvm.Value) (*smt.Expr, error) {
	ctx := st.Context()
	if !v.IsAConstantInt().IsNil() {
		return ctx.FromUint64(uint64(v.ZExtValue()), uint32(v.Type().IntTypeWidth())), nil
	}
	if !v.IsAConstantPointerNull().IsNil() {
		return ctx.Zero(st.PointerBits()), nil
	}
	if !v.IsAConstantAggregateZero().IsNil() {
		return ctx.Zero(uint32(st.BitSizeOf(v.Type()))), nil
	}
	return ctx.Unconstrained(uint32(st.BitSizeOf(v.Type())), ""), nil
}

// Run pops paths from the selector until it is empty, asserting each
// path's deferred fork constraint and stepping its Executor to
// termination, yielding one (PathResult, *state.State) pair per path in
// depth-first-completion order.
func (vm *VM) Run() []PathResultPair {
	var out []PathResultPair
	for {
		st, ok := vm.Selector.GetPath()
		if !ok {
			break
		}
		idx := vm.pathsSeen
		vm.pathsSeen++
		res := vm.runOne(st)
		res.RunID = vm.RunID
		res.PathIndex = idx
		out = append(out, PathResultPair{Result: res, State: st})
	}
	return out
}

// PathResultPair bundles one path's verdict with the State the solver
// queries will run against, the shape spec.md §4.9 returns from run().
type PathResultPair struct {
	Result PathResult
	State  *state.State
}

func (vm *VM) runOne(st *state.State) PathResult {
	for {
		r := vm.Exec.Step(st, vm.Selector)
		switch r.Status {
		case executor.StatusRunning:
			continue
		case executor.StatusReturned:
			return PathResult{Outcome: OutcomeSuccess, ReturnVal: r.ReturnVal, HasReturn: r.HasReturn}
		case executor.StatusFailed:
			return PathResult{Outcome: OutcomeFailure, Err: r.Err}
		case executor.StatusIgnored:
			return PathResult{Outcome: OutcomeSuppressed}
		default:
			return PathResult{Outcome: OutcomeFailure, Err: fmt.Errorf("vm: unknown executor status")}
		}
	}
}
