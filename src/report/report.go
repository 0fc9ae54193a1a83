// Package report turns a terminated path's (vm.PathResult, *state.State)
// pair into a rendered, human-readable record: solved concrete witnesses
// for inputs/symbolics/the return value (when configured to), and a
// demangled stack trace on failure. The core engine never renders text
// itself -- spec.md lists "Textual result rendering" as an external
// collaborator -- so this package is the seam the CLI driver calls into.
package report

import (
	"fmt"
	"strings"

	"symex/src/project"
	"symex/src/state"
	"symex/src/vm"
	"symex/src/witness"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// SolvePolicy controls which terminated paths get their witnesses solved,
// matching spec.md §6's run configuration.
type SolvePolicy int

const (
	SolveAll SolvePolicy = iota
	SolveError
	SolveSuccess
)

// Config mirrors spec.md §6's run configuration: which paths to solve for,
// and which witness categories to include.
type Config struct {
	SolveFor       SolvePolicy
	SolveInputs    bool
	SolveSymbolics bool
	SolveOutput    bool
}

// DefaultConfig solves every witness category for every path, the most
// informative (and most expensive) setting.
func DefaultConfig() Config {
	return Config{SolveFor: SolveAll, SolveInputs: true, SolveSymbolics: true, SolveOutput: true}
}

// StackFrame is one entry in a failure's rendered call stack.
type StackFrame struct {
	FunctionName string
	Line         int
	HasLine      bool
}

// Record is a fully rendered report for one path: the solved inputs and
// symbolic marks a reader needs to reproduce it, and either the solved
// return value or the failure message and stack trace.
type Record struct {
	PathIndex   int
	RunID       string
	Outcome     vm.Outcome
	Inputs      []SolvedVariable
	Symbolics   []SolvedVariable
	ReturnValue *SolvedVariable
	Message     string
	Stack       []StackFrame
}

// SolvedVariable is a witness.Variable after the solver has been asked for
// one concrete value consistent with the path's constraints.
type SolvedVariable struct {
	Name string
	Bits string // hex-encoded concrete bit pattern
	Type witness.TypeTag
}

// Reporter solves witnesses for terminated paths per a Config.
type Reporter struct {
	Cfg Config
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a Reporter configured by cfg.
func New(cfg Config) *Reporter {
	return &Reporter{Cfg: cfg}
}

// Build renders one terminated path into a Record, solving whichever
// witness categories r.Cfg enables and the path's outcome qualifies for.
func (r *Reporter) Build(pair vm.PathResultPair) (Record, error) {
	res, st := pair.Result, pair.State
	rec := Record{PathIndex: pair.Result.PathIndex, RunID: res.RunID, Outcome: res.Outcome}

	if !r.shouldSolve(res.Outcome) {
		if res.Outcome == vm.OutcomeFailure {
			rec.Message = res.Err.Error()
			rec.Stack = stackTrace(st)
		}
		return rec, nil
	}

	if r.Cfg.SolveInputs {
		vs, err := solveAll(st, st.Inputs())
		if err != nil {
			return rec, err
		}
		rec.Inputs = vs
	}
	if r.Cfg.SolveSymbolics {
		vs, err := solveAll(st, st.Symbolic())
		if err != nil {
			return rec, err
		}
		rec.Symbolics = vs
	}

	switch res.Outcome {
	case vm.OutcomeFailure:
		rec.Message = res.Err.Error()
		rec.Stack = stackTrace(st)
	case vm.OutcomeSuccess:
		if r.Cfg.SolveOutput && res.HasReturn {
			sv, err := solveOne(st, witness.Variable{Name: "return", Value: res.ReturnVal,
				Type: witness.TypeTag{Kind: witness.KindInteger, Bits: res.ReturnVal.Width()}})
			if err != nil {
				return rec, err
			}
			rec.ReturnValue = &sv
		}
	}
	return rec, nil
}

func (r *Reporter) shouldSolve(o vm.Outcome) bool {
	switch r.Cfg.SolveFor {
	case SolveAll:
		return o != vm.OutcomeSuppressed
	case SolveError:
		return o == vm.OutcomeFailure
	case SolveSuccess:
		return o == vm.OutcomeSuccess
	default:
		return false
	}
}

func solveAll(st *state.State, vars []witness.Variable) ([]SolvedVariable, error) {
	out := make([]SolvedVariable, 0, len(vars))
	for _, v := range vars {
		sv, err := solveOne(st, v)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, nil
}

func solveOne(st *state.State, v witness.Variable) (SolvedVariable, error) {
	witnessExpr, err := st.Store().GetValue(v.Value)
	if err != nil {
		return SolvedVariable{}, fmt.Errorf("report: solving %q: %w", v.Name, err)
	}
	c, _ := witnessExpr.GetConstant()
	return SolvedVariable{Name: v.Name, Bits: c.Hex(), Type: v.Type}, nil
}

// stackTrace renders st's live call stack, outermost first, as demangled
// function names. Debug locations are not read: every frame has
// HasLine=false and no line number.
func stackTrace(st *state.State) []StackFrame {
	frames := st.Calls.Frames()
	out := make([]StackFrame, 0, len(frames)+1)
	for _, f := range frames {
		name := f.CallerPC.Function.Name()
		out = append(out, StackFrame{FunctionName: project.Demangle(name)})
	}
	out = append(out, StackFrame{FunctionName: project.Demangle(st.PC.Function.Name())})
	return out
}

// FormatSummary renders rec as a single pass/fail line plus, on failure, a
// demangled stack trace and message, suitable for printing without color.
func FormatSummary(rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "path %d: ", rec.PathIndex)
	switch rec.Outcome {
	case vm.OutcomeSuccess:
		b.WriteString("OK")
		if rec.ReturnValue != nil {
			fmt.Fprintf(&b, " -> %s", rec.ReturnValue.Bits)
		}
	case vm.OutcomeFailure:
		fmt.Fprintf(&b, "FAILED: %s", rec.Message)
		for _, f := range rec.Stack {
			fmt.Fprintf(&b, "\n    at %s", f.FunctionName)
		}
	case vm.OutcomeSuppressed:
		b.WriteString("suppressed")
	}
	for _, in := range rec.Inputs {
		fmt.Fprintf(&b, "\n  input %s = %s", in.Name, in.Bits)
	}
	for _, sym := range rec.Symbolics {
		fmt.Fprintf(&b, "\n  symbolic %s = %s", sym.Name, sym.Bits)
	}
	return b.String()
}
