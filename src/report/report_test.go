package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	llvm "tinygo.org/x/go-llvm"

	"symex/src/executor"
	"symex/src/project"
	"symex/src/vm"
)

func buildReturningProject(t *testing.T) *project.Project {
	t.Helper()
	ctx := llvm.NewContext()
	mod := ctx.NewModule("m")
	b := ctx.NewBuilder()
	i32 := llvm.Int32Type()
	fnTy := llvm.FunctionType(i32, []llvm.Type{i32}, false)
	fn := llvm.AddFunction(mod, "main", fnTy)
	entry := llvm.AddBasicBlock(fn, "")
	b.SetInsertPointAtEnd(entry)
	sum := b.CreateAdd(fn.Param(0), llvm.ConstInt(i32, 1, false), "")
	b.CreateRet(sum)

	path := filepath.Join(t.TempDir(), "test.bc")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, llvm.WriteBitcodeToFile(mod, f))
	require.NoError(t, f.Close())

	proj, err := project.Load([]string{path})
	require.NoError(t, err)
	return proj
}

func TestBuildSolvesInputsAndReturnValue(t *testing.T) {
	proj := buildReturningProject(t)
	machine, err := vm.New(proj, "main", executor.DefaultBounds(), nil, false)
	require.NoError(t, err)

	results := machine.Run()
	require.Len(t, results, 1)

	reporter := New(DefaultConfig())
	rec, err := reporter.Build(results[0])
	require.NoError(t, err)

	require.Equal(t, vm.OutcomeSuccess, rec.Outcome)
	require.Len(t, rec.Inputs, 1)
	require.NotNil(t, rec.ReturnValue)
}

func TestFormatSummaryRendersFailure(t *testing.T) {
	rec := Record{
		PathIndex: 2,
		Outcome:   vm.OutcomeFailure,
		Message:   "aborted",
		Stack:     []StackFrame{{FunctionName: "main"}},
	}
	out := FormatSummary(rec)
	require.Contains(t, out, "path 2")
	require.Contains(t, out, "FAILED: aborted")
	require.Contains(t, out, "at main")
}

func TestShouldSolveRespectsPolicy(t *testing.T) {
	r := &Reporter{Cfg: Config{SolveFor: SolveError}}
	require.True(t, r.shouldSolve(vm.OutcomeFailure))
	require.False(t, r.shouldSolve(vm.OutcomeSuccess))
}
