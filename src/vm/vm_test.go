package vm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	llvm "tinygo.org/x/go-llvm"

	"symex/src/executor"
	"symex/src/project"
)

// buildBranchingProject writes a bitcode module with one function taking an
// i1 parameter, branching to one of two blocks each returning a distinct
// constant, and loads it into a *project.Project.
func buildBranchingProject(t *testing.T) *project.Project {
	t.Helper()
	ctx := llvm.NewContext()
	mod := ctx.NewModule("m")
	b := ctx.NewBuilder()
	i32 := llvm.Int32Type()
	i1 := llvm.Int1Type()
	fnTy := llvm.FunctionType(i32, []llvm.Type{i1}, false)
	fn := llvm.AddFunction(mod, "main", fnTy)
	entry := llvm.AddBasicBlock(fn, "entry")
	tBB := llvm.AddBasicBlock(fn, "t")
	fBB := llvm.AddBasicBlock(fn, "f")
	b.SetInsertPointAtEnd(entry)
	b.CreateCondBr(fn.Param(0), tBB, fBB)
	b.SetInsertPointAtEnd(tBB)
	b.CreateRet(llvm.ConstInt(i32, 1, false))
	b.SetInsertPointAtEnd(fBB)
	b.CreateRet(llvm.ConstInt(i32, 0, false))

	path := filepath.Join(t.TempDir(), "test.bc")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, llvm.WriteBitcodeToFile(mod, f))
	require.NoError(t, f.Close())

	proj, err := project.Load([]string{path})
	require.NoError(t, err)
	return proj
}

func TestVMRunExploresEveryPath(t *testing.T) {
	proj := buildBranchingProject(t)

	machine, err := New(proj, "main", executor.DefaultBounds(), nil, false)
	require.NoError(t, err)
	require.NotEmpty(t, machine.RunID)

	results := machine.Run()
	require.Len(t, results, 2)

	var seen []uint64
	for _, pair := range results {
		require.Equal(t, OutcomeSuccess, pair.Result.Outcome)
		require.True(t, pair.Result.HasReturn)
		v, ok := pair.Result.ReturnVal.GetConstant()
		require.True(t, ok)
		seen = append(seen, v.Uint64())
	}
	require.ElementsMatch(t, []uint64{0, 1}, seen)
}

func TestVMNewRecordsEntryParamsAsInputs(t *testing.T) {
	proj := buildBranchingProject(t)

	machine, err := New(proj, "main", executor.DefaultBounds(), nil, false)
	require.NoError(t, err)

	st, ok := machine.Selector.GetPath()
	require.True(t, ok)
	require.Len(t, st.Inputs(), 1)
}

func TestVMNewUnknownEntryFails(t *testing.T) {
	proj := buildBranchingProject(t)
	_, err := New(proj, "does_not_exist", executor.DefaultBounds(), nil, false)
	require.Error(t, err)
}
