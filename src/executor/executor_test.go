package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	llvm "tinygo.org/x/go-llvm"

	"symex/src/pathsel"
	"symex/src/project"
	"symex/src/smt"
	"symex/src/state"
)

// newTestState writes mod to a temporary bitcode file, loads it, and returns
// a fresh *state.State rooted at the function named entryName, ready for Step.
func newTestState(t *testing.T, mod llvm.Module, ctx llvm.Context, b llvm.Builder, entryName string) (*project.Project, *state.State) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bc")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, llvm.WriteBitcodeToFile(mod, f))
	require.NoError(t, f.Close())

	proj, err := project.Load([]string{path})
	require.NoError(t, err)
	entry, err := proj.FindEntryFunction(entryName)
	require.NoError(t, err)

	smtCtx := smt.NewContext()
	st := state.New(proj, smtCtx, entry, false)
	return proj, st
}

// buildAddFunction builds: define i32 @main(i32 %a, i32 %b) { %s = add i32
// %a, %b; ret i32 %s }.
func buildAddFunction(t *testing.T) (llvm.Module, llvm.Context, llvm.Builder) {
	t.Helper()
	ctx := llvm.NewContext()
	mod := ctx.NewModule("m")
	b := ctx.NewBuilder()
	i32 := llvm.Int32Type()
	fnTy := llvm.FunctionType(i32, []llvm.Type{i32, i32}, false)
	fn := llvm.AddFunction(mod, "main", fnTy)
	entry := llvm.AddBasicBlock(fn, "")
	b.SetInsertPointAtEnd(entry)
	sum := b.CreateAdd(fn.Param(0), fn.Param(1), "s")
	b.CreateRet(sum)
	return mod, ctx, b
}

func TestExecBinOpAdd(t *testing.T) {
	mod, ctx, b := buildAddFunction(t)
	_, st := newTestState(t, mod, ctx, b, "main")
	ctxSmt := st.Context()

	st.Assign(st.PC.Function.Param(0), ctxSmt.FromUint64(3, 32))
	st.Assign(st.PC.Function.Param(1), ctxSmt.FromUint64(4, 32))

	exec := New(DefaultBounds(), nil)
	sel := pathsel.New(st)

	r := exec.Step(st, sel)
	require.Equal(t, StatusRunning, r.Status)

	r = exec.Step(st, sel)
	require.Equal(t, StatusReturned, r.Status)
	require.True(t, r.HasReturn)
	v, ok := r.ReturnVal.GetConstant()
	require.True(t, ok)
	require.EqualValues(t, 7, v.Uint64())
}

// buildBranchFunction builds a function whose entry branches on a symbolic
// i1 parameter to one of two blocks, each returning a different constant:
//
//	define i32 @main(i1 %c) {
//	entry:
//	  br i1 %c, label %t, label %f
//	t:
//	  ret i32 1
//	f:
//	  ret i32 0
//	}
func buildBranchFunction(t *testing.T) (llvm.Module, llvm.Context, llvm.Builder) {
	t.Helper()
	ctx := llvm.NewContext()
	mod := ctx.NewModule("m")
	b := ctx.NewBuilder()
	i32 := llvm.Int32Type()
	i1 := llvm.Int1Type()
	fnTy := llvm.FunctionType(i32, []llvm.Type{i1}, false)
	fn := llvm.AddFunction(mod, "main", fnTy)
	entryBB := llvm.AddBasicBlock(fn, "entry")
	tBB := llvm.AddBasicBlock(fn, "t")
	fBB := llvm.AddBasicBlock(fn, "f")

	b.SetInsertPointAtEnd(entryBB)
	b.CreateCondBr(fn.Param(0), tBB, fBB)
	b.SetInsertPointAtEnd(tBB)
	b.CreateRet(llvm.ConstInt(i32, 1, false))
	b.SetInsertPointAtEnd(fBB)
	b.CreateRet(llvm.ConstInt(i32, 0, false))
	return mod, ctx, b
}

func TestExecBrForksOnSymbolicCondition(t *testing.T) {
	mod, ctx, b := buildBranchFunction(t)
	_, st := newTestState(t, mod, ctx, b, "main")
	ctxSmt := st.Context()

	cond := ctxSmt.Unconstrained(1, "c")
	st.Assign(st.PC.Function.Param(0), cond)

	exec := New(DefaultBounds(), nil)
	sel := pathsel.New(st)

	r := exec.Step(st, sel)
	require.Equal(t, StatusRunning, r.Status)
	// The seeded entry path is still on the selector, plus the queued
	// false-branch sibling.
	require.Equal(t, 2, sel.Remaining())

	r = exec.Step(st, sel)
	require.Equal(t, StatusReturned, r.Status)
	firstVal, _ := r.ReturnVal.GetConstant()

	sibling, ok := sel.GetPath()
	require.True(t, ok)
	r2 := exec.Step(sibling, sel)
	require.Equal(t, StatusReturned, r2.Status)
	secondVal, _ := r2.ReturnVal.GetConstant()

	require.NotEqual(t, firstVal.Uint64(), secondVal.Uint64())
	require.ElementsMatch(t, []uint64{0, 1}, []uint64{firstVal.Uint64(), secondVal.Uint64()})
}

// buildAllocaFunction builds: define i32 @main() { %p = alloca i32; store
// i32 42, i32* %p; %v = load i32, i32* %p; ret i32 %v }.
func buildAllocaFunction(t *testing.T) (llvm.Module, llvm.Context, llvm.Builder) {
	t.Helper()
	ctx := llvm.NewContext()
	mod := ctx.NewModule("m")
	b := ctx.NewBuilder()
	i32 := llvm.Int32Type()
	fnTy := llvm.FunctionType(i32, []llvm.Type{}, false)
	fn := llvm.AddFunction(mod, "main", fnTy)
	entry := llvm.AddBasicBlock(fn, "")
	b.SetInsertPointAtEnd(entry)
	ptr := b.CreateAlloca(i32, "p")
	b.CreateStore(llvm.ConstInt(i32, 42, false), ptr)
	v := b.CreateLoad(ptr, "v")
	b.CreateRet(v)
	return mod, ctx, b
}

func TestAllocaStoreLoadRoundTrip(t *testing.T) {
	mod, ctx, b := buildAllocaFunction(t)
	_, st := newTestState(t, mod, ctx, b, "main")

	exec := New(DefaultBounds(), nil)
	sel := pathsel.New(st)

	for i := 0; i < 3; i++ {
		r := exec.Step(st, sel)
		require.Equal(t, StatusRunning, r.Status, "step %d", i)
	}
	r := exec.Step(st, sel)
	require.Equal(t, StatusReturned, r.Status)
	v, ok := r.ReturnVal.GetConstant()
	require.True(t, ok)
	require.EqualValues(t, 42, v.Uint64())
}

func TestMaxIterationBoundFailsPath(t *testing.T) {
	// A function with a self-looping block: define i32 @main() { entry:
	// br label %entry }.
	ctx := llvm.NewContext()
	mod := ctx.NewModule("m")
	b := ctx.NewBuilder()
	i32 := llvm.Int32Type()
	fnTy := llvm.FunctionType(i32, []llvm.Type{}, false)
	fn := llvm.AddFunction(mod, "main", fnTy)
	loop := llvm.AddBasicBlock(fn, "loop")
	b.SetInsertPointAtEnd(loop)
	b.CreateBr(loop)

	_, st := newTestState(t, mod, ctx, b, "main")
	bounds := DefaultBounds()
	bounds.MaxIterCount = 5
	exec := New(bounds, nil)
	sel := pathsel.New(st)

	var r Result
	for i := 0; i < 10; i++ {
		r = exec.Step(st, sel)
		if r.Status != StatusRunning {
			break
		}
	}
	require.Equal(t, StatusFailed, r.Status)
	require.ErrorIs(t, r.Err, ErrMaxIterations)
}
