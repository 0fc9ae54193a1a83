package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	llvm "tinygo.org/x/go-llvm"
)

// buildTestBitcode writes a tiny module with one defined function (@main,
// taking and returning an i32) and one external declaration (@symbolic,
// standing in for the instrumentation hook) to a temp bitcode file,
// returning its path.
func buildTestBitcode(t *testing.T) string {
	t.Helper()
	ctx := llvm.NewContext()
	mod := ctx.NewModule("project_test")
	b := ctx.NewBuilder()
	defer b.Dispose()

	i32 := llvm.Int32Type()
	symTy := llvm.FunctionType(i32, []llvm.Type{i32}, false)
	llvm.AddFunction(mod, "symbolic", symTy)

	mainTy := llvm.FunctionType(i32, []llvm.Type{i32}, false)
	mainFn := llvm.AddFunction(mod, "main", mainTy)
	entry := llvm.AddBasicBlock(mainFn, "")
	b.SetInsertPointAtEnd(entry)
	x := mainFn.Param(0)
	y := b.CreateAdd(x, llvm.ConstInt(i32, 1, false), "")
	b.CreateRet(y)

	path := filepath.Join(t.TempDir(), "test.bc")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, llvm.WriteBitcodeToFile(mod, f))
	return path
}

func TestLoadAndFindEntryFunction(t *testing.T) {
	path := buildTestBitcode(t)
	proj, err := Load([]string{path})
	require.NoError(t, err)

	fn, err := proj.FindEntryFunction("main")
	require.NoError(t, err)
	require.Equal(t, "main", fn.Name())
}

func TestFindEntryFunctionUnknown(t *testing.T) {
	path := buildTestBitcode(t)
	proj, err := Load([]string{path})
	require.NoError(t, err)

	_, err = proj.FindEntryFunction("does_not_exist")
	require.Error(t, err)
}

func TestFindCalleeResolvesHookBeforeDeclaration(t *testing.T) {
	path := buildTestBitcode(t)
	proj, err := Load([]string{path})
	require.NoError(t, err)

	target, err := proj.FindCallee("symbolic")
	require.NoError(t, err)
	require.Equal(t, KindHook, target.Kind)
}

func TestFindCalleeResolvesIntrinsicByPrefix(t *testing.T) {
	path := buildTestBitcode(t)
	proj, err := Load([]string{path})
	require.NoError(t, err)

	target, err := proj.FindCallee("llvm.memcpy.p0i8.p0i8.i64")
	require.NoError(t, err)
	require.Equal(t, KindIntrinsic, target.Kind)
}

func TestFindCalleeResolvesDefinedFunction(t *testing.T) {
	path := buildTestBitcode(t)
	proj, err := Load([]string{path})
	require.NoError(t, err)

	target, err := proj.FindCallee("main")
	require.NoError(t, err)
	require.Equal(t, KindFunction, target.Kind)
}

func TestDemangleStripsLegacyHash(t *testing.T) {
	name := "_ZN4core9panicking5panic17h1234567890abcdefE"
	require.Equal(t, "core::panicking::panic", Demangle(name))
}

func TestDemangleLeavesUnrecognizedNameUnchanged(t *testing.T) {
	require.Equal(t, "main", Demangle("main"))
}
