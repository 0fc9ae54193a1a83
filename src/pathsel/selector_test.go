package pathsel

import (
	"testing"

	"github.com/stretchr/testify/require"
	"symex/src/smt"
	"symex/src/state"
)

func TestLIFOOrdering(t *testing.T) {
	ctx := smt.NewContext()
	root := &state.State{Constraints: smt.NewStore(ctx)}
	sel := New(root)

	a := &state.State{Constraints: smt.NewStore(ctx)}
	b := &state.State{Constraints: smt.NewStore(ctx)}

	got, ok := sel.GetPath()
	require.True(t, ok)
	require.Same(t, root, got)

	sel.SavePath(a, nil)
	sel.SavePath(b, nil)

	got, ok = sel.GetPath()
	require.True(t, ok)
	require.Same(t, b, got)

	got, ok = sel.GetPath()
	require.True(t, ok)
	require.Same(t, a, got)

	_, ok = sel.GetPath()
	require.False(t, ok)
}

func TestDeferredConstraintAssertedOnResume(t *testing.T) {
	ctx := smt.NewContext()
	root := &state.State{Constraints: smt.NewStore(ctx)}
	sel := New(root)

	branch := &state.State{Constraints: smt.NewStore(ctx)}
	x := ctx.Unconstrained(8, "x")
	cond := ctx.Eq(x, ctx.FromUint64(5, 8))
	sel.SavePath(branch, cond)

	got, ok := sel.GetPath()
	require.True(t, ok)
	require.Same(t, branch, got)

	sat, err := got.Constraints.IsSatWith(ctx.Ne(x, ctx.FromUint64(5, 8)))
	require.NoError(t, err)
	require.False(t, sat)
}
