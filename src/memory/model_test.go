package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"symex/src/smt"
)

func TestAllocateRoundTrip(t *testing.T) {
	ctx := smt.NewContext()
	m := NewModel(ctx, 64, false)

	base, err := m.Allocate(64, 8)
	require.NoError(t, err)

	val := ctx.FromUint64(0xdeadbeefdeadbeef, 64)
	require.NoError(t, m.Write(base, val))

	got, err := m.Read(base, 64)
	require.NoError(t, err)
	v, ok := got.GetConstant()
	require.True(t, ok)
	require.EqualValues(t, 0xdeadbeefdeadbeef, v.Uint64())
}

func TestPartialWriteSplices(t *testing.T) {
	ctx := smt.NewContext()
	m := NewModel(ctx, 64, false)
	base, err := m.Allocate(32, 4)
	require.NoError(t, err)

	require.NoError(t, m.Write(base, ctx.FromUint64(0xaabbccdd, 32)))
	require.NoError(t, m.Write(base, ctx.FromUint64(0xff, 8)))

	got, err := m.Read(base, 32)
	require.NoError(t, err)
	v, ok := got.GetConstant()
	require.True(t, ok)
	require.EqualValues(t, 0xaabbccff, v.Uint64())
}

func TestObjectsOrderedByBase(t *testing.T) {
	ctx := smt.NewContext()
	m := NewModel(ctx, 64, false)

	a, err := m.Allocate(32, 4)
	require.NoError(t, err)
	b, err := m.Allocate(32, 4)
	require.NoError(t, err)
	require.Less(t, a, b)

	require.NoError(t, m.Write(a, ctx.FromUint64(1, 32)))
	require.NoError(t, m.Write(b, ctx.FromUint64(2, 32)))

	va, _ := mustRead(t, m, a, 32).GetConstant()
	vb, _ := mustRead(t, m, b, 32).GetConstant()
	require.EqualValues(t, 1, va.Uint64())
	require.EqualValues(t, 2, vb.Uint64())
}

func mustRead(t *testing.T, m *Model, addr uint64, bits uint32) *smt.Expr {
	t.Helper()
	e, err := m.Read(addr, bits)
	require.NoError(t, err)
	return e
}

func TestZeroSizedAllocationRejected(t *testing.T) {
	ctx := smt.NewContext()
	m := NewModel(ctx, 64, false)
	_, err := m.Allocate(0, 8)
	require.ErrorIs(t, err, ErrZeroSizedAllocation)
}

func TestAllocatorRejectsBadAlignment(t *testing.T) {
	a := NewAllocator(0)
	_, _, err := a.Allocate(32, 3)
	require.ErrorIs(t, err, ErrNotPowerOfTwo)
}

func TestCloneIsIndependent(t *testing.T) {
	ctx := smt.NewContext()
	m := NewModel(ctx, 64, false)
	base, err := m.Allocate(32, 4)
	require.NoError(t, err)
	require.NoError(t, m.Write(base, ctx.FromUint64(1, 32)))

	clone := m.Clone()
	require.NoError(t, clone.Write(base, ctx.FromUint64(2, 32)))

	orig, _ := mustRead(t, m, base, 32).GetConstant()
	cp, _ := mustRead(t, clone, base, 32).GetConstant()
	require.EqualValues(t, 1, orig.Uint64())
	require.EqualValues(t, 2, cp.Uint64())
}

func TestResolveAddressesConstant(t *testing.T) {
	ctx := smt.NewContext()
	m := NewModel(ctx, 64, false)
	store := smt.NewStore(ctx)

	addrs, exhaustive, err := m.ResolveAddresses(store, ctx.FromUint64(0x1000, 64), 4)
	require.NoError(t, err)
	require.True(t, exhaustive)
	require.Equal(t, []uint64{0x1000}, addrs)
}
