package smt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWidthRules(t *testing.T) {
	c := NewContext()
	a := c.FromUint64(3, 8)
	b := c.FromUint64(5, 8)

	require.EqualValues(t, 8, c.Add(a, b).Width())
	require.EqualValues(t, 16, c.Concat(a, b).Width())
	require.EqualValues(t, 4, c.Slice(a, 2, 5).Width())
	require.EqualValues(t, 1, c.Eq(a, b).Width())
	require.EqualValues(t, 8, c.Ite(c.Eq(a, b), a, b).Width())
}

func TestWidthMismatchPanics(t *testing.T) {
	c := NewContext()
	a := c.FromUint64(1, 8)
	b := c.FromUint64(1, 16)
	require.Panics(t, func() { c.Add(a, b) })
}

func TestConstantFolding(t *testing.T) {
	c := NewContext()
	a := c.FromUint64(7, 8)
	b := c.FromUint64(5, 8)
	sum := c.Add(a, b)

	v, ok := sum.GetConstant()
	require.True(t, ok)
	require.EqualValues(t, 12, v.Uint64())
}

func TestConstantFoldingFailsWithSymbol(t *testing.T) {
	c := NewContext()
	x := c.Unconstrained(8, "x")
	sum := c.Add(x, c.FromUint64(1, 8))
	_, ok := sum.GetConstant()
	require.False(t, ok)
}

func TestResizeUnsigned(t *testing.T) {
	c := NewContext()
	a := c.FromUint64(0xff, 8)
	require.EqualValues(t, 16, c.ResizeUnsigned(a, 16).Width())
	v, _ := c.ResizeUnsigned(a, 16).GetConstant()
	require.EqualValues(t, 0xff, v.Uint64())

	shrunk := c.ResizeUnsigned(c.FromUint64(0x1ff, 16), 8)
	v2, _ := shrunk.GetConstant()
	require.EqualValues(t, 0xff, v2.Uint64())
}

func TestSignExtend(t *testing.T) {
	c := NewContext()
	neg1 := c.FromUint64(0xff, 8) // -1 as i8
	ext := c.SignExt(neg1, 16)
	v, ok := ext.GetConstant()
	require.True(t, ok)
	require.EqualValues(t, 0xffff, v.Uint64())
}

func TestOverflowPredicates(t *testing.T) {
	c := NewContext()
	maxI32 := c.SignedMax(32)
	one := c.FromUint64(1, 32)
	ovf := c.SAddOverflow(maxI32, one)
	b, ok := ovf.GetConstantBool()
	require.True(t, ok)
	require.True(t, b)

	res := c.Add(maxI32, one)
	v, _ := res.GetConstant()
	minI32, _ := c.SignedMin(32).GetConstant()
	require.True(t, v.Eq(minI32))
}

func TestUnsignedMulOverflow(t *testing.T) {
	c := NewContext()
	a := c.FromUint64(0xffffffff, 32)
	b := c.FromUint64(2, 32)
	ovf := c.UMulOverflow(a, b)
	v, ok := ovf.GetConstantBool()
	require.True(t, ok)
	require.True(t, v)
}
