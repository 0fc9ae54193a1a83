package smt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSatSimpleBranch(t *testing.T) {
	c := NewContext()
	s := NewStore(c)
	x := c.Unconstrained(32, "x")

	s.Push()
	require.NoError(t, s.Assert(c.Sgt(x, c.FromUint64(0, 32))))
	res, err := s.IsSat()
	require.NoError(t, err)
	require.Equal(t, Sat, res)

	w, err := s.GetValue(x)
	require.NoError(t, err)
	v, _ := w.GetConstant()
	require.False(t, v.IsZero())
	require.NoError(t, s.Pop())

	s.Push()
	require.NoError(t, s.Assert(c.Sle(x, c.FromUint64(0, 32))))
	res, err = s.IsSat()
	require.NoError(t, err)
	require.Equal(t, Sat, res)
	require.NoError(t, s.Pop())
}

func TestAssumeThenUnsat(t *testing.T) {
	c := NewContext()
	s := NewStore(c)
	x := c.Unconstrained(32, "x")

	require.NoError(t, s.Assert(c.Ugt(x, c.FromUint64(0, 32))))
	sat, err := s.IsSatWith(c.Eq(x, c.FromUint64(0, 32)))
	require.NoError(t, err)
	require.False(t, sat)
}

func TestGetValuesExhaustive(t *testing.T) {
	c := NewContext()
	s := NewStore(c)
	x := c.Unconstrained(8, "x")
	require.NoError(t, s.Assert(c.Ult(x, c.FromUint64(3, 8))))

	vs, err := s.GetValues(x, 10)
	require.NoError(t, err)
	require.True(t, vs.Exhaustive)
	require.Len(t, vs.Values, 3)
}

func TestGetValuesAtLeast(t *testing.T) {
	c := NewContext()
	s := NewStore(c)
	x := c.Unconstrained(16, "x")
	require.NoError(t, s.Assert(c.Ult(x, c.FromUint64(1000, 16))))

	vs, err := s.GetValues(x, 2)
	require.NoError(t, err)
	require.Len(t, vs.Values, 2)
	require.False(t, vs.Exhaustive)
}

func TestPushPopRestoresScope(t *testing.T) {
	c := NewContext()
	s := NewStore(c)
	x := c.Unconstrained(8, "x")

	require.NoError(t, s.Assert(c.Ult(x, c.FromUint64(5, 8))))
	s.Push()
	require.NoError(t, s.Assert(c.Eq(x, c.FromUint64(10, 8))))
	res, err := s.IsSat()
	require.NoError(t, err)
	require.Equal(t, Unsat, res)

	require.NoError(t, s.Pop())
	res, err = s.IsSat()
	require.NoError(t, err)
	require.Equal(t, Sat, res)
}
