// Package witness holds the small, dependency-light value types shared by
// the state, project, executor and report packages: the shape a reported
// value's LLVM type takes, and a named witness variable built from an
// Expression. Kept separate from those packages specifically so none of
// them need to import each other just to describe "a variable with a
// type".
package witness

import "symex/src/smt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// TypeKind distinguishes the shapes a TypeTag can describe.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindInteger
	KindPointer
	KindArray
	KindStruct
)

// TypeTag preserves enough of an LLVM type's shape that a renderer can
// decode a model bitstring into the right structure: a plain integer, a
// pointer, a fixed-length array of some element type, or a struct with
// named-or-positional fields.
type TypeTag struct {
	Kind   TypeKind
	Bits   uint32    // meaningful for KindInteger/KindPointer
	Elem   *TypeTag  // meaningful for KindArray
	Count  int       // meaningful for KindArray
	Fields []TypeTag // meaningful for KindStruct
}

// Variable is a named (or anonymous) witness value produced either by
// solving an input/return, or by the `symbolic`/`any<T>()` instrumentation
// hooks recording a mark on the current path.
type Variable struct {
	Name  string
	Value *smt.Expr
	Type  TypeTag
}
