package memory

import (
	"errors"
	"sort"

	"symex/src/smt"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Object is a single memory allocation: a base address, a size in bits, and
// the symbolic expression holding its current contents. Object never
// outlives the State that allocated it; there is no deallocation.
type Object struct {
	Base     uint64
	SizeBits uint64
	Contents *smt.Expr
}

// Model is the address-indexed store of every Object live on one path. It
// is backed by a sorted slice rather than the Rust original's BTreeMap
// since Go's stdlib has no ordered map; the predecessor lookup this
// performs on every read/write is the same either way (see DESIGN.md).
type Model struct {
	ctx       *smt.Context
	alloc     *Allocator
	ptrBits   uint32
	objects   []*Object // kept sorted by Base ascending
	nullCheck bool
}

// ---------------------
// ----- Errors --------
// ---------------------

var (
	ErrOutOfBounds      = errors.New("memory: access crosses an object boundary")
	ErrNullPointer      = errors.New("memory: address may be null")
	ErrObjectNotFound   = errors.New("memory: no object contains address")
	ErrBitsNotByteSized = errors.New("memory: size is not a multiple of 8 bits")
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewModel returns an empty Model over a fresh Allocator. ptrBits is the
// project's pointer width; nullCheck enables the optional null-pointer
// policy described in spec.md §4.4 (off by default).
func NewModel(ctx *smt.Context, ptrBits uint32, nullCheck bool) *Model {
	return &Model{ctx: ctx, alloc: NewAllocator(0), ptrBits: ptrBits, nullCheck: nullCheck}
}

// Clone deep-copies the object list (but not the Context, which is shared
// process-wide) so a forked State's writes never alias its sibling's.
func (m *Model) Clone() *Model {
	out := &Model{
		ctx:       m.ctx,
		alloc:     &Allocator{cursor: m.alloc.cursor, limit: m.alloc.limit, reserved: m.alloc.reserved.Clone()},
		ptrBits:   m.ptrBits,
		nullCheck: m.nullCheck,
		objects:   make([]*Object, len(m.objects)),
	}
	for i, o := range m.objects {
		cp := *o
		out.objects[i] = &cp
	}
	return out
}

// Allocate reserves sizeBits of fresh, unconstrained storage aligned to
// align bytes and returns its base address.
func (m *Model) Allocate(sizeBits uint64, align uint64) (uint64, error) {
	base, _, err := m.alloc.Allocate(sizeBits, align)
	if err != nil {
		return 0, err
	}
	obj := &Object{Base: base, SizeBits: sizeBits, Contents: m.ctx.Unconstrained(uint32(sizeBits), "")}
	m.insert(obj)
	return base, nil
}

// AllocateInitialized is like Allocate but seeds the object's contents with
// an explicit expression (e.g. a global's initializer) instead of a fresh
// symbol.
func (m *Model) AllocateInitialized(sizeBits uint64, align uint64, initial *smt.Expr) (uint64, error) {
	base, _, err := m.alloc.Allocate(sizeBits, align)
	if err != nil {
		return 0, err
	}
	obj := &Object{Base: base, SizeBits: sizeBits, Contents: initial}
	m.insert(obj)
	return base, nil
}

func (m *Model) insert(obj *Object) {
	i := sort.Search(len(m.objects), func(i int) bool { return m.objects[i].Base >= obj.Base })
	m.objects = append(m.objects, nil)
	copy(m.objects[i+1:], m.objects[i:])
	m.objects[i] = obj
}

// objectFor returns the object whose base is the greatest address <= addr.
func (m *Model) objectFor(addr uint64) (*Object, bool) {
	i := sort.Search(len(m.objects), func(i int) bool { return m.objects[i].Base > addr })
	if i == 0 {
		return nil, false
	}
	return m.objects[i-1], true
}

// ResolveAddresses concretizes addr into at most upperBound candidate
// constant addresses. If addr is already constant, the returned slice has
// exactly that one value. Otherwise the store is queried for distinct
// solutions; a non-exhaustive result is returned truncated (the "address-
// forking" policy: each value seeds one branch in the Executor).
func (m *Model) ResolveAddresses(store *smt.Store, addr *smt.Expr, upperBound int) ([]uint64, bool, error) {
	if v, ok := addr.GetConstant(); ok {
		return []uint64{v.Uint64()}, true, nil
	}
	vs, err := store.GetValues(addr, upperBound)
	if err != nil {
		return nil, false, err
	}
	out := make([]uint64, 0, len(vs.Values))
	for _, v := range vs.Values {
		c, _ := v.GetConstant()
		out = append(out, c.Uint64())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, vs.Exhaustive, nil
}

// Read returns bits starting at the concrete address addr (already
// resolved by the caller via ResolveAddresses).
func (m *Model) Read(addr uint64, bits uint32) (*smt.Expr, error) {
	obj, ok := m.objectFor(addr)
	if !ok {
		return nil, ErrObjectNotFound
	}
	offset := (addr - obj.Base) * 8
	if offset+uint64(bits) > obj.SizeBits {
		return nil, ErrOutOfBounds
	}
	return m.ctx.Slice(obj.Contents, uint32(offset), uint32(offset)+bits-1), nil
}

// Write replaces or splices value into the object containing addr.
func (m *Model) Write(addr uint64, value *smt.Expr) error {
	obj, ok := m.objectFor(addr)
	if !ok {
		return ErrObjectNotFound
	}
	offset := (addr - obj.Base) * 8
	if offset+uint64(value.Width()) > obj.SizeBits {
		return ErrOutOfBounds
	}
	if uint64(value.Width()) == obj.SizeBits {
		obj.Contents = value
		return nil
	}
	obj.Contents = splice(m.ctx, obj.Contents, uint32(offset), value)
	return nil
}

// splice replaces bits [offset, offset+value.Width()) of base with value,
// by slicing the untouched high and low parts of base and concatenating.
func splice(ctx *smt.Context, base *smt.Expr, offset uint32, value *smt.Expr) *smt.Expr {
	width := value.Width()
	total := base.Width()
	var parts []*smt.Expr
	if offset+width < total {
		parts = append(parts, ctx.Slice(base, offset+width, total-1))
	}
	parts = append(parts, value)
	if offset > 0 {
		parts = append(parts, ctx.Slice(base, 0, offset-1))
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = ctx.Concat(out, p)
	}
	return out
}

// CheckNull returns ErrNullPointer if null-pointer checking is enabled and
// addr=0 is satisfiable under store's current constraints.
func (m *Model) CheckNull(store *smt.Store, addr *smt.Expr) error {
	if !m.nullCheck {
		return nil
	}
	sat, err := store.IsSatWith(store.Context().Eq(addr, store.Context().Zero(addr.Width())))
	if err != nil {
		return err
	}
	if sat {
		return ErrNullPointer
	}
	return nil
}

// PointerWidth returns the project pointer width in bits.
func (m *Model) PointerWidth() uint32 { return m.ptrBits }

// SizeBitsAt returns how many bits remain from addr to the end of the object
// containing it, used when a hook needs a pointee size but has no static
// LLVM type to consult (e.g. `symbolic(ptr)` with no explicit size operand).
// addr is usually an object's base, in which case this is the whole
// object's size; a pointer into the middle of an object (e.g. a struct
// field) instead gets the remainder, which is the best available
// approximation without type information.
func (m *Model) SizeBitsAt(addr uint64) (uint64, bool) {
	obj, ok := m.objectFor(addr)
	if !ok {
		return 0, false
	}
	return obj.SizeBits - (addr-obj.Base)*8, true
}
