// Package memory implements the bump allocator and address-indexed memory
// model described in the design: every byte address handed out by a State
// belongs to exactly one Object, and reads/writes are serviced by slicing
// or splicing that object's backing expression.
package memory

import (
	"errors"

	"github.com/bits-and-blooms/bitset"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Allocator is a monotonically increasing byte-address cursor, matching the
// teacher's backend register/stack bump allocators in spirit: no frees, no
// reuse, just forward growth.
type Allocator struct {
	cursor uint64
	limit  uint64

	// reserved tracks which of the first trackedBytes byte-addresses have
	// already been handed out, purely as a cheap sanity check usable by
	// tests and by Model's bounds checks; the allocator itself never needs
	// to query it to decide the next address, since the cursor already
	// guarantees non-overlap.
	reserved *bitset.BitSet
}

// ---------------------
// ----- Constants -----
// ---------------------

// AllocStart is the first address ever handed out. Starting above zero
// keeps the null pointer (address 0) permanently unallocated, which is
// what NullPointer detection in Model relies on.
const AllocStart = 0x1000

// trackedBytes bounds how much of the address space the reservation
// bitset eagerly tracks; allocations beyond it are still served correctly,
// just without the membership bitset bookkeeping.
const trackedBytes = 1 << 24

// DefaultAlign is used when a caller passes align=0.
const DefaultAlign = 8

// ---------------------
// ----- Errors --------
// ---------------------

var (
	ErrZeroSizedAllocation  = errors.New("memory: zero-sized allocation")
	ErrAddressSpaceExhausted = errors.New("memory: address space exhausted")
	ErrNotPowerOfTwo        = errors.New("memory: alignment is not a power of two")
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewAllocator returns an Allocator whose cursor starts at AllocStart and
// which will refuse to grow past limit (0 means "effectively unbounded").
func NewAllocator(limit uint64) *Allocator {
	if limit == 0 {
		limit = ^uint64(0)
	}
	return &Allocator{cursor: AllocStart, limit: limit, reserved: bitset.New(trackedBytes)}
}

func isPowerOfTwo(v uint64) bool { return v != 0 && v&(v-1) == 0 }

// Allocate reserves ceil(sizeBits/8) bytes aligned to alignBytes and
// returns the base address. align=0 is mapped to DefaultAlign.
func (a *Allocator) Allocate(sizeBits uint64, alignBytes uint64) (uint64, uint64, error) {
	if sizeBits == 0 {
		return 0, 0, ErrZeroSizedAllocation
	}
	if alignBytes == 0 {
		alignBytes = DefaultAlign
	}
	if !isPowerOfTwo(alignBytes) {
		return 0, 0, ErrNotPowerOfTwo
	}

	aligned := (a.cursor + alignBytes - 1) &^ (alignBytes - 1)
	bytes := (sizeBits + 7) / 8
	if aligned < a.cursor || aligned+bytes < aligned || aligned+bytes > a.limit {
		return 0, 0, ErrAddressSpaceExhausted
	}

	a.cursor = aligned + bytes
	if aligned+bytes <= trackedBytes {
		for b := aligned; b < aligned+bytes; b++ {
			a.reserved.Set(uint(b))
		}
	}
	return aligned, bytes, nil
}

// Cursor returns the next address that would be handed out, primarily for
// bounds checks ("is this address within any allocation ever made").
func (a *Allocator) Cursor() uint64 { return a.cursor }
