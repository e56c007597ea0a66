// Package heap implements the size-class router described in spec.md
// §2 item 3 and §4.3: it routes allocations to head/overflow/large,
// recycles exhausted blocks, and exposes typed allocation and
// deallocation on top of internal/alloc's bump-block primitives.
//
// Grounded on original_source/src/mem/api.rs and src/alloc/api.rs,
// restated as one struct owning the mutable state, with a narrow
// "under a scope" entry point (Mutate) standing in for the reference's
// RefCell-guarded interior mutability.
package heap

import (
	"unsafe"

	ierrors "github.com/dabernado/iris-go/internal/errors"

	"github.com/dabernado/iris-go/internal/alloc"
)

// Heap wraps an alloc.BlockList. It has no exported mutable state: every
// access happens through a Scope obtained from Mutate, so a live pointer
// returned by Alloc is guaranteed to lie within exactly one block this
// Heap owns for as long as the Heap itself is alive (spec.md §4.3).
type Heap struct {
	blocks *alloc.BlockList
}

// New returns an empty Heap; head/overflow blocks are created lazily on
// first allocation.
func New() *Heap {
	return &Heap{blocks: alloc.NewBlockList()}
}

// Scope is the mutator-scope proof required to allocate or deallocate
// through the heap (spec.md §4.4, §9); dereferencing (Deref, the value
// package's AsXxx casts) does not take one. It carries no state of
// its own; it exists so every fallible heap operation's signature makes
// the scope requirement visible at the call site.
type Scope struct {
	heap *Heap
}

// Mutate opens a mutator scope over h for the duration of fn and runs
// fn under it (spec.md §5: "A mutator holds an exclusive scope over the
// heap for the duration of one step"). IRIS is single-threaded per heap;
// Mutate does not itself arbitrate concurrent callers — see
// internal/runner for how independent heaps are run concurrently.
func (h *Heap) Mutate(fn func(*Scope) error) error {
	return fn(&Scope{heap: h})
}

// Heap returns the heap this scope was opened over.
func (s *Scope) Heap() *Heap { return s.heap }

// reserve routes an n-byte request to head or overflow per spec.md §4.3
// and returns a pointer to the start of the allocated region.
func (h *Heap) reserve(n uintptr) (unsafe.Pointer, error) {
	if err := alloc.CheckRequest(n); err != nil {
		return nil, err
	}

	if alloc.ClassOf(n) == alloc.Medium && h.holeSize(h.blocks.Head) < n {
		return h.reserveIn(&h.blocks.Overflow, n, h.blocks.RetireOverflow)
	}
	return h.reserveIn(&h.blocks.Head, n, h.blocks.RetireHead)
}

// holeSize returns the byte size of bb's current hole, or 0 if bb is nil.
func (h *Heap) holeSize(bb *alloc.BumpBlock) uintptr {
	if bb == nil {
		return 0
	}
	if bb.Cursor() < bb.Limit() {
		return 0
	}
	return bb.Cursor() - bb.Limit()
}

// reserveIn allocates n bytes from *slot, creating a fresh block if
// *slot is nil or exhausted, migrating the exhausted block away via
// retire first (spec.md §4.3's "migrate-on-exhaustion" policy). A fresh
// block always has room for any non-Large request, so this terminates
// within two iterations.
func (h *Heap) reserveIn(slot **alloc.BumpBlock, n uintptr, retire func()) (unsafe.Pointer, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if *slot == nil {
			bb, err := alloc.NewBumpBlock()
			if err != nil {
				return nil, err
			}
			*slot = bb
		}

		if off, ok := (*slot).InnerAlloc(n); ok {
			bb := *slot
			bb.Mark(off, n)
			return bb.Pointer(off), nil
		}

		retire()
	}
	return nil, ierrors.New(ierrors.OutOfMemory, "no block could satisfy a %d-byte request", n)
}

// dealloc locates the block owning p by a linear range check over every
// block the heap owns, then clears the line marks covering [p, p+size)
// (spec.md §4.3). A pointer not owned by any block is a fatal runtime
// invariant violation: it can only arise from a bug in the caller, never
// from valid IRIS bytecode.
func (h *Heap) dealloc(p unsafe.Pointer, size uintptr) error {
	addr := uintptr(p)
	for _, bb := range h.blocks.AllBlocks() {
		base := bb.Block().Base()
		if addr >= base && addr+size <= base+alloc.BlockSize {
			bb.InnerDealloc(addr-base, size)
			return nil
		}
	}
	panic("iris/heap: dealloc of a pointer owned by no block")
}

// BlockCount reports how many blocks the heap currently owns (head,
// overflow, and rest), for diagnostics (internal/trace).
func (h *Heap) BlockCount() int {
	return len(h.blocks.AllBlocks())
}

// BytesCommitted reports the total BlockSize of every block the heap
// owns, for diagnostics.
func (h *Heap) BytesCommitted() uintptr {
	return uintptr(h.BlockCount()) * alloc.BlockSize
}
