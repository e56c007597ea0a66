// Package value implements the IRIS algebraic value model and the safe
// pointer layer it is built on (spec.md §3, §4.4).
//
// Grounded on original_source/src/safeptr.rs and src/data.rs. Per the
// design note in spec.md §9 ("untyped reinterpretation"), pointers here
// are deliberately untyped at rest — RawPtr and CellPtr carry no Go type
// parameter, the same way the reference casts UntypedCellPtr to a
// concrete shape immediately before each opcode rather than carrying a
// typed pointer through the value graph. Typed access is layered on top
// by internal/heap's generic Alloc/Deref helpers and by this package's
// AsXxx cast functions.
package value

import "unsafe"

// RawPtr is a pointer newtype. It is copyable and its identity is
// pointer equality; it carries no lifetime (spec.md §3). It may be null:
// NilPtr is the null RawPtr, and the VM uses it for the Zero value.
type RawPtr struct {
	p unsafe.Pointer
}

// NilPtr is the zero RawPtr.
var NilPtr = RawPtr{}

// NewRawPtr wraps a raw unsafe.Pointer.
func NewRawPtr(p unsafe.Pointer) RawPtr { return RawPtr{p: p} }

// IsNil reports whether the pointer is the null pointer.
func (r RawPtr) IsNil() bool { return r.p == nil }

// Addr returns the pointer's numeric address, used for block-ownership
// range checks during deallocation (spec.md §4.3) and for alignment
// invariant checks.
func (r RawPtr) Addr() uintptr { return uintptr(r.p) }

// Equal reports pointer identity (spec.md §3: "identity is pointer-equal").
func (r RawPtr) Equal(o RawPtr) bool { return r.p == o.p }

// Unsafe exposes the underlying pointer for the heap and VM layers that
// must reinterpret it as a concrete shape.
func (r RawPtr) Unsafe() unsafe.Pointer { return r.p }

// CellPtr is an interior-mutable cell holding a RawPtr: the pointer
// itself may be rewritten without a mutator scope. Reaching the pointee
// (through the AsXxx casts or heap.Deref) does not take a Scope either;
// no pointer type in this package carries a scope proof.
type CellPtr struct {
	ptr RawPtr
}

// NewCellPtr creates a cell pointing at r.
func NewCellPtr(r RawPtr) CellPtr { return CellPtr{ptr: r} }

// Get returns the pointer currently held by the cell.
func (c CellPtr) Get() RawPtr { return c.ptr }

// Set rewrites the pointer held by the cell; this never touches the
// pointee and needs no mutator scope.
func (c *CellPtr) Set(r RawPtr) { c.ptr = r }

// IsNil reports whether the cell currently points at nothing.
func (c CellPtr) IsNil() bool { return c.ptr.IsNil() }
