package value

import (
	"math"
	"unsafe"

	ierrors "github.com/dabernado/iris-go/internal/errors"

	"github.com/dabernado/iris-go/internal/heap"
)

// DefaultArraySize is the minimum capacity an Array grows to (spec.md §8).
const DefaultArraySize = 8

// GrowthFactor is the minimum geometric growth multiplier applied when
// an Array outgrows its capacity (spec.md §8: "new cap >= 1.5x old cap").
const GrowthFactor = 1.5

// Array is IRIS's dynamic array (spec.md §3, §4.4): length + capacity +
// a pointer to a heap-managed raw region holding CellPtr elements, with
// a borrow flag guarding structural mutation while a caller holds a
// slice view (spec.md §5, original_source/src/array.rs).
//
// The backing region lives in the same mark-region heap as every other
// IRIS value — growing an Array allocates a fresh region through the
// scope and deallocates the old one, exactly like any other heap
// object's lifecycle (spec.md §9: "no cycles arise... use arena indices
// or raw handles").
type Array struct {
	base     unsafe.Pointer
	length   int
	capacity int
	borrowed bool
}

func cellSize() uintptr { return unsafe.Sizeof(CellPtr{}) }

// NewArray allocates an empty Array with DefaultArraySize capacity.
func NewArray(sc *heap.Scope) (Array, error) {
	p, err := heap.AllocArray(sc, uintptr(DefaultArraySize)*cellSize())
	if err != nil {
		return Array{}, err
	}
	return Array{base: p, capacity: DefaultArraySize}, nil
}

// Len returns the current length.
func (a *Array) Len() int { return a.length }

// Cap returns the current capacity.
func (a *Array) Cap() int { return a.capacity }

func (a *Array) slots() []CellPtr {
	if a.capacity == 0 {
		return nil
	}
	return unsafe.Slice((*CellPtr)(a.base), a.capacity)
}

// Push appends an element, growing geometrically (>=1.5x, floor
// DefaultArraySize) if the backing storage is full.
func (a *Array) Push(sc *heap.Scope, v CellPtr) error {
	if a.borrowed {
		return ierrors.New(ierrors.MutableBorrowError, "array has an outstanding slice view")
	}
	if a.length == a.capacity {
		if err := a.grow(sc); err != nil {
			return err
		}
	}
	a.slots()[a.length] = v
	a.length++
	return nil
}

// Pop removes and returns the last element.
func (a *Array) Pop() (CellPtr, error) {
	if a.borrowed {
		return CellPtr{}, ierrors.New(ierrors.MutableBorrowError, "array has an outstanding slice view")
	}
	if a.length == 0 {
		return CellPtr{}, ierrors.New(ierrors.BoundsError, "pop from empty array")
	}
	a.length--
	return a.slots()[a.length], nil
}

// Get returns the element at index i.
func (a *Array) Get(i int) (CellPtr, error) {
	if i < 0 || i >= a.length {
		return CellPtr{}, ierrors.New(ierrors.BoundsError, "index %d out of range [0,%d)", i, a.length)
	}
	return a.slots()[i], nil
}

// Set overwrites the element at index i. Setting a cell's pointer is
// always permitted, even under an outstanding borrow, since it does not
// change the array's structure (spec.md §4.4: "mutation through CellPtr
// is permitted").
func (a *Array) Set(i int, v CellPtr) error {
	if i < 0 || i >= a.length {
		return ierrors.New(ierrors.BoundsError, "index %d out of range [0,%d)", i, a.length)
	}
	a.slots()[i] = v
	return nil
}

// Slice exposes a raw view of the array's elements and sets the borrow
// flag, forbidding further structural mutation until ReleaseSlice is
// called (spec.md §5).
func (a *Array) Slice() []CellPtr {
	a.borrowed = true
	return a.slots()[:a.length]
}

// ReleaseSlice clears the borrow flag set by Slice.
func (a *Array) ReleaseSlice() {
	a.borrowed = false
}

// Borrowed reports whether a slice view is currently outstanding.
func (a *Array) Borrowed() bool { return a.borrowed }

// Release deallocates the array's backing region. Called by the VM when
// an Inductive wrapper is consumed/freed.
func (a *Array) Release(sc *heap.Scope) error {
	if a.base == nil {
		return nil
	}
	err := heap.DeallocSized(sc, a.base, uintptr(a.capacity)*cellSize())
	a.base, a.length, a.capacity = nil, 0, 0
	return err
}

func (a *Array) grow(sc *heap.Scope) error {
	newCap := int(math.Ceil(float64(a.capacity) * GrowthFactor))
	if newCap < DefaultArraySize {
		newCap = DefaultArraySize
	}
	if newCap <= a.capacity {
		newCap = a.capacity + 1
	}

	newBase, err := heap.AllocArray(sc, uintptr(newCap)*cellSize())
	if err != nil {
		return err
	}
	newSlots := unsafe.Slice((*CellPtr)(newBase), newCap)
	copy(newSlots, a.slots()[:a.length])

	if a.base != nil {
		if err := heap.DeallocSized(sc, a.base, uintptr(a.capacity)*cellSize()); err != nil {
			return err
		}
	}
	a.base, a.capacity = newBase, newCap
	return nil
}
