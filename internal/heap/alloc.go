package heap

import "unsafe"

// Alloc is the type-generic allocation path (spec.md §6: "alloc<T>(T)").
// It computes T's byte footprint, bump-allocates a region of that size
// through the scope's heap, writes v into it by value copy, and returns
// a pointer to the live object.
func Alloc[T any](sc *Scope, v T) (unsafe.Pointer, error) {
	p, err := sc.heap.reserve(unsafe.Sizeof(v))
	if err != nil {
		return nil, err
	}
	*(*T)(p) = v
	return p, nil
}

// Deref reinterprets a heap pointer as *T. Callers are trusted to pass a
// pointer previously returned by Alloc[T] (or a cast sanctioned by the
// bytecode's type discipline, per spec.md §9); there is no runtime tag
// check in the release build.
func Deref[T any](p unsafe.Pointer) *T {
	return (*T)(p)
}

// Dealloc frees the region of T's size starting at p, by clearing the
// line marks that cover it (spec.md §4.3). It does not run T's
// destructor — IRIS values own no external resources, and the VM is
// responsible for deallocating the right shape at the right time.
func Dealloc[T any](sc *Scope, p unsafe.Pointer) error {
	var zero T
	return sc.heap.dealloc(p, unsafe.Sizeof(zero))
}

// DeallocSized frees an n-byte region whose exact type is not known at
// the call site (used for array backing storage).
func DeallocSized(sc *Scope, p unsafe.Pointer, n uintptr) error {
	return sc.heap.dealloc(p, n)
}

// AllocArray returns an n-byte zeroed region typed as bytes
// (spec.md §6: "alloc_array(size)").
func AllocArray(sc *Scope, n uintptr) (unsafe.Pointer, error) {
	p, err := sc.heap.reserve(n)
	if err != nil {
		return nil, err
	}
	zero(p, n)
	return p, nil
}

func zero(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}
