package alloc

import (
	"unsafe"

	"github.com/google/uuid"

	ierrors "github.com/dabernado/iris-go/internal/errors"
)

// Block owns one raw, size-aligned memory region (spec.md §4.1). There is
// no portable cross-platform "aligned mmap" primitive in the example pack
// (see DESIGN.md's stdlib-justification entry for this file), so alignment
// is obtained by over-allocating a Go byte slice and slicing into its
// aligned interior; the slice is held for the Block's lifetime so the
// runtime cannot move or collect it underneath live pointers.
type Block struct {
	ID   uuid.UUID
	raw  []byte // over-allocated backing storage
	base uintptr
	size uintptr
}

// NewBlock requests an OS-backed region of size n, where n must be a
// power of two. Returns BadRequest if it is not.
func NewBlock(n uintptr) (*Block, error) {
	if n == 0 || n&(n-1) != 0 {
		return nil, ierrors.New(ierrors.BadRequest, "block size %d is not a power of two", n)
	}

	raw, err := reserve(n + n - 1)
	if err != nil {
		return nil, err
	}

	start := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (start + n - 1) &^ (n - 1)
	offset := aligned - start

	b := &Block{
		ID:   uuid.New(),
		raw:  raw,
		base: aligned,
		size: n,
	}
	return b.withOffset(offset), nil
}

// reserve allocates an n-byte region, converting the runtime's allocation
// failure panic into an OutOfMemory error: make() has no error return,
// but a request that exceeds available memory panics with a recoverable
// runtime.Error rather than crashing the process.
func reserve(n uintptr) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = ierrors.New(ierrors.OutOfMemory, "failed to reserve %d bytes: %v", n, r)
		}
	}()
	return make([]byte, n), nil
}

// withOffset trims raw down to exactly the aligned, size-long window so
// Pointer()/Bytes() never need to recompute the offset.
func (b *Block) withOffset(offset uintptr) *Block {
	b.raw = b.raw[offset : offset+b.size]
	b.base = uintptr(unsafe.Pointer(&b.raw[0]))
	return b
}

// Base returns the block's aligned base address, for alignment invariant
// checks (spec.md §8, invariant 1).
func (b *Block) Base() uintptr { return b.base }

// Size returns the block's fixed size.
func (b *Block) Size() uintptr { return b.size }

// Bytes exposes the block's backing storage.
func (b *Block) Bytes() []byte { return b.raw }

// Pointer returns an unsafe.Pointer to the byte at the given offset
// within the block.
func (b *Block) Pointer(offset uintptr) unsafe.Pointer {
	return unsafe.Pointer(&b.raw[offset])
}

// Release drops the block's backing storage, making it eligible for
// garbage collection. Go has no explicit munmap for a make()-backed
// slice; releasing the last reference is the idiomatic equivalent of the
// reference's RAII drop (spec.md §4.1).
func (b *Block) Release() {
	b.raw = nil
	b.base = 0
}

// Aligned reports whether the block satisfies the power-of-two alignment
// invariant (spec.md §8, invariant 1). Exposed for tests.
func (b *Block) Aligned() bool {
	return b.base&(b.size-1) == 0
}
