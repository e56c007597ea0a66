package heap

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/dabernado/iris-go/internal/alloc"
)

// Stats is a point-in-time snapshot of a Heap's footprint, reporting the
// IRIS heap's own block-level accounting (runtime.MemStats is included
// only for comparison) since deallocation here is manual (spec.md §4.3,
// §9), not GC-driven.
type Stats struct {
	Blocks         int
	BytesCommitted uintptr
	GoHeapAlloc    uint64 // for comparison only; not authoritative over IRIS objects
}

// Snapshot reports h's current footprint.
func (h *Heap) Snapshot() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		Blocks:         h.BlockCount(),
		BytesCommitted: h.BytesCommitted(),
		GoHeapAlloc:    m.Alloc,
	}
}

// String renders a human-readable summary of the block count and the
// bytes committed.
func (s Stats) String() string {
	return fmt.Sprintf("%d block(s), %s committed (block size %s)",
		s.Blocks, humanize.Bytes(uint64(s.BytesCommitted)), humanize.Bytes(alloc.BlockSize))
}
