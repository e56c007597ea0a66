package alloc

import (
	"unsafe"
)

// BumpBlock is a Block plus bump-allocation state: a downward cursor, the
// current hole's lower bound (limit), and one mark bit per line
// (spec.md §3, §4.2).
//
// Grounded on original_source/src/alloc/blocks.rs and src/mem/blocks.rs;
// restated as a single Go struct pairing a raw buffer with parallel
// metadata slices, the way this module's own bytecode.Function pairs
// instructions with a fractions table.
type BumpBlock struct {
	block     *Block
	cursor    uintptr
	limit     uintptr
	lineMarks [LineCount]bool
}

// NewBumpBlock allocates a fresh Block and initializes an empty BumpBlock
// over it: cursor starts at the top of the block, limit at
// FirstObjectOffset, reserving the first line for block metadata.
func NewBumpBlock() (*BumpBlock, error) {
	blk, err := NewBlock(BlockSize)
	if err != nil {
		return nil, err
	}
	bb := &BumpBlock{
		block:  blk,
		cursor: BlockSize,
		limit:  FirstObjectOffset,
	}
	bb.lineMarks[0] = true // metadata line is always considered marked
	return bb, nil
}

// Block returns the underlying raw block.
func (bb *BumpBlock) Block() *Block { return bb.block }

// Cursor returns the current bump cursor (byte offset).
func (bb *BumpBlock) Cursor() uintptr { return bb.cursor }

// Limit returns the current hole's lower bound (byte offset).
func (bb *BumpBlock) Limit() uintptr { return bb.limit }

// Contains reports whether the byte offset range [off, off+n) lies
// entirely within this block's user region.
func (bb *BumpBlock) Contains(off, n uintptr) bool {
	return off >= FirstObjectOffset && off+n <= BlockSize
}

// InnerAlloc implements spec.md §4.2's algorithm: bump the cursor down by
// n; if that underruns the current hole's limit, search for the next
// hole and retry once. Returns the byte offset of the allocated region,
// or ok=false if no hole of sufficient size remains in this block.
func (bb *BumpBlock) InnerAlloc(n uintptr) (offset uintptr, ok bool) {
	next := bb.cursor - n
	if bb.cursor < n {
		// underflow guard: request larger than remaining address space
		next = 0
	}

	if next >= bb.limit && bb.cursor >= n {
		bb.cursor = next
		return next, true
	}

	cursor, limit, found := bb.findNextAvailableHole(bb.limit)
	if !found {
		return 0, false
	}
	bb.cursor, bb.limit = cursor, limit

	if bb.cursor < n {
		return 0, false
	}
	next = bb.cursor - n
	if next < bb.limit {
		return 0, false
	}
	bb.cursor = next
	return next, true
}

// findNextAvailableHole scans line marks downward from the line
// containing `start`, accumulating a run of unmarked lines. The first unmarked line
// immediately following a marked line is conservatively skipped, so a
// hole never starts flush against a live object (spec.md §4.2).
//
// Returns the hole as (cursor, limit) byte offsets, where limit bottoms
// out at FirstObjectOffset; found is false when no hole exists at or
// below `start`.
func (bb *BumpBlock) findNextAvailableHole(start uintptr) (cursor, limit uintptr, found bool) {
	startLine := int(start / LineSize)
	if startLine >= LineCount {
		startLine = LineCount - 1
	}

	var holeEndLine = -1
	var previousWasMarked = true

	for line := startLine; line >= int(FirstObjectOffset/LineSize); line-- {
		marked := bb.lineMarks[line]

		if !marked {
			if previousWasMarked {
				// conservative gap: skip the first unmarked line after a
				// marked one to leave a safety margin against straddling
				// objects.
				previousWasMarked = false
				continue
			}
			if holeEndLine == -1 {
				holeEndLine = line
			}
			previousWasMarked = false
			continue
		}

		// marked line: if we were accumulating a hole, it ends here.
		if holeEndLine != -1 {
			holeStartLine := line + 1
			return uintptr(holeEndLine+1) * LineSize, uintptr(holeStartLine) * LineSize, true
		}
		previousWasMarked = true
	}

	if holeEndLine != -1 {
		return uintptr(holeEndLine+1) * LineSize, FirstObjectOffset, true
	}
	return 0, 0, false
}

// InnerDealloc clears the line marks spanning [offset, offset+size). The
// cursor is never rewound; the space becomes reclaimable only when a
// later hole search crosses these lines (spec.md §4.2, §9).
func (bb *BumpBlock) InnerDealloc(offset, size uintptr) {
	firstLine := int(offset / LineSize)
	lastLine := int((offset + size - 1) / LineSize)
	for line := firstLine; line <= lastLine && line < LineCount; line++ {
		bb.lineMarks[line] = false
	}
}

// Mark marks the lines spanning [offset, offset+size) as live.
func (bb *BumpBlock) Mark(offset, size uintptr) {
	firstLine := int(offset / LineSize)
	lastLine := int((offset + size - 1) / LineSize)
	for line := firstLine; line <= lastLine && line < LineCount; line++ {
		bb.lineMarks[line] = true
	}
}

// LineMarked reports whether the line covering offset is marked; used by
// tests asserting invariant 3 (spec.md §8).
func (bb *BumpBlock) LineMarked(offset uintptr) bool {
	line := int(offset / LineSize)
	if line < 0 || line >= LineCount {
		return false
	}
	return bb.lineMarks[line]
}

// Pointer returns an unsafe.Pointer to the given offset. It does not
// mark any lines; the caller marks the allocated range with Mark so the
// lines it spans stay marked until deallocation.
func (bb *BumpBlock) Pointer(offset uintptr) unsafe.Pointer {
	return bb.block.Pointer(offset)
}

// Exhausted reports whether the block has no room for even a minimal
// allocation; used by the Heap to decide when to migrate a block to
// `rest` (spec.md §4.3).
func (bb *BumpBlock) Exhausted() bool {
	_, _, found := bb.findNextAvailableHole(bb.limit)
	return bb.cursor <= bb.limit && !found
}

// Release releases the underlying block.
func (bb *BumpBlock) Release() {
	bb.block.Release()
}
