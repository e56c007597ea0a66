// Package alloc implements the mark-region block allocator described in
// spec.md §2 item 1-2 and §4.1-§4.2: OS-aligned power-of-two blocks, and
// intra-block bump allocation at line granularity with hole recycling.
//
// Grounded on the reference's src/alloc/blocks.rs and src/alloc/immix.rs
// (original_source/), restated as a small, constant-driven package.
package alloc

// BlockSize is the fixed power-of-two size of every raw block (spec.md §3).
const BlockSize = 1 << 15 // 32768

// LineSize is the mark granularity within a block (spec.md §3).
const LineSize = 1 << 7 // 128

// LineCount is the number of lines per block.
const LineCount = BlockSize / LineSize

// FirstObjectOffset reserves the first line for the block's own metadata
// back-pointer; user allocations start here (spec.md §3, SPEC_FULL.md).
const FirstObjectOffset = LineSize

// SmallObjectMax is the inclusive upper bound of the Small size class.
const SmallObjectMax = LineSize

// MediumObjectMax is the inclusive upper bound of the Medium size class;
// above it a request is Large and unsupported (spec.md §4.1, §4.3).
const MediumObjectMax = BlockSize - FirstObjectOffset

// DefaultArraySize is the minimum capacity a dynamic array grows to
// (spec.md §8).
const DefaultArraySize = 8

// ArrayGrowthFactor is the minimum geometric growth multiplier used when
// an Array outgrows its capacity (spec.md §8: "new cap >= 1.5x old cap").
const ArrayGrowthFactor = 1.5
