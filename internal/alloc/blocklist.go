package alloc

// BlockList holds the three block roles a Heap juggles: the current head
// (Small allocations), the current overflow (diverted Medium
// allocations), and the exhausted blocks retired to `rest` (spec.md §3).
type BlockList struct {
	Head     *BumpBlock
	Overflow *BumpBlock
	Rest     []*BumpBlock
}

// NewBlockList returns an empty BlockList; head/overflow are created
// lazily on first allocation.
func NewBlockList() *BlockList {
	return &BlockList{}
}

// RetireHead migrates the current head into rest and clears it, so the
// caller can install a freshly allocated head.
func (bl *BlockList) RetireHead() {
	if bl.Head != nil {
		bl.Rest = append(bl.Rest, bl.Head)
		bl.Head = nil
	}
}

// RetireOverflow migrates the current overflow into rest.
func (bl *BlockList) RetireOverflow() {
	if bl.Overflow != nil {
		bl.Rest = append(bl.Rest, bl.Overflow)
		bl.Overflow = nil
	}
}

// AllBlocks returns every block currently owned by the list, for linear
// ownership search during deallocation (spec.md §4.3).
func (bl *BlockList) AllBlocks() []*BumpBlock {
	blocks := make([]*BumpBlock, 0, len(bl.Rest)+2)
	if bl.Head != nil {
		blocks = append(blocks, bl.Head)
	}
	if bl.Overflow != nil {
		blocks = append(blocks, bl.Overflow)
	}
	blocks = append(blocks, bl.Rest...)
	return blocks
}
