package bytecode

import (
	"github.com/dabernado/iris-go/internal/value"
)

// Function is a heap-allocable bytecode sequence: an ordered array of
// instruction words plus an ordered array of fraction representative
// pointers resolved at link time (spec.md §3, §4.5, §6).
//
// Pairs a Code buffer with a parallel metadata slice, the way a bytecode
// chunk pairs instructions with debug info — here the metadata slice is
// the fractions table EXPF/COLF index into, rather than debug info.
type Function struct {
	Name      string
	Ops       []Word
	Fractions []value.CellPtr
}

// NewFunction returns an empty, named Function (spec.md §6:
// "Function::alloc").
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// Push appends one instruction word (spec.md §6: "Function::push(op)").
func (f *Function) Push(w Word) {
	f.Ops = append(f.Ops, w)
}

// PushFrac appends a fraction representative pointer, returning its
// index into the fractions table for use as an EXPF/COLF immediate
// (spec.md §6: "Function::push_frac(ptr)").
func (f *Function) PushFrac(ptr value.CellPtr) int {
	f.Fractions = append(f.Fractions, ptr)
	return len(f.Fractions) - 1
}

// Len returns the number of instructions in the function.
func (f *Function) Len() int { return len(f.Ops) }

// At returns the instruction word at ip.
func (f *Function) At(ip int) (Word, bool) {
	if ip < 0 || ip >= len(f.Ops) {
		return 0, false
	}
	return f.Ops[ip], true
}

// Frac returns the fraction representative pointer at idx.
func (f *Function) Frac(idx int) (value.CellPtr, bool) {
	if idx < 0 || idx >= len(f.Fractions) {
		return value.CellPtr{}, false
	}
	return f.Fractions[idx], true
}

// AsFunction reinterprets an untyped heap pointer as *Function — the
// unchecked cast the VM performs when a CellPtr<Function> is dereferenced
// (spec.md §4.4, §9).
func AsFunction(r value.RawPtr) *Function {
	return (*Function)(r.Unsafe())
}
