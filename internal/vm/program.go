package vm

import (
	"unsafe"

	ierrors "github.com/dabernado/iris-go/internal/errors"

	"github.com/dabernado/iris-go/internal/bytecode"
)

// ptrOf narrows a typed Go pointer to unsafe.Pointer, for storage inside
// a value.RawPtr (internal/value's pointers are deliberately untyped at
// rest; see internal/value/ptr.go).
func ptrOf(fn *bytecode.Function) unsafe.Pointer { return unsafe.Pointer(fn) }

// Program is the linked set of Functions a Thread executes, indexed by
// the idx immediate CALL/UNCALL carries (spec.md §6: "a program is a
// sequence of Functions").
type Program struct {
	Functions []*bytecode.Function
}

// NewProgram wraps an ordered function list.
func NewProgram(fns ...*bytecode.Function) *Program {
	return &Program{Functions: fns}
}

// Lookup resolves a CALL/UNCALL immediate to its target Function.
func (p *Program) Lookup(idx int) (*bytecode.Function, error) {
	if idx < 0 || idx >= len(p.Functions) {
		return nil, ierrors.New(ierrors.BoundsError, "function index %d out of range [0,%d)", idx, len(p.Functions))
	}
	return p.Functions[idx], nil
}
