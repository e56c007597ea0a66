package vm

import (
	"github.com/dabernado/iris-go/internal/bytecode"
	"github.com/dabernado/iris-go/internal/value"
)

// Continuation is the VM's sole program-counter state: the function
// currently executing, the instruction pointer within it, and the
// direction bit (spec.md §3: "direction = false means forward").
type Continuation struct {
	Function value.RawPtr // *bytecode.Function, untyped per the value package's pointer design
	IP       int
	Backward bool
}

// NewContinuation starts a Continuation at the beginning of fn, running
// forward.
func NewContinuation(fn *bytecode.Function) Continuation {
	return Continuation{Function: value.NewRawPtr(ptrOf(fn))}
}

// fn returns the Function this continuation currently addresses.
func (c *Continuation) fn() *bytecode.Function {
	return bytecode.AsFunction(c.Function)
}

// Fetch returns the instruction word at the current ip (spec.md §4.5:
// "Continuation exposes fetch(function)").
func (c *Continuation) Fetch() (bytecode.Word, bool) {
	return c.fn().At(c.IP)
}

// Advance moves ip by one step in the current direction (spec.md §4.5:
// "advance(+1 or -1 by direction)").
func (c *Continuation) Advance() {
	if c.Backward {
		c.IP--
	} else {
		c.IP++
	}
}

// Jump moves ip by n steps in the current direction (spec.md §4.5:
// "jump(n) moves the ip forward or backward by n depending on
// direction").
func (c *Continuation) Jump(n int) {
	if c.Backward {
		c.IP -= n
	} else {
		c.IP += n
	}
}

// Reverse flips the direction bit.
func (c *Continuation) Reverse() { c.Backward = !c.Backward }

// SetFunc retargets the continuation at a new Function.
func (c *Continuation) SetFunc(fn *bytecode.Function) {
	c.Function = value.NewRawPtr(ptrOf(fn))
}

// SetIP sets the instruction pointer directly (used by CALL/UNCALL/END).
func (c *Continuation) SetIP(ip int) { c.IP = ip }

// AtStart returns the natural entry ip for the continuation's current
// direction (0 when forward, last index when backward) — used when
// entering a callee function.
func (c *Continuation) AtStart() int {
	if c.Backward {
		return c.fn().Len() - 1
	}
	return 0
}
