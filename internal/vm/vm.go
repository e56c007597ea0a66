// Package vm implements the IRIS dispatch loop: the Continuation
// (program counter + direction), the Thread (current function, context
// stack, data register), and eval_next_instr's opcode table
// (spec.md §3, §4.6).
//
// Grounded on original_source/src/vm.rs's Thread/EvalStatus shape and
// its per-opcode match arms (most of which are stubs there — this
// package completes them against spec.md §4.6.1's semantics table),
// restated as one Thread struct owning mutable state with one big
// dispatch switch, errors surfaced through internal/errors rather than
// panics.
package vm

import (
	ierrors "github.com/dabernado/iris-go/internal/errors"

	"github.com/dabernado/iris-go/internal/bytecode"
	"github.com/dabernado/iris-go/internal/context"
	"github.com/dabernado/iris-go/internal/heap"
	"github.com/dabernado/iris-go/internal/value"
)

// EvalStatus is the result of one eval_next_instr step (spec.md §6).
type EvalStatus int

const (
	Pending EvalStatus = iota
	Ok
	Err
)

func (s EvalStatus) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Ok:
		return "Ok"
	case Err:
		return "Err"
	default:
		return "?"
	}
}

// Thread is the VM's complete execution state (spec.md §3): a program,
// a continuation, a context stack, and a data register holding the
// value currently in hand.
type Thread struct {
	Program *Program
	Cont    Continuation
	Ctx     *context.Stack
	Data    value.RawPtr

	// jumped is set by call/end for the one step in which they retarget
	// the continuation directly; it suppresses that step's generic
	// ip advance (spec.md §4.6.2 step 4 assumes a flat ±1 step, which
	// does not apply the step a CALL/UNCALL/END itself repositions ip).
	jumped bool
}

// NewThread prepares a thread with an entry function and an initial
// data value (spec.md §6: "Thread::alloc_with_arg").
func NewThread(prog *Program, entry *bytecode.Function, data value.RawPtr) *Thread {
	return &Thread{
		Program: prog,
		Cont:    NewContinuation(entry),
		Ctx:     context.NewStack(),
		Data:    data,
	}
}

// DataReg returns the current data register (spec.md §6: "Thread::data()").
func (t *Thread) DataReg() value.RawPtr { return t.Data }

// EvalNextInstr runs one dispatch-loop step (spec.md §4.6.2).
func (t *Thread) EvalNextInstr(sc *heap.Scope) (EvalStatus, error) {
	if err := t.reconcile(); err != nil {
		return Err, err
	}

	word, ok := t.Cont.Fetch()
	if !ok {
		return Err, ierrors.New(ierrors.BoundsError, "ip %d out of range for function %q", t.Cont.IP, t.Cont.fn().Name)
	}
	op, err := bytecode.GetOpcode(word, t.Cont.Backward)
	if err != nil {
		return Err, err
	}

	t.jumped = false
	status, err := t.dispatch(sc, op, word)
	if err != nil {
		return Err, err
	}

	if status != Ok && !t.jumped {
		t.Cont.Advance()
	}
	return status, nil
}

// reconcile implements spec.md §4.6.2 step 1: flip a product First/Second
// frame when ip crosses its boundary, or pop and skip a sum's Left/Right
// frame when ip reaches the matching endpoint.
func (t *Thread) reconcile() error {
	top := t.Ctx.Top()
	switch top.Kind {
	case context.KindFirst, context.KindSecond:
		if t.Cont.IP == top.OpIndex {
			if _, err := t.Ctx.Pop(); err != nil {
				return err
			}
			next := context.KindSecond
			if top.Kind == context.KindSecond {
				next = context.KindFirst
			}
			t.Ctx.Push(context.Frame{Kind: next, OpIndex: top.OpIndex, Other: t.Data, Root: top.Root})
			t.Data = top.Other
		}
	case context.KindLeft, context.KindRight:
		if t.Cont.IP == top.OpIndex {
			if _, err := t.Ctx.Pop(); err != nil {
				return err
			}
			t.Data = top.Root
			t.Cont.Jump(top.Jump + 1)
		}
	}
	return nil
}

// dispatch executes the resolved opcode against the current state,
// implementing spec.md §4.6.1's table. Returns Ok only for the END/Nil
// termination case; Pending otherwise.
func (t *Thread) dispatch(sc *heap.Scope, op bytecode.OpCode, word bytecode.Word) (EvalStatus, error) {
	switch op {
	case bytecode.OpID:
		// no-op

	case bytecode.OpZEROI:
		v, err := zeroi(sc, t.Data)
		if err != nil {
			return Err, err
		}
		t.Data = v
	case bytecode.OpZEROE:
		v, err := zeroe(sc, t.Data)
		if err != nil {
			return Err, err
		}
		t.Data = v

	case bytecode.OpUNITI:
		v, err := uniti(sc, t.Data)
		if err != nil {
			return Err, err
		}
		t.Data = v
	case bytecode.OpUNITE:
		v, err := unite(sc, t.Data)
		if err != nil {
			return Err, err
		}
		t.Data = v

	case bytecode.OpSWAPP:
		swapp(t.Data)

	case bytecode.OpASSRP:
		if err := assrp(t.Data); err != nil {
			return Err, err
		}
	case bytecode.OpASSLP:
		if err := asslp(t.Data); err != nil {
			return Err, err
		}

	case bytecode.OpSWAPS:
		lc, rc := bytecode.DecodeS(word)
		if t.Cont.Backward {
			lc, rc = rc, lc
		}
		if err := swaps(t.Data, lc, rc); err != nil {
			return Err, err
		}

	case bytecode.OpDIST:
		lc, rc := bytecode.DecodeS(word)
		v, err := dist(sc, t.Data, lc, rc)
		if err != nil {
			return Err, err
		}
		t.Data = v
	case bytecode.OpFACT:
		lc, rc := bytecode.DecodeS(word)
		v, err := fact(sc, t.Data, lc, rc)
		if err != nil {
			return Err, err
		}
		t.Data = v

	case bytecode.OpEXPN:
		idx := bytecode.DecodeI(word)
		rep, ok := t.Cont.fn().Frac(int(idx))
		if !ok {
			return Err, ierrors.New(ierrors.BoundsError, "EXPN: fraction index %d out of range", idx)
		}
		v, err := expn(sc, rep.Get())
		if err != nil {
			return Err, err
		}
		t.Data = v
	case bytecode.OpCOLN:
		v, err := coln(sc, t.Data)
		if err != nil {
			return Err, err
		}
		t.Data = v

	case bytecode.OpEXPF:
		idx := bytecode.DecodeI(word)
		rep, ok := t.Cont.fn().Frac(int(idx))
		if !ok {
			return Err, ierrors.New(ierrors.BoundsError, "EXPF: fraction index %d out of range", idx)
		}
		v, err := expf(sc, rep.Get(), t.Data, value.Sizeof[value.Nat]())
		if err != nil {
			return Err, err
		}
		t.Data = v
	case bytecode.OpCOLF:
		v, err := colf(sc, t.Data)
		if err != nil {
			return Err, err
		}
		t.Data = v

	case bytecode.OpCALL, bytecode.OpUNCALL:
		return t.call(word, op == bytecode.OpUNCALL)

	case bytecode.OpSTART:
		// scope marker only; no runtime effect

	case bytecode.OpEND:
		return t.end()

	case bytecode.OpSUMS:
		return Pending, t.enterSum(sc, word)
	case bytecode.OpSUME:
		return Err, ierrors.New(ierrors.BadContext, "SUME reached with no matching Left/Right frame")

	case bytecode.OpPRODS:
		return Pending, t.enterProduct(word)
	case bytecode.OpPRODE:
		return Pending, t.exitProduct()

	case bytecode.OpADD, bytecode.OpSUB, bytecode.OpMUL, bytecode.OpDIV,
		bytecode.OpXOR, bytecode.OpCSWAP, bytecode.OpRR, bytecode.OpRL:
		if err := t.pairArith(op); err != nil {
			return Err, err
		}

	case bytecode.OpADDI, bytecode.OpSUBI, bytecode.OpMULI, bytecode.OpDIVI,
		bytecode.OpXORI, bytecode.OpCSWAPI, bytecode.OpRRI, bytecode.OpRLI:
		if err := t.immArith(op, bytecode.DecodeI(word)); err != nil {
			return Err, err
		}

	case bytecode.OpNEG:
		natNeg(value.AsNat(t.Data))

	case bytecode.OpLTI, bytecode.OpLTE:
		v, err := t.lessThanPair(sc, op == bytecode.OpLTE)
		if err != nil {
			return Err, err
		}
		t.Data = v
	case bytecode.OpLTII, bytecode.OpLTEI:
		v, err := t.lessThanImm(sc, op == bytecode.OpLTEI, bytecode.DecodeI(word))
		if err != nil {
			return Err, err
		}
		t.Data = v

	case bytecode.OpREAD, bytecode.OpWRITE:
		// host I/O placeholder; synchronous no-op at the core level
		// (spec.md §4.6.1, §6).

	default:
		return Err, ierrors.New(ierrors.TypeError, "unhandled opcode %s", op)
	}
	return Pending, nil
}

// call implements CALL/UNCALL (spec.md §4.6.1): push a Call frame
// remembering the caller's function, return ip, and direction; retarget
// the continuation at the callee, flipping direction for UNCALL.
func (t *Thread) call(word bytecode.Word, uncall bool) (EvalStatus, error) {
	idx := int(bytecode.DecodeI(word))
	callee, err := t.Program.Lookup(idx)
	if err != nil {
		return Err, err
	}

	t.Ctx.Push(context.Call(t.Cont.Backward, t.Cont.IP+1, t.Cont.Function))
	t.Cont.SetFunc(callee)
	if uncall {
		t.Cont.Reverse()
	}
	t.Cont.SetIP(t.Cont.AtStart())
	t.jumped = true
	return Pending, nil
}

// end implements END (spec.md §4.6.1): returns through a Call frame
// (restoring the caller and its direction), or terminates the thread
// successfully when the context stack is back at its Nil floor.
func (t *Thread) end() (EvalStatus, error) {
	top := t.Ctx.Top()
	if top.Kind == context.KindNil {
		return Ok, nil
	}
	if top.Kind != context.KindCall {
		return Err, ierrors.New(ierrors.BadContext, "END reached with a %s frame on top, expected Call or Nil", top.Kind)
	}
	if _, err := t.Ctx.Pop(); err != nil {
		return Err, err
	}
	t.Cont.SetFunc(bytecode.AsFunction(top.Func))
	t.Cont.SetIP(top.Ret)
	t.Cont.Backward = top.Not
	t.jumped = true
	return Pending, nil
}

// enterSum implements SUMS (spec.md §4.6.1): pick the left or right
// branch by comparing the sum's tag to div, push the matching context
// frame, and unwrap the data register to the branch's payload.
func (t *Thread) enterSum(sc *heap.Scope, word bytecode.Word) error {
	div, lc, rc := bytecode.DecodeC(word)
	s := value.AsSum(t.Data)
	root := t.Data
	inner := s.Data.Get()

	if s.Tag < div {
		t.Ctx.Push(context.Left(t.Cont.IP+int(lc)+1, int(rc), root))
	} else {
		// skip the left body; the advance after dispatch lands on the
		// right body, and the frame ends at the closing SUME.
		t.Cont.Jump(int(lc))
		t.Ctx.Push(context.Right(t.Cont.IP+int(rc)+1, 0, root))
	}
	t.Data = inner
	return nil
}

// enterProduct implements PRODS (spec.md §4.6.1): push a First frame
// recording the second half and the root product, then unwrap the data
// register to the product's first field.
func (t *Thread) enterProduct(word bytecode.Word) error {
	boundary := int(bytecode.DecodeI(word))
	p := value.AsProduct(t.Data)
	t.Ctx.Push(context.First(boundary, p.Snd.Get(), t.Data))
	t.Data = p.Fst.Get()
	return nil
}

// exitProduct implements PRODE (spec.md §4.6.1): pop the Second frame
// left behind by reconcile's First->Second flip, write the first/second
// fields back into the root product in place, and restore it to the
// data register.
func (t *Thread) exitProduct() error {
	top, err := t.Ctx.Pop()
	if err != nil {
		return err
	}
	if top.Kind != context.KindSecond {
		return ierrors.New(ierrors.BadContext, "PRODE reached with a %s frame on top, expected Second", top.Kind)
	}
	p := value.AsProduct(top.Root)
	p.Fst = value.NewCellPtr(top.Other)
	p.Snd = value.NewCellPtr(t.Data)
	t.Data = top.Root
	return nil
}

func (t *Thread) pairArith(op bytecode.OpCode) error {
	p := value.AsProduct(t.Data)
	a := value.AsNat(p.Fst.Get())
	b := value.AsNat(p.Snd.Get())
	switch op {
	case bytecode.OpADD:
		natAdd(a, b)
	case bytecode.OpSUB:
		return natSub(a, b)
	case bytecode.OpMUL:
		return natMul(a, b)
	case bytecode.OpDIV:
		return natDiv(a, b)
	case bytecode.OpXOR:
		natXor(a, b)
	case bytecode.OpCSWAP:
		c := value.AsNat(p.Fst.Get())
		rest := value.AsProduct(p.Snd.Get())
		x, y := value.AsNat(rest.Fst.Get()), value.AsNat(rest.Snd.Get())
		cswap(c, x, y)
	case bytecode.OpRR:
		natRR(a, b)
	case bytecode.OpRL:
		natRL(a, b)
	}
	return nil
}

func (t *Thread) immArith(op bytecode.OpCode, imm uint32) error {
	switch op {
	case bytecode.OpADDI:
		natAddI(value.AsNat(t.Data), imm)
	case bytecode.OpSUBI:
		return natSubI(value.AsNat(t.Data), imm)
	case bytecode.OpMULI:
		return natMulI(value.AsNat(t.Data), imm)
	case bytecode.OpDIVI:
		return natDivI(value.AsNat(t.Data), imm)
	case bytecode.OpXORI:
		natXorI(value.AsNat(t.Data), imm)
	case bytecode.OpCSWAPI:
		p := value.AsProduct(t.Data)
		cswapI(imm, value.AsNat(p.Fst.Get()), value.AsNat(p.Snd.Get()))
	case bytecode.OpRRI:
		natRRI(value.AsNat(t.Data), imm)
	case bytecode.OpRLI:
		natRLI(value.AsNat(t.Data), imm)
	}
	return nil
}

// lessThanPair implements LTI/LTE (spec.md §4.6.1): wrap a Product(Nat,
// Nat) in a Sum tagged by the comparison (LTI), or check an existing
// tag against the comparison and unwrap (LTE).
func (t *Thread) lessThanPair(sc *heap.Scope, eliminate bool) (value.RawPtr, error) {
	if !eliminate {
		p := value.AsProduct(t.Data)
		a, b := value.AsNat(p.Fst.Get()), value.AsNat(p.Snd.Get())
		sp, err := heap.Alloc(sc, value.Sum{Tag: lessThan(a.N, b.N), Data: value.NewCellPtr(t.Data)})
		return value.NewRawPtr(sp), err
	}

	s := value.AsSum(t.Data)
	inner := s.Data.Get()
	p := value.AsProduct(inner)
	a, b := value.AsNat(p.Fst.Get()), value.AsNat(p.Snd.Get())
	if err := checkLessThan(s.Tag, a.N, b.N); err != nil {
		return value.NilPtr, err
	}
	if err := heap.Dealloc[value.Sum](sc, t.Data.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return inner, nil
}

// lessThanImm implements LTII/LTEI: the same comparison against an
// instruction immediate instead of a second Nat field.
func (t *Thread) lessThanImm(sc *heap.Scope, eliminate bool, imm uint32) (value.RawPtr, error) {
	if !eliminate {
		n := value.AsNat(t.Data)
		sp, err := heap.Alloc(sc, value.Sum{Tag: lessThan(n.N, imm), Data: value.NewCellPtr(t.Data)})
		return value.NewRawPtr(sp), err
	}

	s := value.AsSum(t.Data)
	inner := s.Data.Get()
	n := value.AsNat(inner)
	if err := checkLessThan(s.Tag, n.N, imm); err != nil {
		return value.NilPtr, err
	}
	if err := heap.Dealloc[value.Sum](sc, t.Data.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return inner, nil
}
