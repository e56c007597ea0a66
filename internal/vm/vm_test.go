package vm

import (
	"testing"

	"github.com/dabernado/iris-go/internal/bytecode"
	"github.com/dabernado/iris-go/internal/heap"
	"github.com/dabernado/iris-go/internal/value"
)

func mustEncodeI(t *testing.T, op bytecode.OpCode, imm uint32) bytecode.Word {
	t.Helper()
	w, err := bytecode.EncodeI(op, imm)
	if err != nil {
		t.Fatalf("EncodeI(%s, %d): %v", op, imm, err)
	}
	return w
}

func mustEncodeS(t *testing.T, op bytecode.OpCode, lc, rc uint32) bytecode.Word {
	t.Helper()
	w, err := bytecode.EncodeS(op, lc, rc)
	if err != nil {
		t.Fatalf("EncodeS(%s, %d, %d): %v", op, lc, rc, err)
	}
	return w
}

func mustEncodeC(t *testing.T, op bytecode.OpCode, div, lc, rc uint32) bytecode.Word {
	t.Helper()
	w, err := bytecode.EncodeC(op, div, lc, rc)
	if err != nil {
		t.Fatalf("EncodeC(%s, %d, %d, %d): %v", op, div, lc, rc, err)
	}
	return w
}

func mustStep(t *testing.T, h *heap.Heap, th *Thread) EvalStatus {
	t.Helper()
	var status EvalStatus
	if err := h.Mutate(func(sc *heap.Scope) error {
		var err error
		status, err = th.EvalNextInstr(sc)
		return err
	}); err != nil {
		t.Fatalf("EvalNextInstr: %v", err)
	}
	return status
}

func runToCompletion(t *testing.T, h *heap.Heap, th *Thread, maxSteps int) EvalStatus {
	t.Helper()
	var status EvalStatus
	for i := 0; i < maxSteps; i++ {
		if err := h.Mutate(func(sc *heap.Scope) error {
			var err error
			status, err = th.EvalNextInstr(sc)
			return err
		}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if status == Ok {
			return status
		}
	}
	t.Fatalf("thread did not reach Ok within %d steps", maxSteps)
	return status
}

// TestZeroRoundTrip runs ZEROI then ZEROE and checks the data register's
// address is unchanged, matching spec.md §8's ZEROI/ZEROE round-trip
// property.
func TestZeroRoundTrip(t *testing.T) {
	fn := bytecode.NewFunction("zero_roundtrip")
	fn.Push(mustEncodeI(t, bytecode.OpZEROI, 0))
	fn.Push(mustEncodeI(t, bytecode.OpZEROE, 0))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var original value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		p, err := heap.Alloc(sc, value.Nat{N: 42})
		original = value.NewRawPtr(p)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, original)

	status := runToCompletion(t, h, th, 16)
	if status != Ok {
		t.Fatalf("status = %s, want Ok", status)
	}
	if !th.DataReg().Equal(original) {
		t.Errorf("data register after ZEROI;ZEROE = %v, want original %v", th.DataReg(), original)
	}
}

// TestUnitRoundTrip mirrors TestZeroRoundTrip for UNITI/UNITE.
func TestUnitRoundTrip(t *testing.T) {
	fn := bytecode.NewFunction("unit_roundtrip")
	fn.Push(mustEncodeI(t, bytecode.OpUNITI, 0))
	fn.Push(mustEncodeI(t, bytecode.OpUNITE, 0))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var original value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		p, err := heap.Alloc(sc, value.Nat{N: 7})
		original = value.NewRawPtr(p)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, original)

	status := runToCompletion(t, h, th, 16)
	if status != Ok {
		t.Fatalf("status = %s, want Ok", status)
	}
	if !th.DataReg().Equal(original) {
		t.Errorf("data register after UNITI;UNITE = %v, want original %v", th.DataReg(), original)
	}
}

// TestSwapPTwiceIsIdentity checks SWAPP applied twice restores a
// product's original field order (spec.md §8).
func TestSwapPTwiceIsIdentity(t *testing.T) {
	fn := bytecode.NewFunction("swap_twice")
	fn.Push(mustEncodeI(t, bytecode.OpSWAPP, 0))
	fn.Push(mustEncodeI(t, bytecode.OpSWAPP, 0))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var prodPtr, fstPtr, sndPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		fp, err := heap.Alloc(sc, value.Nat{N: 1})
		if err != nil {
			return err
		}
		sp, err := heap.Alloc(sc, value.Nat{N: 2})
		if err != nil {
			return err
		}
		fstPtr, sndPtr = value.NewRawPtr(fp), value.NewRawPtr(sp)
		pp, err := heap.Alloc(sc, value.Product{Fst: value.NewCellPtr(fstPtr), Snd: value.NewCellPtr(sndPtr)})
		prodPtr = value.NewRawPtr(pp)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, prodPtr)

	status := runToCompletion(t, h, th, 16)
	if status != Ok {
		t.Fatalf("status = %s, want Ok", status)
	}
	p := value.AsProduct(th.DataReg())
	if !p.Fst.Get().Equal(fstPtr) || !p.Snd.Get().Equal(sndPtr) {
		t.Errorf("product fields after SWAPP;SWAPP = (%v,%v), want (%v,%v)", p.Fst.Get(), p.Snd.Get(), fstPtr, sndPtr)
	}
}

// TestDirectionDuality runs ADDI forward then reverses direction and
// runs its inverse, checking the Nat value returns to its starting
// point (spec.md §8 property 5: "direction duality").
func TestDirectionDuality(t *testing.T) {
	fn := bytecode.NewFunction("addi_then_back")
	fn.Push(mustEncodeI(t, bytecode.OpADDI, 5))

	h := heap.New()
	var natPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		p, err := heap.Alloc(sc, value.Nat{N: 10})
		natPtr = value.NewRawPtr(p)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, natPtr)

	if err := h.Mutate(func(sc *heap.Scope) error {
		_, err := th.EvalNextInstr(sc)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if got := value.AsNat(th.DataReg()).N; got != 15 {
		t.Fatalf("after ADDI 5: N = %d, want 15", got)
	}

	th.Cont.Reverse()
	th.Cont.SetIP(0)
	if err := h.Mutate(func(sc *heap.Scope) error {
		_, err := th.EvalNextInstr(sc)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if got := value.AsNat(th.DataReg()).N; got != 10 {
		t.Errorf("after reversing and re-running ADDI: N = %d, want 10", got)
	}
}

// TestFractionUnificationMismatch runs EXPF with a representative
// Nat(1) over a data value Nat(2), then checks COLF fails because the
// two do not unify.
func TestFractionUnificationMismatch(t *testing.T) {
	fn := bytecode.NewFunction("bad_colf")
	idx := fn.PushFrac(value.CellPtr{})
	fn.Push(mustEncodeI(t, bytecode.OpEXPF, uint32(idx)))

	h := heap.New()
	var repPtr, otherPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		rp, err := heap.Alloc(sc, value.Nat{N: 1})
		if err != nil {
			return err
		}
		op, err := heap.Alloc(sc, value.Nat{N: 2})
		repPtr, otherPtr = value.NewRawPtr(rp), value.NewRawPtr(op)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	cell := value.NewCellPtr(repPtr)
	fn.Fractions[idx] = cell

	prog := NewProgram(fn)
	th := NewThread(prog, fn, otherPtr)

	var status EvalStatus
	err := h.Mutate(func(sc *heap.Scope) error {
		var e error
		status, e = th.EvalNextInstr(sc)
		return e
	})
	if err != nil {
		t.Fatalf("EXPF: %v", err)
	}
	if status != Pending {
		t.Fatalf("EXPF status = %s, want Pending", status)
	}

	fn.Push(mustEncodeI(t, bytecode.OpCOLF, 0))
	err = h.Mutate(func(sc *heap.Scope) error {
		var e error
		status, e = th.EvalNextInstr(sc)
		return e
	})
	if err == nil {
		t.Fatal("COLF with mismatched representative: want FracUnification error, got nil")
	}
}

// TestAssrpAsslpRoundTrip runs ASSRP then ASSLP on
// Product(Product(Nat(420), Nat(69)), Nat(1337)) and checks the
// intermediate reassociation and the final round trip, matching spec.md
// §8's named ASSRP/ASSLP scenario.
func TestAssrpAsslpRoundTrip(t *testing.T) {
	fn := bytecode.NewFunction("assrp_asslp")
	fn.Push(mustEncodeI(t, bytecode.OpASSRP, 0))
	fn.Push(mustEncodeI(t, bytecode.OpASSLP, 0))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var outerPtr, innerPtr, aPtr, bPtr, cPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		ap, err := heap.Alloc(sc, value.Nat{N: 420})
		if err != nil {
			return err
		}
		bp, err := heap.Alloc(sc, value.Nat{N: 69})
		if err != nil {
			return err
		}
		cp, err := heap.Alloc(sc, value.Nat{N: 1337})
		if err != nil {
			return err
		}
		aPtr, bPtr, cPtr = value.NewRawPtr(ap), value.NewRawPtr(bp), value.NewRawPtr(cp)

		ip, err := heap.Alloc(sc, value.Product{Fst: value.NewCellPtr(aPtr), Snd: value.NewCellPtr(bPtr)})
		if err != nil {
			return err
		}
		innerPtr = value.NewRawPtr(ip)

		op, err := heap.Alloc(sc, value.Product{Fst: value.NewCellPtr(innerPtr), Snd: value.NewCellPtr(cPtr)})
		outerPtr = value.NewRawPtr(op)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, outerPtr)

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("ASSRP status = %s, want Pending", status)
	}
	if !th.DataReg().Equal(outerPtr) {
		t.Fatalf("ASSRP changed the product's identity: got %v, want %v", th.DataReg(), outerPtr)
	}
	outer := value.AsProduct(outerPtr)
	if !outer.Fst.Get().Equal(aPtr) {
		t.Errorf("after ASSRP, outer.Fst = %v, want Nat(420) at %v", outer.Fst.Get(), aPtr)
	}
	mid := value.AsProduct(outer.Snd.Get())
	if !outer.Snd.Get().Equal(innerPtr) {
		t.Errorf("after ASSRP, outer.Snd should reuse the inner product's shell at %v, got %v", innerPtr, outer.Snd.Get())
	}
	if !mid.Fst.Get().Equal(bPtr) || !mid.Snd.Get().Equal(cPtr) {
		t.Errorf("after ASSRP, inner = (%v,%v), want (Nat(69),Nat(1337)) = (%v,%v)", mid.Fst.Get(), mid.Snd.Get(), bPtr, cPtr)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("ASSLP status = %s, want Pending", status)
	}
	if !outer.Fst.Get().Equal(innerPtr) {
		t.Errorf("after ASSLP, outer.Fst should be the original inner shell at %v, got %v", innerPtr, outer.Fst.Get())
	}
	inner := value.AsProduct(innerPtr)
	if !inner.Fst.Get().Equal(aPtr) || !inner.Snd.Get().Equal(bPtr) {
		t.Errorf("after ASSLP, restored inner = (%v,%v), want (Nat(420),Nat(69)) = (%v,%v)", inner.Fst.Get(), inner.Snd.Get(), aPtr, bPtr)
	}
	if !outer.Snd.Get().Equal(cPtr) {
		t.Errorf("after ASSLP, outer.Snd = %v, want Nat(1337) at %v", outer.Snd.Get(), cPtr)
	}

	if status := mustStep(t, h, th); status != Ok {
		t.Fatalf("END status = %s, want Ok", status)
	}
	if !th.DataReg().Equal(outerPtr) {
		t.Errorf("data register after ASSRP;ASSLP = %v, want original %v", th.DataReg(), outerPtr)
	}
}

// TestSwapsRotationRoundTrip runs SWAPS(3,2) then SWAPS(2,3) on a
// Sum{Tag:2} and checks the intermediate tag and the final round trip,
// matching spec.md §8's named SWAPS rotation scenario.
func TestSwapsRotationRoundTrip(t *testing.T) {
	fn := bytecode.NewFunction("swaps_roundtrip")
	fn.Push(mustEncodeS(t, bytecode.OpSWAPS, 3, 2))
	fn.Push(mustEncodeS(t, bytecode.OpSWAPS, 2, 3))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var sumPtr, dataPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		np, err := heap.Alloc(sc, value.Nat{N: 69})
		if err != nil {
			return err
		}
		dataPtr = value.NewRawPtr(np)
		sp, err := heap.Alloc(sc, value.Sum{Tag: 2, Data: value.NewCellPtr(dataPtr)})
		sumPtr = value.NewRawPtr(sp)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, sumPtr)
	sum := value.AsSum(sumPtr)

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("SWAPS(3,2) status = %s, want Pending", status)
	}
	if sum.Tag != 4 {
		t.Fatalf("after SWAPS(3,2), tag = %d, want 4", sum.Tag)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("SWAPS(2,3) status = %s, want Pending", status)
	}
	if sum.Tag != 2 {
		t.Fatalf("after SWAPS(2,3), tag = %d, want 2", sum.Tag)
	}

	if status := mustStep(t, h, th); status != Ok {
		t.Fatalf("END status = %s, want Ok", status)
	}
	if !th.DataReg().Equal(sumPtr) || !sum.Data.Get().Equal(dataPtr) {
		t.Errorf("SWAPS round trip disturbed the sum's identity or payload")
	}
}

// TestSwapsRotationFourBranches chains four SWAPS(1,3) instructions over
// a 4-constructor sum and checks the tag cycles through every branch
// before returning to its start, per SPEC_FULL.md's "SWAPS rotations
// through more than two branches" coverage commitment.
func TestSwapsRotationFourBranches(t *testing.T) {
	fn := bytecode.NewFunction("swaps_four_branches")
	for i := 0; i < 4; i++ {
		fn.Push(mustEncodeS(t, bytecode.OpSWAPS, 1, 3))
	}
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var sumPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		np, err := heap.Alloc(sc, value.Nat{N: 1})
		if err != nil {
			return err
		}
		sp, err := heap.Alloc(sc, value.Sum{Tag: 0, Data: value.NewCellPtr(value.NewRawPtr(np))})
		sumPtr = value.NewRawPtr(sp)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, sumPtr)
	sum := value.AsSum(sumPtr)

	wantTags := []uint32{3, 2, 1, 0}
	for i, want := range wantTags {
		if status := mustStep(t, h, th); status != Pending {
			t.Fatalf("SWAPS step %d status = %s, want Pending", i, status)
		}
		if sum.Tag != want {
			t.Fatalf("after SWAPS step %d, tag = %d, want %d", i, sum.Tag, want)
		}
	}

	if status := mustStep(t, h, th); status != Ok {
		t.Fatalf("END status = %s, want Ok", status)
	}
}

// TestDistFactRoundTrip runs DIST(2,1) then FACT(2,1) on
// Product(Sum{Tag:2,Data:Nat(1337)}, Unit) and checks the intermediate
// Sum<Product> shape and the final round trip, matching spec.md §8's
// named DIST/FACT scenario.
func TestDistFactRoundTrip(t *testing.T) {
	fn := bytecode.NewFunction("dist_fact")
	fn.Push(mustEncodeS(t, bytecode.OpDIST, 2, 1))
	fn.Push(mustEncodeS(t, bytecode.OpFACT, 2, 1))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var outerPtr, natPtr, unitPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		np, err := heap.Alloc(sc, value.Nat{N: 1337})
		if err != nil {
			return err
		}
		natPtr = value.NewRawPtr(np)
		up, err := heap.Alloc(sc, value.Unit{})
		if err != nil {
			return err
		}
		unitPtr = value.NewRawPtr(up)
		sp, err := heap.Alloc(sc, value.Sum{Tag: 2, Data: value.NewCellPtr(natPtr)})
		if err != nil {
			return err
		}
		op, err := heap.Alloc(sc, value.Product{Fst: value.NewCellPtr(value.NewRawPtr(sp)), Snd: value.NewCellPtr(unitPtr)})
		outerPtr = value.NewRawPtr(op)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, outerPtr)

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("DIST status = %s, want Pending", status)
	}
	mid := value.AsSum(th.DataReg())
	if mid.Tag != 2 {
		t.Fatalf("after DIST, tag = %d, want 2", mid.Tag)
	}
	inner := value.AsProduct(mid.Data.Get())
	if !inner.Fst.Get().Equal(natPtr) || !inner.Snd.Get().Equal(unitPtr) {
		t.Errorf("after DIST, inner = (%v,%v), want (Nat(1337),Unit) = (%v,%v)", inner.Fst.Get(), inner.Snd.Get(), natPtr, unitPtr)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("FACT status = %s, want Pending", status)
	}
	final := value.AsProduct(th.DataReg())
	innerSum := value.AsSum(final.Fst.Get())
	if innerSum.Tag != 2 || !innerSum.Data.Get().Equal(natPtr) {
		t.Errorf("after FACT, Fst = Sum{Tag:%d,Data:%v}, want Sum{Tag:2,Data:%v}", innerSum.Tag, innerSum.Data.Get(), natPtr)
	}
	if !final.Snd.Get().Equal(unitPtr) {
		t.Errorf("after FACT, Snd = %v, want Unit at %v", final.Snd.Get(), unitPtr)
	}

	if status := mustStep(t, h, th); status != Ok {
		t.Fatalf("END status = %s, want Ok", status)
	}
}

// TestColnExpnMultipleFractionIndices runs EXPN;COLN twice against two
// distinct fractions-table entries in the same function, checking each
// witness pair is built and cancelled independently, per SPEC_FULL.md's
// "COLN/EXPN over multiple additive-inverse indices" coverage commitment.
func TestColnExpnMultipleFractionIndices(t *testing.T) {
	fn := bytecode.NewFunction("coln_expn_multi")

	h := heap.New()
	var aPtr, bPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		ap, err := heap.Alloc(sc, value.Nat{N: 11})
		if err != nil {
			return err
		}
		bp, err := heap.Alloc(sc, value.Nat{N: 22})
		aPtr, bPtr = value.NewRawPtr(ap), value.NewRawPtr(bp)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	idxA := fn.PushFrac(value.NewCellPtr(aPtr))
	idxB := fn.PushFrac(value.NewCellPtr(bPtr))
	fn.Push(mustEncodeI(t, bytecode.OpEXPN, uint32(idxA)))
	fn.Push(mustEncodeI(t, bytecode.OpCOLN, 0))
	fn.Push(mustEncodeI(t, bytecode.OpEXPN, uint32(idxB)))
	fn.Push(mustEncodeI(t, bytecode.OpCOLN, 0))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	prog := NewProgram(fn)
	th := NewThread(prog, fn, value.NilPtr)

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("EXPN(idxA) status = %s, want Pending", status)
	}
	p := value.AsProduct(th.DataReg())
	if !p.Fst.Get().Equal(aPtr) {
		t.Fatalf("after EXPN(idxA), witness Fst = %v, want %v", p.Fst.Get(), aPtr)
	}
	if neg := value.AsNegative(p.Snd.Get()); !neg.Data.Get().Equal(aPtr) {
		t.Errorf("after EXPN(idxA), witness Snd does not negate %v", aPtr)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("COLN status = %s, want Pending", status)
	}
	if !th.DataReg().IsNil() {
		t.Fatalf("after COLN, data register = %v, want NilPtr (Zero)", th.DataReg())
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("EXPN(idxB) status = %s, want Pending", status)
	}
	p = value.AsProduct(th.DataReg())
	if !p.Fst.Get().Equal(bPtr) {
		t.Fatalf("after EXPN(idxB), witness Fst = %v, want %v", p.Fst.Get(), bPtr)
	}
	if neg := value.AsNegative(p.Snd.Get()); !neg.Data.Get().Equal(bPtr) {
		t.Errorf("after EXPN(idxB), witness Snd does not negate %v", bPtr)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("COLN status = %s, want Pending", status)
	}
	if !th.DataReg().IsNil() {
		t.Fatalf("after second COLN, data register = %v, want NilPtr (Zero)", th.DataReg())
	}

	if status := mustStep(t, h, th); status != Ok {
		t.Fatalf("END status = %s, want Ok", status)
	}
}

// TestNestedCallUncallThreeFunctions chains fn0 --CALL--> fn1 --UNCALL-->
// fn2 and checks the Call-frame bookkeeping correctly restores each
// caller in turn, and that entering fn2 reversed runs its body as its
// inverse (ADDI resolved to SUBI), per SPEC_FULL.md's "nested CALL/UNCALL
// across three functions" coverage commitment.
func TestNestedCallUncallThreeFunctions(t *testing.T) {
	fn2 := bytecode.NewFunction("fn2")
	fn2.Push(mustEncodeI(t, bytecode.OpSTART, 0))
	fn2.Push(mustEncodeI(t, bytecode.OpADDI, 7))
	fn2.Push(mustEncodeI(t, bytecode.OpEND, 0))

	fn1 := bytecode.NewFunction("fn1")
	fn1.Push(mustEncodeI(t, bytecode.OpUNCALL, 2))
	fn1.Push(mustEncodeI(t, bytecode.OpEND, 0))

	fn0 := bytecode.NewFunction("fn0")
	fn0.Push(mustEncodeI(t, bytecode.OpCALL, 1))
	fn0.Push(mustEncodeI(t, bytecode.OpEND, 0))

	prog := NewProgram(fn0, fn1, fn2)

	h := heap.New()
	var natPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		p, err := heap.Alloc(sc, value.Nat{N: 20})
		natPtr = value.NewRawPtr(p)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	th := NewThread(prog, fn0, natPtr)

	status := runToCompletion(t, h, th, 16)
	if status != Ok {
		t.Fatalf("status = %s, want Ok", status)
	}
	if got := value.AsNat(natPtr).N; got != 13 {
		t.Errorf("Nat after CALL fn1 -> UNCALL fn2 (ADDI(7) run as SUBI) = %d, want 13", got)
	}
	if th.Cont.Backward {
		t.Errorf("thread direction after unwinding back to fn0 = backward, want forward")
	}
}

// TestProdsReconcileModifiesFirstField enters a product's first field
// via PRODS, mutates it, and lets reconcile's automatic First->Second
// flip fold the result back through PRODE, exercising the reconciliation
// step the dispatch loop otherwise leaves untested.
func TestProdsReconcileModifiesFirstField(t *testing.T) {
	fn := bytecode.NewFunction("prods_reconcile")
	fn.Push(mustEncodeI(t, bytecode.OpPRODS, 2))
	fn.Push(mustEncodeI(t, bytecode.OpADDI, 10))
	fn.Push(mustEncodeI(t, bytecode.OpPRODE, 0))
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var prodPtr, fstPtr, sndPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		fp, err := heap.Alloc(sc, value.Nat{N: 3})
		if err != nil {
			return err
		}
		sp, err := heap.Alloc(sc, value.Nat{N: 4})
		if err != nil {
			return err
		}
		fstPtr, sndPtr = value.NewRawPtr(fp), value.NewRawPtr(sp)
		pp, err := heap.Alloc(sc, value.Product{Fst: value.NewCellPtr(fstPtr), Snd: value.NewCellPtr(sndPtr)})
		prodPtr = value.NewRawPtr(pp)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, prodPtr)

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("PRODS status = %s, want Pending", status)
	}
	if !th.DataReg().Equal(fstPtr) {
		t.Fatalf("after PRODS, data register = %v, want first field %v", th.DataReg(), fstPtr)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("ADDI(10) status = %s, want Pending", status)
	}
	if got := value.AsNat(fstPtr).N; got != 13 {
		t.Fatalf("after ADDI(10) on first field, N = %d, want 13", got)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("PRODE status = %s, want Pending", status)
	}
	if !th.DataReg().Equal(prodPtr) {
		t.Fatalf("after reconcile+PRODE, data register = %v, want original product %v", th.DataReg(), prodPtr)
	}
	p := value.AsProduct(prodPtr)
	if !p.Fst.Get().Equal(fstPtr) || !p.Snd.Get().Equal(sndPtr) {
		t.Errorf("after reconcile+PRODE, fields = (%v,%v), want (%v,%v)", p.Fst.Get(), p.Snd.Get(), fstPtr, sndPtr)
	}

	if status := mustStep(t, h, th); status != Ok {
		t.Fatalf("END status = %s, want Ok", status)
	}
}

// TestSumsLeftBranchSkipsRightBody enters a sum's left branch via SUMS,
// runs the left body, and checks reconcile's automatic jump skips the
// untaken right body and its SUME marker entirely, landing exactly on
// the instruction after them — the reconciliation path spec.md §8
// identifies as highest-risk and previously had no coverage.
func TestSumsLeftBranchSkipsRightBody(t *testing.T) {
	fn := bytecode.NewFunction("sums_left_branch")
	fn.Push(mustEncodeC(t, bytecode.OpSUMS, 1, 2, 1)) // div=1, lc=2, rc=1
	fn.Push(mustEncodeI(t, bytecode.OpADDI, 1))       // left body
	fn.Push(mustEncodeI(t, bytecode.OpADDI, 2))       // left body
	fn.Push(mustEncodeI(t, bytecode.OpADDI, 1000))    // right body (must be skipped)
	fn.Push(mustEncodeI(t, bytecode.OpSUME, 0))       // must be skipped
	fn.Push(mustEncodeI(t, bytecode.OpEND, 0))

	h := heap.New()
	var sumPtr, dataPtr value.RawPtr
	if err := h.Mutate(func(sc *heap.Scope) error {
		np, err := heap.Alloc(sc, value.Nat{N: 7})
		if err != nil {
			return err
		}
		dataPtr = value.NewRawPtr(np)
		sp, err := heap.Alloc(sc, value.Sum{Tag: 0, Data: value.NewCellPtr(dataPtr)})
		sumPtr = value.NewRawPtr(sp)
		return err
	}); err != nil {
		t.Fatal(err)
	}

	prog := NewProgram(fn)
	th := NewThread(prog, fn, sumPtr)

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("SUMS status = %s, want Pending", status)
	}
	if !th.DataReg().Equal(dataPtr) {
		t.Fatalf("after SUMS, data register = %v, want sum payload %v", th.DataReg(), dataPtr)
	}

	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("left-body ADDI(1) status = %s, want Pending", status)
	}
	if status := mustStep(t, h, th); status != Pending {
		t.Fatalf("left-body ADDI(2) status = %s, want Pending", status)
	}
	if got := value.AsNat(dataPtr).N; got != 10 {
		t.Fatalf("after left body, N = %d, want 10", got)
	}

	// reconcile fires here: pops the Left frame, restores the sum, and
	// jumps past the right body and its SUME marker straight to END.
	if status := mustStep(t, h, th); status != Ok {
		t.Fatalf("END status after reconcile jump = %s, want Ok", status)
	}
	if got := value.AsNat(dataPtr).N; got != 10 {
		t.Errorf("right body executed despite reconcile's skip: N = %d, want 10", got)
	}
	if !th.DataReg().Equal(sumPtr) {
		t.Errorf("data register after sum round trip = %v, want original sum %v", th.DataReg(), sumPtr)
	}
}
