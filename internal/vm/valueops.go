package vm

import (
	"unsafe"

	ierrors "github.com/dabernado/iris-go/internal/errors"
	"github.com/dabernado/iris-go/internal/heap"
	"github.com/dabernado/iris-go/internal/value"
)

// The functions in this file implement the value-shaped combinators of
// spec.md §4.6.1's table (everything except the compositional/context
// ops, which live in vm.go, and Nat arithmetic, which lives in
// arith.go). Each takes the current data register and returns its
// replacement, exactly mirroring the table's "Effect forward" column;
// the inverse column is a separate function, paired up in vm.go's
// dispatch.
//
// Grounded on original_source/src/op.rs naming (zeroi/zeroe/uniti/
// unite/swapp/assrp/asslp/swaps), restated against this package's heap
// and value types.

func zeroi(sc *heap.Scope, x value.RawPtr) (value.RawPtr, error) {
	p, err := heap.Alloc(sc, value.Sum{Tag: 1, Data: value.NewCellPtr(x)})
	return value.NewRawPtr(p), err
}

func zeroe(sc *heap.Scope, x value.RawPtr) (value.RawPtr, error) {
	s := value.AsSum(x)
	inner := s.Data.Get()
	if err := heap.Dealloc[value.Sum](sc, x.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return inner, nil
}

func uniti(sc *heap.Scope, x value.RawPtr) (value.RawPtr, error) {
	up, err := heap.Alloc(sc, value.Unit{})
	if err != nil {
		return value.NilPtr, err
	}
	pp, err := heap.Alloc(sc, value.Product{
		Fst: value.NewCellPtr(value.NewRawPtr(up)),
		Snd: value.NewCellPtr(x),
	})
	return value.NewRawPtr(pp), err
}

func unite(sc *heap.Scope, x value.RawPtr) (value.RawPtr, error) {
	p := value.AsProduct(x)
	u := p.Fst.Get()
	inner := p.Snd.Get()
	if err := heap.Dealloc[value.Unit](sc, u.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	if err := heap.Dealloc[value.Product](sc, x.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return inner, nil
}

// swapp swaps a product's fields in place (spec.md §4.6.1: self-inverse).
func swapp(x value.RawPtr) {
	p := value.AsProduct(x)
	p.Fst, p.Snd = p.Snd, p.Fst
}

// assrp reassociates ((a,b),c) to (a,(b,c)) by rewriting both product
// shells in place, allocating nothing new (spec.md §4.6.1).
func assrp(x value.RawPtr) error {
	outer := value.AsProduct(x)
	innerPtr := outer.Fst.Get()
	inner := value.AsProduct(innerPtr)
	a, b, c := inner.Fst, inner.Snd, outer.Snd
	inner.Fst, inner.Snd = b, c
	outer.Fst, outer.Snd = a, value.NewCellPtr(innerPtr)
	return nil
}

// asslp is assrp's exact inverse: (a,(b,c)) to ((a,b),c).
func asslp(x value.RawPtr) error {
	outer := value.AsProduct(x)
	innerPtr := outer.Snd.Get()
	inner := value.AsProduct(innerPtr)
	a, b, c := outer.Fst, inner.Fst, inner.Snd
	inner.Fst, inner.Snd = a, b
	outer.Fst, outer.Snd = value.NewCellPtr(innerPtr), c
	return nil
}

// swaps rotates a sum's tag by lc/rc (spec.md §4.6.1). The caller
// supplies lc/rc already ordered for the current direction — forward
// passes the instruction's stored (lc, rc); backward passes them
// swapped, since SWAPS is "self-inverse with swapped lc/rc".
func swaps(x value.RawPtr, lc, rc uint32) error {
	s := value.AsSum(x)
	if s.Tag < lc {
		s.Tag += rc
	} else {
		s.Tag -= lc
	}
	return nil
}

// dist implements (Sum<tag,data> x r) -> Sum{tag, (data,r)}, redistributing
// a product over a sum without changing the tag (spec.md §4.6.1: "DIST
// lc,rc splitting at lc"). lc+rc bounds the tag for validation.
func dist(sc *heap.Scope, x value.RawPtr, lc, rc uint32) (value.RawPtr, error) {
	outer := value.AsProduct(x)
	sumPtr := outer.Fst.Get()
	s := value.AsSum(sumPtr)
	if s.Tag >= lc+rc {
		return value.NilPtr, ierrors.New(ierrors.TypeError, "DIST: tag %d out of range [0,%d)", s.Tag, lc+rc)
	}
	r := outer.Snd

	innerP, err := heap.Alloc(sc, value.Product{Fst: s.Data, Snd: r})
	if err != nil {
		return value.NilPtr, err
	}
	resP, err := heap.Alloc(sc, value.Sum{Tag: s.Tag, Data: value.NewCellPtr(value.NewRawPtr(innerP))})
	if err != nil {
		return value.NilPtr, err
	}

	if err := heap.Dealloc[value.Sum](sc, sumPtr.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	if err := heap.Dealloc[value.Product](sc, x.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return value.NewRawPtr(resP), nil
}

// fact is dist's exact inverse: Sum{tag,(d,r)} -> (Sum{tag,d}, r).
func fact(sc *heap.Scope, x value.RawPtr, lc, rc uint32) (value.RawPtr, error) {
	s := value.AsSum(x)
	if s.Tag >= lc+rc {
		return value.NilPtr, ierrors.New(ierrors.TypeError, "FACT: tag %d out of range [0,%d)", s.Tag, lc+rc)
	}
	innerPtr := s.Data.Get()
	inner := value.AsProduct(innerPtr)
	d, r := inner.Fst, inner.Snd

	sumP, err := heap.Alloc(sc, value.Sum{Tag: s.Tag, Data: d})
	if err != nil {
		return value.NilPtr, err
	}
	resP, err := heap.Alloc(sc, value.Product{Fst: value.NewCellPtr(value.NewRawPtr(sumP)), Snd: r})
	if err != nil {
		return value.NilPtr, err
	}

	if err := heap.Dealloc[value.Product](sc, innerPtr.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	if err := heap.Dealloc[value.Sum](sc, x.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return value.NewRawPtr(resP), nil
}

// expn witnesses 0 = T + (-T) for the representative named by a
// function's fractions table entry, replacing the uninhabited Zero in
// the data register with a (T, -T) pair (spec.md §4.6.1).
func expn(sc *heap.Scope, t value.RawPtr) (value.RawPtr, error) {
	negP, err := heap.Alloc(sc, value.Negative{Data: value.NewCellPtr(t)})
	if err != nil {
		return value.NilPtr, err
	}
	prodP, err := heap.Alloc(sc, value.Product{
		Fst: value.NewCellPtr(t),
		Snd: value.NewCellPtr(value.NewRawPtr(negP)),
	})
	return value.NewRawPtr(prodP), err
}

// coln cancels a (T, -T) witness pair back to Zero, represented as
// value.NilPtr (Zero is uninhabited: spec.md §3 says it is never
// instantiated, so there is no heap object to point at). Mismatched
// pairs fail with ExpectedZero, spec.md §4.6.4's name for EXPN/COLN
// misuse.
func coln(sc *heap.Scope, x value.RawPtr) (value.RawPtr, error) {
	p := value.AsProduct(x)
	t := p.Fst.Get()
	negPtr := p.Snd.Get()
	neg := value.AsNegative(negPtr)
	if !neg.Data.Get().Equal(t) {
		return value.NilPtr, ierrors.New(ierrors.ExpectedZero, "COLN: witness pair does not cancel to zero")
	}
	if err := heap.Dealloc[value.Negative](sc, negPtr.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	if err := heap.Dealloc[value.Product](sc, x.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return value.NilPtr, nil
}

// expf expands the fractions-table representative at idx into a
// (Fraction, value) product (spec.md §4.6.1).
func expf(sc *heap.Scope, rep, x value.RawPtr, size uintptr) (value.RawPtr, error) {
	fp, err := heap.Alloc(sc, value.Fraction{Ptr: value.NewCellPtr(rep), Size: uint32(size)})
	if err != nil {
		return value.NilPtr, err
	}
	pp, err := heap.Alloc(sc, value.Product{
		Fst: value.NewCellPtr(value.NewRawPtr(fp)),
		Snd: value.NewCellPtr(x),
	})
	return value.NewRawPtr(pp), err
}

// colf unifies a (Fraction, value) pair by byte-equality and drops it,
// or fails with FracUnification (spec.md §4.6.1, §4.6.4).
func colf(sc *heap.Scope, x value.RawPtr) (value.RawPtr, error) {
	p := value.AsProduct(x)
	fracPtr := p.Fst.Get()
	f := value.AsFraction(fracPtr)
	val := p.Snd.Get()
	rep := f.Ptr.Get()

	if !bytesEqual(rep.Unsafe(), val.Unsafe(), uintptr(f.Size)) {
		return value.NilPtr, ierrors.New(ierrors.FracUnification, "COLF: fraction does not unify with paired value")
	}
	if err := heap.Dealloc[value.Fraction](sc, fracPtr.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	if err := heap.Dealloc[value.Product](sc, x.Unsafe()); err != nil {
		return value.NilPtr, err
	}
	return val, nil
}

func bytesEqual(a, b unsafe.Pointer, n uintptr) bool {
	if n == 0 {
		return true
	}
	as := unsafe.Slice((*byte)(a), n)
	bs := unsafe.Slice((*byte)(b), n)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
