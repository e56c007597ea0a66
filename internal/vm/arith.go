package vm

import (
	"math/bits"

	ierrors "github.com/dabernado/iris-go/internal/errors"
	"github.com/dabernado/iris-go/internal/value"
)

// Nat arithmetic (spec.md §4.6.1's arithmetic row). Every operation here
// either succeeds as a bijection on uint32 or fails, built the way
// reversible-computing literature builds invertible arithmetic: addition
// and XOR wrap modularly and are always defined; subtraction (SUB/SUBI)
// fails with IntOverflow on underflow instead of wrapping; multiplication
// requires an odd (hence invertible mod 2^32) multiplier, so MUL/DIV by
// an even value fails; rotation and negation are bijective by
// construction.

func natAdd(a, b *value.Nat) { a.N = a.N + b.N }

// natSub is ADD's inverse (ADD mutates the first field as a += b, so
// undoing it means a -= b): it fails with IntOverflow rather than
// wrapping when that would underflow uint32, i.e. when snd (b) is
// greater than fst (a).
func natSub(a, b *value.Nat) error {
	if a.N < b.N {
		return ierrors.New(ierrors.IntOverflow, "SUB: %d - %d underflows uint32", a.N, b.N)
	}
	a.N = a.N - b.N
	return nil
}

func natAddI(n *value.Nat, imm uint32) { n.N += imm }

// natSubI is ADDI's inverse; fails with IntOverflow on underflow rather
// than wrapping, matching natSub's boundary behavior.
func natSubI(n *value.Nat, imm uint32) error {
	if n.N < imm {
		return ierrors.New(ierrors.IntOverflow, "SUBI: %d - %d underflows uint32", n.N, imm)
	}
	n.N -= imm
	return nil
}

func natXor(a, b *value.Nat) { b.N ^= a.N }
func natXorI(n *value.Nat, imm uint32) { n.N ^= imm }

// natNeg two's-complement negates in place; self-inverse for any value.
func natNeg(n *value.Nat) { n.N = -n.N }

func natMul(a, b *value.Nat) error {
	if a.N%2 == 0 {
		return ierrors.New(ierrors.MulOrDivBy0, "MUL: multiplier %d is even, not invertible mod 2^32", a.N)
	}
	b.N = a.N * b.N
	return nil
}

func natDiv(a, b *value.Nat) error {
	if a.N%2 == 0 {
		return ierrors.New(ierrors.MulOrDivBy0, "DIV: multiplier %d is even, not invertible mod 2^32", a.N)
	}
	b.N = b.N * modInverse32(a.N)
	return nil
}

func natMulI(n *value.Nat, imm uint32) error {
	if imm%2 == 0 {
		return ierrors.New(ierrors.MulOrDivBy0, "MULI: immediate %d is even, not invertible mod 2^32", imm)
	}
	n.N *= imm
	return nil
}

func natDivI(n *value.Nat, imm uint32) error {
	if imm%2 == 0 {
		return ierrors.New(ierrors.MulOrDivBy0, "DIVI: immediate %d is even, not invertible mod 2^32", imm)
	}
	n.N *= modInverse32(imm)
	return nil
}

// modInverse32 returns x such that a*x == 1 (mod 2^32), valid for any
// odd a (every odd residue is a unit in the ring Z/2^32Z).
func modInverse32(a uint32) uint32 {
	x := a
	for i := 0; i < 5; i++ {
		x = x * (2 - a*x)
	}
	return x
}

func natRR(n, amt *value.Nat) { n.N = bits.RotateLeft32(n.N, -int(amt.N%32)) }
func natRL(n, amt *value.Nat) { n.N = bits.RotateLeft32(n.N, int(amt.N%32)) }

func natRRI(n *value.Nat, imm uint32) { n.N = bits.RotateLeft32(n.N, -int(imm%32)) }
func natRLI(n *value.Nat, imm uint32) { n.N = bits.RotateLeft32(n.N, int(imm%32)) }

// cswap conditionally swaps a and b's Nat contents when c is nonzero;
// self-inverse regardless of c.
func cswap(c, a, b *value.Nat) {
	if c.N != 0 {
		a.N, b.N = b.N, a.N
	}
}

func cswapI(imm uint32, a, b *value.Nat) {
	if imm != 0 {
		a.N, b.N = b.N, a.N
	}
}

// lessThan computes the Sum tag for an (a,b) comparison: 0 when a < b,
// else 1 (spec.md §4.6.1's LTI). checkLessThan serves the inverse (LTE):
// it checks a tag matches the predicate, else fails.
func lessThan(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return 1
}

func checkLessThan(tag, a, b uint32) error {
	if tag != lessThan(a, b) {
		return ierrors.New(ierrors.TypeError, "LTE: tag %d inconsistent with %d < %d", tag, a, b)
	}
	return nil
}
