package bytecode

import ierrors "github.com/dabernado/iris-go/internal/errors"

// Bit layout constants (spec.md §6). LSB = bit 0.
const (
	opcodeBits = 6

	// I-form: one 26-bit immediate in bits [31:6].
	iFieldShift = opcodeBits
	iFieldBits  = 26
	MaxITypeField = 1<<iFieldBits - 1 // 2^26 - 1

	// S-form: lc in bits [18:6] (13 bits), rc in bits [31:19] (13 bits).
	sLCShift    = opcodeBits
	sLCBits     = 13
	sRCShift    = sLCShift + sLCBits
	sRCBits     = 13
	MaxSTypeField = 1<<sLCBits - 1 // 2^13 - 1

	// C-form: div in bits [13:6] (8 bits), lc in bits [21:14] (8 bits),
	// rc in bits [29:22] (8 bits).
	cDivShift  = opcodeBits
	cDivBits   = 8
	cLCShift   = cDivShift + cDivBits
	cLCBits    = 8
	cRCShift   = cLCShift + cLCBits
	cRCBits    = 8
	MaxCTypeDiv   = 1<<cDivBits - 1 // 2^8 - 1
	MaxCTypeField = 1<<cLCBits - 1  // 2^8 - 1
)

func fits(v uint32, bits uint) bool {
	return v <= (uint32(1)<<bits - 1)
}

// EncodeI packs an I-form instruction: opcode plus one 26-bit immediate.
func EncodeI(op OpCode, imm uint32) (Word, error) {
	if !fits(imm, iFieldBits) {
		return 0, ierrors.New(ierrors.IntOverflow, "immediate %d exceeds MAX_ITYPE_FIELD (%d)", imm, MaxITypeField)
	}
	return Word(op) | Word(imm)<<iFieldShift, nil
}

// DecodeI extracts the 26-bit immediate from an I-form instruction.
func DecodeI(w Word) uint32 {
	return uint32(w>>iFieldShift) & (1<<iFieldBits - 1)
}

// EncodeS packs an S-form instruction: opcode plus two 13-bit fields
// (lc, rc), used by sum-shaped combinators to name the sizes of the left
// and right constructor sets (spec.md §4.5).
func EncodeS(op OpCode, lc, rc uint32) (Word, error) {
	if !fits(lc, sLCBits) || !fits(rc, sRCBits) {
		return 0, ierrors.New(ierrors.IntOverflow, "lc/rc (%d,%d) exceed MAX_STYPE_FIELD (%d)", lc, rc, MaxSTypeField)
	}
	return Word(op) | Word(lc)<<sLCShift | Word(rc)<<sRCShift, nil
}

// DecodeS extracts (lc, rc) from an S-form instruction.
func DecodeS(w Word) (lc, rc uint32) {
	lc = uint32(w>>sLCShift) & (1<<sLCBits - 1)
	rc = uint32(w>>sRCShift) & (1<<sRCBits - 1)
	return
}

// EncodeC packs a C-form instruction: opcode plus (div, lc, rc), each an
// 8-bit positional field (spec.md §6).
func EncodeC(op OpCode, div, lc, rc uint32) (Word, error) {
	if !fits(div, cDivBits) || !fits(lc, cLCBits) || !fits(rc, cRCBits) {
		return 0, ierrors.New(ierrors.IntOverflow, "div/lc/rc (%d,%d,%d) exceed C-form field limits", div, lc, rc)
	}
	return Word(op) | Word(div)<<cDivShift | Word(lc)<<cLCShift | Word(rc)<<cRCShift, nil
}

// DecodeC extracts (div, lc, rc) from a C-form instruction.
func DecodeC(w Word) (div, lc, rc uint32) {
	div = uint32(w>>cDivShift) & (1<<cDivBits - 1)
	lc = uint32(w>>cLCShift) & (1<<cLCBits - 1)
	rc = uint32(w>>cRCShift) & (1<<cRCBits - 1)
	return
}
