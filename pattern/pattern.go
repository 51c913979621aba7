// Package pattern implements the memory fault-detection algorithms.
//
// Every test operates on a comparand pair: two equal-length word slices
// backed by disjoint halves of the region under test. A test writes a
// pattern into both halves (or mutates both identically) and then verifies
// that the halves still agree word for word. On healthy memory the halves
// can never diverge, so any disagreement is a detected fault.
//
// All word traffic goes through StoreWord/LoadWord, which guarantee each
// write is independently re-observable from memory before its verify read.
package pattern

import "unsafe"

// A Descriptor names one fault-detection test and its operation. Op runs
// the test over the comparand pair and returns the number of mismatched
// word offsets (0 means the test passed).
type Descriptor struct {
	Name string
	Op   func(a, b []Word) int
}

// Tests is the fixed, ordered test table. The ordinal of a descriptor in
// this table is its bit position in a selection mask. The table is
// process-wide and must not be mutated.
var Tests = []Descriptor{
	{"Random Value", testRandomValue},
	{"Compare XOR", opComparison(func(p *Word, q Word) { StoreWord(p, LoadWord(p)^q) })},
	{"Compare SUB", opComparison(func(p *Word, q Word) { StoreWord(p, LoadWord(p)-q) })},
	{"Compare MUL", opComparison(func(p *Word, q Word) { StoreWord(p, LoadWord(p)*q) })},
	{"Compare DIV", opComparison(func(p *Word, q Word) { StoreWord(p, LoadWord(p)/q) })},
	{"Compare OR", opComparison(func(p *Word, q Word) { StoreWord(p, LoadWord(p)|q) })},
	{"Compare AND", opComparison(func(p *Word, q Word) { StoreWord(p, LoadWord(p)&q) })},
	{"Sequential Increment", testSeqInc},
	{"Solid Bits", testSolidBits},
	{"Block Sequential", testBlockSeq},
	{"Checkerboard", testCheckerboard},
	{"Bit Spread", testBitSpread},
	{"Bit Flip", testBitFlip},
	{"Walking Ones", testWalkingOnes},
	{"Walking Zeroes", testWalkingZeroes},
	{"8-bit Writes", testNarrowWrites(1)},
	{"16-bit Writes", testNarrowWrites(2)},
}

// stuckAddressPasses alternates the address/complement phase so that every
// address line is exercised with both polarities.
const stuckAddressPasses = 16

// StuckAddress writes each word a value derived from its own address and
// verifies it on both an ascending and a descending traversal. If two
// addresses alias the same physical cell (a stuck or shorted address line),
// the later write clobbers the earlier one and verification mismatches.
func StuckAddress(w []Word) int {
	faults := 0
	for j := 0; j < stuckAddressPasses; j++ {
		writeAddrPass(w, j)
		faults += verifyAddrPass(w, j)
	}
	return faults
}

// writeAddrPass stores each word's expected address-derived value for
// phase j.
func writeAddrPass(w []Word, j int) {
	for i := range w {
		StoreWord(&w[i], expectAddr(w, i, j))
	}
}

// verifyAddrPass re-reads the pass on both an ascending and a descending
// traversal and counts mismatches.
func verifyAddrPass(w []Word, j int) int {
	faults := 0
	for i := 0; i < len(w); i++ {
		if LoadWord(&w[i]) != expectAddr(w, i, j) {
			faults++
		}
	}
	for i := len(w) - 1; i >= 0; i-- {
		if LoadWord(&w[i]) != expectAddr(w, i, j) {
			faults++
		}
	}
	return faults
}

func expectAddr(w []Word, i, j int) Word {
	v := Word(uintptr(unsafe.Pointer(&w[i])))
	if (i+j)%2 != 0 {
		v = ^v
	}
	return v
}

// Fill stores v into every word. The engine uses it to reset the region to
// a known state between tests so residue cannot cause false results.
func Fill(w []Word, v Word) {
	for i := range w {
		StoreWord(&w[i], v)
	}
}

func testRandomValue(a, b []Word) int {
	// Write/verify may interleave per word here; each store is still
	// re-observed from memory by the trailing compare pass.
	for i := range a {
		v := randWord()
		StoreWord(&a[i], v)
		StoreWord(&b[i], v)
	}
	return compareWords(a, b)
}

// opComparison builds a comparison test from one in-place word operation.
// The same operand is applied to both halves; since the halves start out
// identical, any post-operation disagreement is operation-dependent
// corruption (bit-line crosstalk and similar).
func opComparison(apply func(p *Word, q Word)) func(a, b []Word) int {
	return func(a, b []Word) int {
		q := randWord()
		if q == 0 {
			q++ // keep division well-defined
		}
		for i := range a {
			apply(&a[i], q)
			apply(&b[i], q)
		}
		return compareWords(a, b)
	}
}

func testSeqInc(a, b []Word) int {
	q := randWord()
	for i := range a {
		v := q + Word(i)
		StoreWord(&a[i], v)
		StoreWord(&b[i], v)
	}
	return compareWords(a, b)
}

// writePair stores v at every matching offset of both halves.
func writePair(a, b []Word, v Word) {
	for i := range a {
		StoreWord(&a[i], v)
		StoreWord(&b[i], v)
	}
}

// writeAlternating stores v at even offsets and ^v at odd offsets of both
// halves.
func writeAlternating(a, b []Word, v Word) {
	for i := range a {
		w := v
		if i%2 != 0 {
			w = ^v
		}
		StoreWord(&a[i], w)
		StoreWord(&b[i], w)
	}
}

// fillAlternating writes the alternating pattern and verifies the halves
// agree.
func fillAlternating(a, b []Word, v Word) int {
	writeAlternating(a, b, v)
	return compareWords(a, b)
}

func testSolidBits(a, b []Word) int {
	faults := 0
	for j := 0; j < WordBits; j++ {
		v := ^Word(0)
		if j%2 != 0 {
			v = 0
		}
		faults += fillAlternating(a, b, v)
	}
	return faults
}

// checkerLow is 0b0101...01 at any word width; its complement is the
// inverse checkerboard.
const checkerLow = ^Word(0) / 3

func testCheckerboard(a, b []Word) int {
	faults := 0
	for j := 0; j < WordBits; j++ {
		v := checkerLow
		if j%2 != 0 {
			v = ^checkerLow
		}
		faults += fillAlternating(a, b, v)
	}
	return faults
}

// byteLanes has the low bit of every byte lane set; multiplying by it
// repeats a byte value across the whole word.
const byteLanes = ^Word(0) / 0xff

func testBlockSeq(a, b []Word) int {
	faults := 0
	for j := 0; j < 256; j++ {
		writePair(a, b, Word(j)*byteLanes)
		faults += compareWords(a, b)
	}
	return faults
}

// walkBit yields the bit position for sub-iteration j of a walking test:
// up through every position, then back down.
func walkBit(j int) uint {
	if j < WordBits {
		return uint(j)
	}
	return uint(2*WordBits - j - 1)
}

func testWalkingOnes(a, b []Word) int {
	faults := 0
	for j := 0; j < 2*WordBits; j++ {
		writePair(a, b, Word(1)<<walkBit(j))
		faults += compareWords(a, b)
	}
	return faults
}

func testWalkingZeroes(a, b []Word) int {
	faults := 0
	for j := 0; j < 2*WordBits; j++ {
		writePair(a, b, ^(Word(1)<<walkBit(j)))
		faults += compareWords(a, b)
	}
	return faults
}

func testBitSpread(a, b []Word) int {
	faults := 0
	for j := 0; j < 2*WordBits; j++ {
		bit := walkBit(j)
		v := Word(1)<<bit | Word(1)<<(bit+2)
		faults += fillAlternating(a, b, v)
	}
	return faults
}

func testBitFlip(a, b []Word) int {
	faults := 0
	for j := 0; j < WordBits; j++ {
		q := Word(1) << uint(j)
		for k := 0; k < 8; k++ {
			q = ^q
			faults += fillAlternating(a, b, q)
		}
	}
	return faults
}
