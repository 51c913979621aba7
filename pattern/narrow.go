package pattern

import "encoding/binary"

// testNarrowWrites builds a random-value test that fills one half through
// sub-word stores of the given width (1 or 2 bytes) and the other half
// through full-word stores. Faults that only appear at narrow bus widths
// show up as a disagreement between the halves. Both assignments of
// narrow/wide to the halves are exercised.
//
// The narrow stores themselves are plain; the verifying LoadWord pass
// orders after them, so they cannot be satisfied from a register.
func testNarrowWrites(width int) func(a, b []Word) int {
	return func(a, b []Word) int {
		faults := 0
		for attempt := 0; attempt < 2; attempt++ {
			narrow, wide := a, b
			if attempt%2 != 0 {
				narrow, wide = b, a
			}
			nb := bytesOf(narrow)
			for i := range wide {
				v := randWord()
				storeNarrow(nb[i*WordSize:(i+1)*WordSize], v, width)
				StoreWord(&wide[i], v)
			}
			faults += compareWords(a, b)
		}
		return faults
	}
}

// storeNarrow writes v into dst using only width-byte store instructions,
// preserving the word's native in-memory layout.
func storeNarrow(dst []byte, v Word, width int) {
	src := nativeWordBytes(v)
	switch width {
	case 1:
		for k := 0; k < WordSize; k++ {
			dst[k] = src[k]
		}
	case 2:
		for k := 0; k < WordSize; k += 2 {
			binary.NativeEndian.PutUint16(dst[k:], binary.NativeEndian.Uint16(src[k:]))
		}
	default:
		panic("pattern: unsupported narrow store width")
	}
}
