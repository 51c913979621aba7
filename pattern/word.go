package pattern

import (
	"encoding/binary"
	"math/rand"
	"sync/atomic"
	"unsafe"
)

// Word is the machine's natural access width. All pattern arithmetic and
// comparison happens at this granularity.
type Word = uintptr

// WordBits is the width of a Word in bits, WordSize in bytes.
const (
	WordBits = 32 << (^Word(0) >> 63)
	WordSize = WordBits / 8
)

// StoreWord writes v to the given word so that it is committed to memory
// before any following LoadWord. Test buffers must behave as uncached: a
// verify read may never be satisfied from a register copy of the value
// that was written, or a faulty cell would go unnoticed.
func StoreWord(p *Word, v Word) {
	atomic.StoreUintptr(p, v)
}

// LoadWord re-reads the given word from memory.
func LoadWord(p *Word) Word {
	return atomic.LoadUintptr(p)
}

// WordsOf reinterprets a byte region as a word slice. The region must be
// word-aligned; callers obtain it from a page-aligned mapping, which is
// always sufficient.
func WordsOf(b []byte) []Word {
	if len(b) < WordSize {
		return nil
	}
	return unsafe.Slice((*Word)(unsafe.Pointer(&b[0])), len(b)/WordSize)
}

// bytesOf is the inverse view, used by the narrow-width write tests.
func bytesOf(w []Word) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&w[0])), len(w)*WordSize)
}

// randWord returns a uniformly random word.
func randWord() Word {
	return Word(rand.Uint64())
}

// nativeWordBytes renders v in the word's in-memory byte order, so narrow
// stores reassemble into exactly v when read back at full width.
func nativeWordBytes(v Word) [WordSize]byte {
	var buf [WordSize]byte
	if WordSize == 8 {
		binary.NativeEndian.PutUint64(buf[:], uint64(v))
	} else {
		binary.NativeEndian.PutUint32(buf[:], uint32(v))
	}
	return buf
}

// compareWords counts the offsets at which the two halves disagree. Every
// read goes through LoadWord so a flipped cell cannot be masked by a stale
// register or cache-resident copy.
func compareWords(a, b []Word) int {
	faults := 0
	for i := range a {
		if LoadWord(&a[i]) != LoadWord(&b[i]) {
			faults++
		}
	}
	return faults
}
