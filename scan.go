package recordconv

import (
	"encoding/binary"
	"math/bits"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Bulk scanning for the next structural byte. The CSV parser spends most of
// its time skipping over plain field bytes, so the hot loop tests eight
// bytes per iteration using the classic SWAR zero-byte trick instead of one
// byte at a time. CPUs without cheap unaligned 64-bit loads take the scalar
// loop instead.

var (
	wideScanOnce sync.Once
	wideScanOK   bool
)

// wideScanEnabled reports whether the word-at-a-time scan path is active.
// Initialization is lazy and idempotent.
func wideScanEnabled() bool {
	wideScanOnce.Do(func() {
		wideScanOK = cpuid.CPU.Supports(cpuid.SSE2) || cpuid.CPU.Supports(cpuid.ASIMD)
	})
	return wideScanOK
}

const (
	swarOnes  = 0x0101010101010101
	swarHighs = 0x8080808080808080
)

// structuralSet matches up to four target bytes. The CSV parser uses
// {delimiter, CR, LF} outside quotes and {quote, backslash} inside them.
type structuralSet struct {
	words [4]uint64 // each target byte broadcast into a 64-bit word
	n     int
	table [256]bool
}

func newStructuralSet(targets ...byte) *structuralSet {
	if len(targets) > 4 {
		panic("recordconv: structural set holds at most four bytes")
	}
	s := &structuralSet{n: len(targets)}
	for i, t := range targets {
		s.words[i] = swarOnes * uint64(t)
		s.table[t] = true
	}
	return s
}

// contains reports whether b is one of the target bytes.
func (s *structuralSet) contains(b byte) bool {
	return s.table[b]
}

// index returns the offset of the first target byte in p, or -1.
func (s *structuralSet) index(p []byte) int {
	i := 0
	if wideScanEnabled() {
		for ; i+8 <= len(p); i += 8 {
			w := binary.LittleEndian.Uint64(p[i:])
			var hit uint64
			for t := 0; t < s.n; t++ {
				x := w ^ s.words[t]
				hit |= (x - swarOnes) &^ x & swarHighs
			}
			if hit != 0 {
				return i + bits.TrailingZeros64(hit)/8
			}
		}
	}
	for ; i < len(p); i++ {
		if s.table[p[i]] {
			return i
		}
	}
	return -1
}
