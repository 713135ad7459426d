package seq

import "math/bits"

// bitmap is a fixed-size set of slot numbers.
type bitmap struct {
	words []uint64
	size  int64
}

func newBitmap(size int64) *bitmap {
	return &bitmap{words: make([]uint64, (size+63)/64), size: size}
}

func (b *bitmap) set(i int64)   { b.words[i/64] |= 1 << uint(i%64) }
func (b *bitmap) clear(i int64) { b.words[i/64] &^= 1 << uint(i%64) }

func (b *bitmap) isSet(i int64) bool {
	return b.words[i/64]&(1<<uint(i%64)) != 0
}

// firstClear returns the lowest unset slot, or -1 when the bitmap is full.
func (b *bitmap) firstClear() int64 {
	for w, word := range b.words {
		if word == allOnes {
			continue
		}
		i := int64(w)*64 + int64(bits.TrailingZeros64(^word))
		if i >= b.size {
			return -1
		}
		return i
	}
	return -1
}

func (b *bitmap) count() int {
	n := 0
	for _, word := range b.words {
		n += bits.OnesCount64(word)
	}
	return n
}

const allOnes = ^uint64(0)
