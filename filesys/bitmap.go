package filesys

import (
	log "github.com/sirupsen/logrus"
)

const bitsInByte = 8

// Bitmap is a packed bit vector, LSB-first within each byte; the free
// sector map is one of these persisted as a regular file. Callers own
// atomicity: fetch, mutate, and either write back or discard.
type Bitmap struct {
	numBits int
	raw     []byte
}

func NewBitmap(numBits int) *Bitmap {
	return &Bitmap{
		numBits: numBits,
		raw:     make([]byte, (numBits+bitsInByte-1)/bitsInByte),
	}
}

func (bm *Bitmap) checkBit(which int) {
	if which < 0 || which >= bm.numBits {
		log.Fatalf("bitmap bit %d out of range [0, %d)", which, bm.numBits)
	}
}

func (bm *Bitmap) Mark(which int) {
	bm.checkBit(which)
	bm.raw[which/bitsInByte] |= 1 << (which % bitsInByte)
}

func (bm *Bitmap) Clear(which int) {
	bm.checkBit(which)
	bm.raw[which/bitsInByte] &^= 1 << (which % bitsInByte)
}

func (bm *Bitmap) Test(which int) bool {
	bm.checkBit(which)
	return bm.raw[which/bitsInByte]&(1<<(which%bitsInByte)) != 0
}

// Find returns the lowest clear bit, marking it, or -1 if all are set.
func (bm *Bitmap) Find() int {
	for i := 0; i < bm.numBits; i++ {
		if !bm.Test(i) {
			bm.Mark(i)
			return i
		}
	}
	return -1
}

func (bm *Bitmap) CountClear() int {
	n := 0
	for i := 0; i < bm.numBits; i++ {
		if !bm.Test(i) {
			n++
		}
	}
	return n
}

func (bm *Bitmap) NumBits() int { return bm.numBits }

// Raw exposes the packed bytes, for persistence and bitwise comparison.
func (bm *Bitmap) Raw() []byte { return bm.raw }

func (bm *Bitmap) FetchFrom(f *OpenFile) {
	if n := f.ReadAt(bm.raw, 0); n != len(bm.raw) {
		log.Fatalf("bitmap fetch read %d of %d bytes", n, len(bm.raw))
	}
}

func (bm *Bitmap) WriteBack(f *OpenFile) {
	if n := f.WriteAt(bm.raw, 0); n != len(bm.raw) {
		log.Fatalf("bitmap flush wrote %d of %d bytes", n, len(bm.raw))
	}
}
