package filesys

import (
	"testing"

	"nachos/machine"
	"nachos/threads"

	"github.com/google/go-cmp/cmp"
	"github.com/tchajed/goose/machine/disk"
)

// Tests the file header api:
//	-> Allocate, Extend, Deallocate, ByteToSector, FetchFrom, WriteBack

// Partitions:
//	-> Allocate
//		-> size 0; < 1 sector; several sectors; too big; disk full
//	-> Extend
//		-> within the last sector; adding sectors; failing
//	-> ByteToSector
//		-> first byte; sector boundary; last byte

func initDisk(numSectors int) (*threads.Kernel, *SynchDisk) {
	ints := machine.NewInterrupts()
	k := threads.NewKernel(ints)
	dev := machine.NewDisk(ints, disk.NewMemDisk(uint64(numSectors)))
	return k, NewSynchDisk(k, dev)
}

// Covers:
//	-> allocate/size 0, several sectors
//	-> bytetosector/first, boundary, last
func TestHeaderAllocate(tt *testing.T) {
	freeMap := NewBitmap(64)

	empty := new(FileHeader)
	if !empty.Allocate(freeMap, 0) {
		tt.Fatalf("allocating an empty file failed")
	}
	if empty.NumSectors() != 0 || empty.FileLength() != 0 {
		tt.Errorf("empty file got %d sectors, length %d", empty.NumSectors(), empty.FileLength())
	}

	h := new(FileHeader)
	size := 2*machine.SectorSize + 10
	if !h.Allocate(freeMap, size) {
		tt.Fatalf("allocation failed")
	}
	if h.NumSectors() != 3 {
		tt.Errorf("got %d sectors, wanted 3", h.NumSectors())
	}
	if h.FileLength() != size {
		tt.Errorf("got length %d, wanted %d", h.FileLength(), size)
	}
	if got := h.ByteToSector(0); got != h.DataSector(0) {
		tt.Errorf("first byte maps to %d", got)
	}
	if got := h.ByteToSector(machine.SectorSize); got != h.DataSector(1) {
		tt.Errorf("boundary byte maps to %d", got)
	}
	if got := h.ByteToSector(size - 1); got != h.DataSector(2) {
		tt.Errorf("last byte maps to %d", got)
	}
}

// Covers:
//	-> allocate/disk full
func TestHeaderAllocateFullDisk(tt *testing.T) {
	freeMap := NewBitmap(2)
	h := new(FileHeader)
	if h.Allocate(freeMap, 3*machine.SectorSize) {
		tt.Errorf("allocation succeeded on a 2-sector disk")
	}
	if freeMap.CountClear() != 2 {
		tt.Errorf("failed allocation consumed sectors")
	}
}

// Covers:
//	-> extend/within the last sector, adding sectors
func TestHeaderExtend(tt *testing.T) {
	freeMap := NewBitmap(64)
	h := new(FileHeader)
	if !h.Allocate(freeMap, 100) {
		tt.Fatalf("allocation failed")
	}

	if !h.Extend(freeMap, 50) {
		tt.Fatalf("extension within the sector failed")
	}
	if h.FileLength() != 150 || h.NumSectors() != 1 {
		tt.Errorf("got length %d in %d sectors", h.FileLength(), h.NumSectors())
	}

	if !h.Extend(freeMap, machine.SectorSize) {
		tt.Fatalf("extension across a sector failed")
	}
	if h.NumSectors() != 2 {
		tt.Errorf("got %d sectors, wanted 2", h.NumSectors())
	}
}

// Covers:
//	-> extend/failing leaves the header and map untouched
func TestHeaderExtendFails(tt *testing.T) {
	freeMap := NewBitmap(1)
	h := new(FileHeader)
	if !h.Allocate(freeMap, machine.SectorSize) {
		tt.Fatalf("allocation failed")
	}
	if h.Extend(freeMap, machine.SectorSize) {
		tt.Errorf("extension succeeded with no free sectors")
	}
	if h.FileLength() != machine.SectorSize || h.NumSectors() != 1 {
		tt.Errorf("failed extension modified the header")
	}
}

// Covers:
//	-> deallocate returns every sector
func TestHeaderDeallocate(tt *testing.T) {
	freeMap := NewBitmap(64)
	h := new(FileHeader)
	h.Allocate(freeMap, 3*machine.SectorSize)
	if freeMap.CountClear() != 64-3 {
		tt.Fatalf("allocation took %d sectors", 64-freeMap.CountClear())
	}
	h.Deallocate(freeMap)
	if freeMap.CountClear() != 64 {
		tt.Errorf("deallocation left %d sectors marked", 64-freeMap.CountClear())
	}
}

// Covers:
//	-> fetchfrom/writeback round trip through the disk
func TestHeaderPersistence(tt *testing.T) {
	_, sd := initDisk(32)

	freeMap := NewBitmap(32)
	h := new(FileHeader)
	h.Allocate(freeMap, machine.SectorSize+5)
	h.WriteBack(sd, 7)

	loaded := new(FileHeader)
	loaded.FetchFrom(sd, 7)
	if loaded.FileLength() != h.FileLength() || loaded.NumSectors() != h.NumSectors() {
		tt.Errorf("round trip changed the header")
	}
	want := []int{h.DataSector(0), h.DataSector(1)}
	got := []int{loaded.DataSector(0), loaded.DataSector(1)}
	if diff := cmp.Diff(want, got); diff != "" {
		tt.Errorf("round trip changed the sector list (-want +got):\n%s", diff)
	}
}
