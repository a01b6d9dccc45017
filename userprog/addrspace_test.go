package userprog

import (
	"testing"

	"nachos/machine"

	"github.com/google/go-cmp/cmp"
)

// Tests the address space:
//	-> NewAddressSpace, InitRegisters, UpdateTLB, Release

// Partitions:
//	-> image size
//		-> sub-page; multi-page; larger than physical memory
//	-> UpdateTLB
//		-> mapped page; past the space

// Covers:
//	-> image/multi-page load lands byte-for-byte in the right frames
func TestAddressSpaceLoad(tt *testing.T) {
	u := initUut("")

	image := patternBytes(machine.PageSize + 300)
	u.fs.Create("/prog", len(image))
	f := u.fs.Open("/prog")
	f.WriteAt(image, 0)

	space, err := NewAddressSpace(u.mach, u.uk.Frames, f)
	f.Close()
	if err != nil {
		tt.Fatalf("building the space: %v", err)
	}
	defer space.Release()

	if space.NumPages() != 3 { // two code pages + one stack page
		tt.Errorf("space has %d pages, wanted 3", space.NumPages())
	}

	var got []byte
	for vpn := 0; vpn < 2; vpn++ {
		base := space.pageTable[vpn].PhysicalPage * machine.PageSize
		got = append(got, u.mach.MainMemory[base:base+machine.PageSize]...)
	}
	got = got[:len(image)]
	if diff := cmp.Diff(image, got); diff != "" {
		tt.Errorf("loaded image differs (-want +got):\n%s", diff)
	}
}

// Covers:
//	-> updatetlb/mapped, past the space
//	-> registers point at entry and stack top
func TestAddressSpaceRegistersAndTLB(tt *testing.T) {
	u := initUut("")

	u.fs.Create("/prog", 10)
	f := u.fs.Open("/prog")
	space, err := NewAddressSpace(u.mach, u.uk.Frames, f)
	f.Close()
	if err != nil {
		tt.Fatalf("building the space: %v", err)
	}
	defer space.Release()

	space.InitRegisters()
	if got := u.mach.ReadRegister(machine.PCReg); got != 0 {
		tt.Errorf("pc starts at %d", got)
	}
	if got := u.mach.ReadRegister(machine.NextPCReg); got != 4 {
		tt.Errorf("next pc starts at %d", got)
	}
	wantSP := int32(space.NumPages()*machine.PageSize - 16)
	if got := u.mach.ReadRegister(machine.StackReg); got != wantSP {
		tt.Errorf("stack starts at %d, wanted %d", got, wantSP)
	}

	space.RestoreState()
	if !space.UpdateTLB(0) {
		tt.Errorf("refill of a mapped page failed")
	}
	if space.UpdateTLB(space.NumPages()) {
		tt.Errorf("refill past the space succeeded")
	}

	u.mapIdentity()
}

// Covers:
//	-> image/larger than physical memory
//	-> release returns every frame
func TestAddressSpaceExhaustion(tt *testing.T) {
	u := initUut("")

	big := machine.MemorySize
	u.fs.Create("/big", big)
	f := u.fs.Open("/big")
	defer f.Close()

	if _, err := NewAddressSpace(u.mach, u.uk.Frames, f); err == nil {
		tt.Fatalf("a space larger than physical memory was built")
	}
	if got := u.uk.Frames.CountClear(); got != machine.NumPhysPages {
		tt.Errorf("failed build leaked %d frames", machine.NumPhysPages-got)
	}

	u.fs.Create("/small", 10)
	sf := u.fs.Open("/small")
	space, err := NewAddressSpace(u.mach, u.uk.Frames, sf)
	sf.Close()
	if err != nil {
		tt.Fatalf("small space failed: %v", err)
	}
	space.Release()
	if got := u.uk.Frames.CountClear(); got != machine.NumPhysPages {
		tt.Errorf("release left %d frames held", machine.NumPhysPages-got)
	}
}
