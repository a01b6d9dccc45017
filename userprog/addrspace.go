// The user-mode entry layer: address spaces over paged simulated memory,
// the syscall and fault dispatch that bridges user programs to the thread
// kernel and the file system, and the synchronous console.
package userprog

import (
	"errors"

	"nachos/filesys"
	"nachos/machine"

	log "github.com/sirupsen/logrus"
)

const UserStackSize = 1024

func divRoundUp(n, d int) int {
	return (n + d - 1) / d
}

// AddressSpace is a user program's paged memory image: a flat executable
// loaded at virtual address 0, followed by the stack, with physical
// frames taken from a shared frame map. Translations are filled into the
// TLB on demand by the page fault handler.
type AddressSpace struct {
	mach   *machine.Machine
	frames *filesys.Bitmap

	pageTable []machine.TranslationEntry
	numPages  int
	tlbVictim int
	released  bool
}

// NewAddressSpace builds a space from an open executable image. Fails if
// physical memory cannot hold code plus stack.
func NewAddressSpace(mach *machine.Machine, frames *filesys.Bitmap,
	exec *filesys.OpenFile) (*AddressSpace, error) {
	size := exec.Length()
	numPages := divRoundUp(size, machine.PageSize) +
		divRoundUp(UserStackSize, machine.PageSize)
	if numPages > frames.CountClear() {
		return nil, errors.New("not enough physical memory")
	}
	log.Debugf("address space: %d pages for a %d byte image", numPages, size)

	space := &AddressSpace{
		mach:      mach,
		frames:    frames,
		pageTable: make([]machine.TranslationEntry, numPages),
		numPages:  numPages,
	}
	for vpn := 0; vpn < numPages; vpn++ {
		frame := frames.Find()
		space.pageTable[vpn] = machine.TranslationEntry{
			VirtualPage:  vpn,
			PhysicalPage: frame,
			Valid:        true,
		}
		base := frame * machine.PageSize
		for i := base; i < base+machine.PageSize; i++ {
			mach.MainMemory[i] = 0
		}
	}

	for pos := 0; pos < size; pos += machine.PageSize {
		n := machine.PageSize
		if size-pos < n {
			n = size - pos
		}
		base := space.pageTable[pos/machine.PageSize].PhysicalPage * machine.PageSize
		exec.ReadAt(mach.MainMemory[base:base+n], pos)
	}
	return space, nil
}

func (s *AddressSpace) NumPages() int { return s.numPages }

// InitRegisters points the machine at the start of the program with the
// stack at the top of the space.
func (s *AddressSpace) InitRegisters() {
	for reg := 0; reg < machine.NumTotalRegs; reg++ {
		s.mach.WriteRegister(reg, 0)
	}
	s.mach.WriteRegister(machine.PCReg, 0)
	s.mach.WriteRegister(machine.NextPCReg, 4)
	s.mach.WriteRegister(machine.StackReg, int32(s.numPages*machine.PageSize-16))
}

// SaveState has nothing to do: translations live in the page table and
// the TLB is refilled on demand after every switch.
func (s *AddressSpace) SaveState() {}

// RestoreState invalidates the TLB so stale translations from the
// previous space cannot be used.
func (s *AddressSpace) RestoreState() {
	s.mach.InvalidateTLB()
}

// UpdateTLB resolves a faulting virtual page against the page table and
// installs it, evicting round-robin. False means the fault cannot be
// repaired and the thread must die.
func (s *AddressSpace) UpdateTLB(vpn int) bool {
	if vpn < 0 || vpn >= s.numPages || !s.pageTable[vpn].Valid {
		return false
	}
	s.mach.TLB[s.tlbVictim] = s.pageTable[vpn]
	s.tlbVictim = (s.tlbVictim + 1) % machine.TLBSize
	return true
}

// Release returns the physical frames. Called when the owning thread is
// reaped.
func (s *AddressSpace) Release() {
	if s.released {
		return
	}
	s.released = true
	for _, e := range s.pageTable {
		s.frames.Clear(e.PhysicalPage)
	}
}
