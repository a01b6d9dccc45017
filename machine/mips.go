package machine

import (
	log "github.com/sirupsen/logrus"
)

// Simulated MIPS processor state: registers, paged physical memory and a
// software-managed TLB. Instruction interpretation is not part of the
// core; Machine.Run hands control to a pluggable executor so the driver
// can attach a real interpreter and tests can script user programs.

const (
	StackReg    = 29
	HiReg       = 32
	LoReg       = 33
	PCReg       = 34
	NextPCReg   = 35
	PrevPCReg   = 36
	LoadReg     = 37
	LoadValReg  = 38
	BadVAddrReg = 39

	NumTotalRegs = 40
)

const (
	PageSize     = SectorSize
	NumPhysPages = 32
	MemorySize   = NumPhysPages * PageSize
	TLBSize      = 4
)

type ExceptionType int

const (
	NoException ExceptionType = iota
	SyscallException
	PageFaultException
	ReadOnlyException
	BusErrorException
	AddressErrorException
	OverflowException
	IllegalInstrException

	NumExceptionTypes
)

func (et ExceptionType) String() string {
	switch et {
	case NoException:
		return "no exception"
	case SyscallException:
		return "syscall"
	case PageFaultException:
		return "page fault"
	case ReadOnlyException:
		return "write to read-only page"
	case BusErrorException:
		return "bus error"
	case AddressErrorException:
		return "address error"
	case OverflowException:
		return "arithmetic overflow"
	case IllegalInstrException:
		return "illegal instruction"
	default:
		return "unknown exception"
	}
}

// TranslationEntry maps one virtual page to one physical frame.
type TranslationEntry struct {
	VirtualPage  int
	PhysicalPage int
	Valid        bool
	ReadOnly     bool
	Use          bool
	Dirty        bool
}

type Machine struct {
	MainMemory []byte
	TLB        [TLBSize]TranslationEntry

	// Executor runs user instructions when Run is called. The core never
	// sets it; the driver or a test does.
	Executor func(*Machine)

	registers [NumTotalRegs]int32
	handlers  [NumExceptionTypes]func(ExceptionType)
}

func NewMachine() *Machine {
	return &Machine{MainMemory: make([]byte, MemorySize)}
}

func (m *Machine) ReadRegister(reg int) int32 {
	if reg < 0 || reg >= NumTotalRegs {
		log.Fatalf("read of register %d out of range", reg)
	}
	return m.registers[reg]
}

func (m *Machine) WriteRegister(reg int, value int32) {
	if reg < 0 || reg >= NumTotalRegs {
		log.Fatalf("write of register %d out of range", reg)
	}
	m.registers[reg] = value
}

func (m *Machine) SetHandler(et ExceptionType, handler func(ExceptionType)) {
	m.handlers[et] = handler
}

// RaiseException records the faulting address and transfers control to the
// kernel's handler for the exception type.
func (m *Machine) RaiseException(et ExceptionType, badVAddr int32) {
	m.registers[BadVAddrReg] = badVAddr
	handler := m.handlers[et]
	if handler == nil {
		log.Fatalf("exception %v with no handler installed", et)
	}
	handler(et)
}

// InvalidateTLB drops every translation, forcing refills against the
// current address space.
func (m *Machine) InvalidateTLB() {
	for i := range m.TLB {
		m.TLB[i].Valid = false
	}
}

// translate runs the virtual address through the TLB.
func (m *Machine) translate(vaddr int, writing bool) (int, ExceptionType) {
	if vaddr < 0 {
		return 0, AddressErrorException
	}
	vpn := vaddr / PageSize
	offset := vaddr % PageSize
	for i := range m.TLB {
		e := &m.TLB[i]
		if !e.Valid || e.VirtualPage != vpn {
			continue
		}
		if writing && e.ReadOnly {
			return 0, ReadOnlyException
		}
		if e.PhysicalPage < 0 || e.PhysicalPage >= NumPhysPages {
			return 0, BusErrorException
		}
		e.Use = true
		if writing {
			e.Dirty = true
		}
		return e.PhysicalPage*PageSize + offset, NoException
	}
	return 0, PageFaultException
}

// ReadMem reads size bytes (1, 2 or 4, little-endian) of user memory. On a
// translation failure it raises the exception and reports false; if the
// handler repaired the TLB the caller may retry.
func (m *Machine) ReadMem(vaddr, size int) (int32, bool) {
	paddr, et := m.translate(vaddr, false)
	if et != NoException {
		m.RaiseException(et, int32(vaddr))
		return 0, false
	}
	var value int32
	switch size {
	case 1:
		value = int32(m.MainMemory[paddr])
	case 2:
		value = int32(m.MainMemory[paddr]) | int32(m.MainMemory[paddr+1])<<8
	case 4:
		value = int32(m.MainMemory[paddr]) | int32(m.MainMemory[paddr+1])<<8 |
			int32(m.MainMemory[paddr+2])<<16 | int32(m.MainMemory[paddr+3])<<24
	default:
		log.Fatalf("ReadMem of %d bytes", size)
	}
	return value, true
}

func (m *Machine) WriteMem(vaddr, size int, value int32) bool {
	paddr, et := m.translate(vaddr, true)
	if et != NoException {
		m.RaiseException(et, int32(vaddr))
		return false
	}
	switch size {
	case 1:
		m.MainMemory[paddr] = byte(value)
	case 2:
		m.MainMemory[paddr] = byte(value)
		m.MainMemory[paddr+1] = byte(value >> 8)
	case 4:
		m.MainMemory[paddr] = byte(value)
		m.MainMemory[paddr+1] = byte(value >> 8)
		m.MainMemory[paddr+2] = byte(value >> 16)
		m.MainMemory[paddr+3] = byte(value >> 24)
	default:
		log.Fatalf("WriteMem of %d bytes", size)
	}
	return true
}

// Run executes user instructions until the program traps for good.
func (m *Machine) Run() {
	if m.Executor == nil {
		log.Fatal("machine Run with no executor attached")
	}
	m.Executor(m)
}
