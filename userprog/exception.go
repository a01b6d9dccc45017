package userprog

import (
	"nachos/filesys"
	"nachos/machine"
	"nachos/threads"

	log "github.com/sirupsen/logrus"
)

// System call identifiers, as user programs place them in r2.
const (
	SCHalt = iota
	SCExit
	SCExec
	SCJoin
	SCCreate
	SCOpen
	SCRead
	SCWrite
	SCClose
	SCRemove
)

// Well-known descriptors.
const (
	ConsoleInput  = 0
	ConsoleOutput = 1
)

// UserKernel bundles what the user-mode entry layer needs: the thread
// kernel, the machine, the file system, the console, and the physical
// frame map shared by all address spaces.
type UserKernel struct {
	K       *threads.Kernel
	Mach    *machine.Machine
	FS      *filesys.FileSystem
	Console *SynchConsole
	Frames  *filesys.Bitmap
}

func NewUserKernel(k *threads.Kernel, m *machine.Machine,
	fs *filesys.FileSystem, console *SynchConsole) *UserKernel {
	k.Mach = m
	return &UserKernel{
		K:       k,
		Mach:    m,
		FS:      fs,
		Console: console,
		Frames:  filesys.NewBitmap(machine.NumPhysPages),
	}
}

// SetExceptionHandlers wires this kernel into the machine's exception
// dispatch. Only syscalls, page faults and read-only faults get their own
// handler; everything else is fatal.
func (uk *UserKernel) SetExceptionHandlers() {
	for et := machine.ExceptionType(0); et < machine.NumExceptionTypes; et++ {
		uk.Mach.SetHandler(et, uk.defaultHandler)
	}
	uk.Mach.SetHandler(machine.SyscallException, uk.syscallHandler)
	uk.Mach.SetHandler(machine.PageFaultException, uk.pageFaultHandler)
	uk.Mach.SetHandler(machine.ReadOnlyException, uk.readOnlyHandler)
}

func (uk *UserKernel) defaultHandler(et machine.ExceptionType) {
	log.Fatalf("unexpected user mode exception: %v, arg %d",
		et, uk.Mach.ReadRegister(2))
}

// incrementPC advances past the trapping instruction; without this the
// program would make the same system call forever.
func incrementPC(m *machine.Machine) {
	pc := m.ReadRegister(machine.PCReg)
	m.WriteRegister(machine.PrevPCReg, pc)
	pc = m.ReadRegister(machine.NextPCReg)
	m.WriteRegister(machine.PCReg, pc)
	m.WriteRegister(machine.NextPCReg, pc+4)
}

func (uk *UserKernel) ret(value int32) {
	uk.Mach.WriteRegister(2, value)
}

// syscallHandler decodes the calling convention — id in r2, arguments in
// r4..r6, result back in r2 — and dispatches.
func (uk *UserKernel) syscallHandler(_ machine.ExceptionType) {
	m := uk.Mach
	cur := uk.K.Current()

	scid := m.ReadRegister(2)
	arg1 := m.ReadRegister(4)
	arg2 := m.ReadRegister(5)
	arg3 := m.ReadRegister(6)

	switch scid {
	case SCHalt:
		log.Debug("syscall: halt, initiated by user program")
		uk.K.Ints.Halt()

	case SCCreate:
		name, ok := ReadStringFromUser(m, int(arg1), filesys.FileNameMaxLen)
		log.Debugf("syscall: create %q", name)
		if ok && uk.FS.Create(name, 0) {
			uk.ret(1)
		} else {
			uk.ret(0)
		}

	case SCRemove:
		name, ok := ReadStringFromUser(m, int(arg1), filesys.FileNameMaxLen)
		log.Debugf("syscall: remove %q", name)
		if ok && uk.FS.Remove(name) {
			uk.ret(1)
		} else {
			uk.ret(0)
		}

	case SCOpen:
		r := int32(-1)
		if name, ok := ReadStringFromUser(m, int(arg1), filesys.FileNameMaxLen); ok {
			log.Debugf("syscall: open %q", name)
			if f := uk.FS.Open(name); f != nil {
				r = int32(cur.AddFile(f))
				if r == -1 {
					f.Close()
				}
			}
		}
		uk.ret(r)

	case SCClose:
		id := int(arg1)
		log.Debugf("syscall: close %d", id)
		if cur.IsOpenFile(id) {
			cur.RemoveFile(id).Close()
		}
		uk.ret(-1)

	case SCRead:
		buffer, size, id := int(arg1), int(arg2), int(arg3)
		r := int32(-1)
		if size > 0 {
			switch {
			case id == ConsoleInput:
				buf := make([]byte, size)
				n := uk.Console.GetString(buf)
				WriteBufferToUser(m, buffer, buf[:n])
				r = int32(n)
			case cur.IsOpenFile(id):
				f := cur.GetFile(id).(*filesys.OpenFile)
				buf := make([]byte, size)
				n := f.Read(buf)
				WriteBufferToUser(m, buffer, buf[:n])
				r = int32(n)
			}
		}
		uk.ret(r)

	case SCWrite:
		buffer, size, id := int(arg1), int(arg2), int(arg3)
		r := int32(-1)
		if size > 0 {
			switch {
			case id == ConsoleOutput:
				buf := ReadBufferFromUser(m, buffer, size)
				r = int32(uk.Console.PutString(buf))
			case cur.IsOpenFile(id):
				f := cur.GetFile(id).(*filesys.OpenFile)
				buf := ReadBufferFromUser(m, buffer, size)
				r = int32(f.Write(buf))
			}
		}
		uk.ret(r)

	case SCExit:
		log.Debugf("syscall: exit %d", arg1)
		uk.ret(arg1)
		cur.Finish(int(arg1))

	case SCJoin:
		pid := int(arg1)
		r := int32(-1)
		if t, ok := uk.K.Procs.Get(pid); ok {
			log.Debugf("syscall: join pid %d", pid)
			r = int32(t.Join())
		} else {
			log.Debugf("syscall: join of unknown pid %d", pid)
		}
		uk.ret(r)

	case SCExec:
		r := int32(-1)
		if name, ok := ReadStringFromUser(m, int(arg1), filesys.FileNameMaxLen); ok {
			log.Debugf("syscall: exec %q, join flag %d", name, arg3)
			if exec := uk.FS.Open(name); exec != nil {
				args := SaveArgs(m, int(arg2))
				space, err := NewAddressSpace(m, uk.Frames, exec)
				exec.Close()
				if err == nil {
					child := uk.K.NewThread("child "+name, arg3 != 0)
					child.SetSpace(space)
					r = int32(child.Pid())
					child.Fork(uk.runProgram, args)
				} else {
					log.Debugf("exec %q: %v", name, err)
				}
			}
		}
		uk.ret(r)

	default:
		log.Fatalf("unexpected system call: id %d", scid)
	}

	incrementPC(m)
}

// runProgram is the body of every exec'd thread: set up registers and
// arguments in the new space, then drop into user mode.
func (uk *UserKernel) runProgram(arg interface{}) {
	space := uk.K.Current().Space().(*AddressSpace)
	space.InitRegisters()
	space.RestoreState()

	args, _ := arg.([]string)
	argc, argv := WriteArgs(uk.Mach, args)
	uk.Mach.WriteRegister(4, argc)
	uk.Mach.WriteRegister(5, argv)

	uk.Mach.Run()
}

// pageFaultHandler repairs a TLB miss from the current space's page
// table; an unresolvable fault kills the thread.
func (uk *UserKernel) pageFaultHandler(_ machine.ExceptionType) {
	vpn := int(uk.Mach.ReadRegister(machine.BadVAddrReg)) / machine.PageSize
	cur := uk.K.Current()

	space, _ := cur.Space().(*AddressSpace)
	if space == nil || !space.UpdateTLB(vpn) {
		log.Debugf("unresolvable page fault at vpn %d: killing thread %q", vpn, cur.Name())
		cur.Finish(-1)
	}
}

func (uk *UserKernel) readOnlyHandler(_ machine.ExceptionType) {
	cur := uk.K.Current()
	log.Debugf("write to read-only page: killing thread %q", cur.Name())
	cur.Finish(-1)
}
