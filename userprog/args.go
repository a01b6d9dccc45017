package userprog

import (
	"nachos/machine"
)

const (
	MaxArgCount  = 32
	MaxArgLength = 128
)

// SaveArgs copies an argv vector (a null-terminated array of string
// pointers) out of the parent's address space before EXEC tears into the
// child.
func SaveArgs(m *machine.Machine, vaddr int) []string {
	if vaddr == 0 {
		return nil
	}
	var args []string
	for i := 0; i < MaxArgCount; i++ {
		ptr := readMem(m, vaddr+4*i, 4)
		if ptr == 0 {
			break
		}
		s, ok := ReadStringFromUser(m, int(ptr), MaxArgLength)
		if !ok {
			break
		}
		args = append(args, s)
	}
	return args
}

// WriteArgs lays the saved strings onto the child's user stack, followed
// by the pointer array, and returns (argc, argv) for the program's main.
func WriteArgs(m *machine.Machine, args []string) (int32, int32) {
	if len(args) == 0 {
		return 0, 0
	}
	sp := m.ReadRegister(machine.StackReg)

	addrs := make([]int32, len(args))
	for i, arg := range args {
		sp -= int32(len(arg) + 1)
		for j := 0; j < len(arg); j++ {
			writeMem(m, int(sp)+j, 1, int32(arg[j]))
		}
		writeMem(m, int(sp)+len(arg), 1, 0)
		addrs[i] = sp
	}

	sp &^= 3
	sp -= int32(4 * (len(args) + 1))
	argv := sp
	for i, addr := range addrs {
		writeMem(m, int(argv)+4*i, 4, addr)
	}
	writeMem(m, int(argv)+4*len(args), 4, 0)

	// Room for a call frame below the vector.
	m.WriteRegister(machine.StackReg, sp-16)
	return int32(len(args)), argv
}
