package userprog

import (
	"nachos/machine"

	log "github.com/sirupsen/logrus"
)

// User-memory accessors. A first translation failure raises the fault,
// giving the page fault handler one chance to repair the TLB; a second
// failure is impossible for a live thread (an unrepairable fault killed
// it inside the handler), so it is a kernel bug.

func readMem(m *machine.Machine, vaddr, size int) int32 {
	if v, ok := m.ReadMem(vaddr, size); ok {
		return v
	}
	v, ok := m.ReadMem(vaddr, size)
	if !ok {
		log.Fatalf("user read of %#x failed after fault retry", vaddr)
	}
	return v
}

func writeMem(m *machine.Machine, vaddr, size int, value int32) {
	if m.WriteMem(vaddr, size, value) {
		return
	}
	if !m.WriteMem(vaddr, size, value) {
		log.Fatalf("user write of %#x failed after fault retry", vaddr)
	}
}

// ReadStringFromUser copies a NUL-terminated string out of user memory.
// It refuses a null pointer and any string longer than maxLen bytes.
func ReadStringFromUser(m *machine.Machine, vaddr, maxLen int) (string, bool) {
	if vaddr == 0 {
		return "", false
	}
	buf := make([]byte, 0, maxLen)
	for i := 0; i <= maxLen; i++ {
		b := readMem(m, vaddr+i, 1)
		if b == 0 {
			return string(buf), true
		}
		buf = append(buf, byte(b))
	}
	return "", false
}

func ReadBufferFromUser(m *machine.Machine, vaddr, size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(readMem(m, vaddr+i, 1))
	}
	return buf
}

func WriteBufferToUser(m *machine.Machine, vaddr int, data []byte) {
	for i, b := range data {
		writeMem(m, vaddr+i, 1, int32(b))
	}
}
