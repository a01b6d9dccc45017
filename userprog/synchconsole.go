package userprog

import (
	"io"

	"nachos/machine"
	"nachos/threads"
)

// SynchConsole wraps the interrupt-driven console in synchronous calls,
// one semaphore and one lock per direction so callers take turns.
type SynchConsole struct {
	console   *machine.Console
	readAvail *threads.Semaphore
	writeDone *threads.Semaphore
	readLock  *threads.Lock
	writeLock *threads.Lock
}

func NewSynchConsole(k *threads.Kernel, in io.Reader, out io.Writer) *SynchConsole {
	sc := &SynchConsole{
		readAvail: k.NewSemaphore("console read avail", 0),
		writeDone: k.NewSemaphore("console write done", 0),
		readLock:  k.NewLock("console read"),
		writeLock: k.NewLock("console write"),
	}
	sc.console = machine.NewConsole(k.Ints, in, out,
		func() { sc.readAvail.V() },
		func() { sc.writeDone.V() })
	return sc
}

// GetChar blocks for the next input byte, machine.EOF at end of input.
func (sc *SynchConsole) GetChar() int {
	sc.readLock.Acquire()
	sc.readAvail.P()
	ch := sc.console.GetChar()
	if ch == machine.EOF {
		// End of input is sticky; leave the semaphore raised for the
		// next caller.
		sc.readAvail.V()
	}
	sc.readLock.Release()
	return ch
}

func (sc *SynchConsole) PutChar(b byte) {
	sc.writeLock.Acquire()
	sc.console.PutChar(b)
	sc.writeDone.P()
	sc.writeLock.Release()
}

// GetString fills buf until full or end of input, returning the count.
func (sc *SynchConsole) GetString(buf []byte) int {
	for i := range buf {
		ch := sc.GetChar()
		if ch == machine.EOF {
			return i
		}
		buf[i] = byte(ch)
	}
	return len(buf)
}

func (sc *SynchConsole) PutString(p []byte) int {
	for _, b := range p {
		sc.PutChar(b)
	}
	return len(p)
}
