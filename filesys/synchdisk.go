// The file system: a synchronous disk layer, a persistent free-sector
// bitmap, one-sector file headers with direct block lists, fixed-capacity
// directories, open-file handles with a shared per-sector node table, and
// the name layer tying them together.
package filesys

import (
	"nachos/machine"
	"nachos/threads"
)

// SynchDisk turns the asynchronous sector device into synchronous calls:
// issue the request, then P a semaphore that the completion interrupt Vs.
// The lock admits one outstanding request at a time.
type SynchDisk struct {
	disk      *machine.Disk
	lock      *threads.Lock
	semaphore *threads.Semaphore
}

func NewSynchDisk(k *threads.Kernel, dev *machine.Disk) *SynchDisk {
	sd := &SynchDisk{
		disk:      dev,
		lock:      k.NewLock("synch disk"),
		semaphore: k.NewSemaphore("disk request", 0),
	}
	dev.SetHandler(func() { sd.semaphore.V() })
	return sd
}

func (sd *SynchDisk) NumSectors() int {
	return sd.disk.NumSectors()
}

func (sd *SynchDisk) ReadSector(sector int, into []byte) {
	sd.lock.Acquire()
	sd.disk.StartRead(sector, into)
	sd.semaphore.P()
	sd.lock.Release()
}

func (sd *SynchDisk) WriteSector(sector int, from []byte) {
	sd.lock.Acquire()
	sd.disk.StartWrite(sector, from)
	sd.semaphore.P()
	sd.lock.Release()
}

func (sd *SynchDisk) ClearSector(sector int) {
	sd.WriteSector(sector, make([]byte, machine.SectorSize))
}
