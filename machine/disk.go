package machine

import (
	"github.com/tchajed/goose/machine/disk"
	log "github.com/sirupsen/logrus"
)

// SectorSize is the unit of disk I/O. The backing store fixes it.
const SectorSize = int(disk.BlockSize)

// Disk simulates an asynchronous sector device on top of a goose block
// store (in-memory for tests, a file for real disk images). A request
// transfers immediately but completion is signalled through an interrupt,
// so callers must wait for the handler before reusing the device.
//
// Only one request may be outstanding; SynchDisk enforces that with a lock.
type Disk struct {
	ints    *Interrupts
	backing disk.Disk
	handler func()
	busy    bool
}

func NewDisk(ints *Interrupts, backing disk.Disk) *Disk {
	if disk.BlockSize != uint64(SectorSize) {
		log.Fatalf("backing store block size %d, want %d", disk.BlockSize, SectorSize)
	}
	return &Disk{ints: ints, backing: backing}
}

// SetHandler installs the completion interrupt handler.
func (d *Disk) SetHandler(handler func()) {
	d.handler = handler
}

func (d *Disk) NumSectors() int {
	return int(d.backing.Size())
}

func (d *Disk) checkRequest(sector int, buf []byte) {
	if d.handler == nil {
		log.Fatal("disk request with no completion handler installed")
	}
	if d.busy {
		log.Fatal("disk request while a request is outstanding")
	}
	if sector < 0 || sector >= d.NumSectors() {
		log.Fatalf("disk sector %d out of range [0, %d)", sector, d.NumSectors())
	}
	if len(buf) != SectorSize {
		log.Fatalf("disk transfer of %d bytes, want %d", len(buf), SectorSize)
	}
}

func (d *Disk) StartRead(sector int, into []byte) {
	d.checkRequest(sector, into)
	d.busy = true
	copy(into, d.backing.Read(uint64(sector)))
	log.Debugf("disk: read sector %d", sector)
	d.ints.Post(func() {
		d.busy = false
		d.handler()
	})
}

func (d *Disk) StartWrite(sector int, from []byte) {
	d.checkRequest(sector, from)
	d.busy = true
	blk := make(disk.Block, SectorSize)
	copy(blk, from)
	d.backing.Write(uint64(sector), blk)
	log.Debugf("disk: wrote sector %d", sector)
	d.ints.Post(func() {
		d.busy = false
		d.handler()
	})
}
