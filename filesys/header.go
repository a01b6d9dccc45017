package filesys

import (
	"encoding/binary"

	"nachos/machine"

	log "github.com/sirupsen/logrus"
)

// NumDirect is how many direct sector pointers fit in a header after the
// two length words; a header is exactly one sector.
const NumDirect = (machine.SectorSize - 8) / 4

const MaxFileSize = (NumDirect - 1) * machine.SectorSize

// FileHeader is the on-disk inode: byte length, sector count, and a
// direct sector list. There is no indirection; a legal header always has
// numSectors < NumDirect.
type FileHeader struct {
	numBytes    uint32
	numSectors  uint32
	dataSectors [NumDirect]uint32
}

func divRoundUp(n, d int) int {
	return (n + d - 1) / d
}

// Allocate claims sectors for a file of the given size from the free map.
// On failure (too large, or not enough free sectors) the header is
// untouched and the caller must discard its free map copy.
func (h *FileHeader) Allocate(freeMap *Bitmap, fileSize int) bool {
	sectors := divRoundUp(fileSize, machine.SectorSize)
	if sectors >= NumDirect {
		return false
	}
	if freeMap.CountClear() < sectors {
		return false
	}
	for i := 0; i < sectors; i++ {
		h.dataSectors[i] = uint32(freeMap.Find())
	}
	h.numBytes = uint32(fileSize)
	h.numSectors = uint32(sectors)
	return true
}

// Extend grows the file by additional bytes, appending data sectors as
// needed. On failure nothing is modified.
func (h *FileHeader) Extend(freeMap *Bitmap, additional int) bool {
	if additional <= 0 {
		return true
	}
	newBytes := int(h.numBytes) + additional
	newSectors := divRoundUp(newBytes, machine.SectorSize)
	if newSectors >= NumDirect {
		return false
	}
	delta := newSectors - int(h.numSectors)
	if freeMap.CountClear() < delta {
		return false
	}
	for i := int(h.numSectors); i < newSectors; i++ {
		h.dataSectors[i] = uint32(freeMap.Find())
	}
	h.numBytes = uint32(newBytes)
	h.numSectors = uint32(newSectors)
	return true
}

// Deallocate returns every data sector to the free map. The header's own
// sector is the caller's to clear.
func (h *FileHeader) Deallocate(freeMap *Bitmap) {
	for i := 0; i < int(h.numSectors); i++ {
		s := int(h.dataSectors[i])
		if !freeMap.Test(s) {
			log.Fatalf("deallocating sector %d that is not in use", s)
		}
		freeMap.Clear(s)
	}
}

func (h *FileHeader) FetchFrom(disk *SynchDisk, sector int) {
	buf := make([]byte, machine.SectorSize)
	disk.ReadSector(sector, buf)
	h.numBytes = binary.LittleEndian.Uint32(buf[0:])
	h.numSectors = binary.LittleEndian.Uint32(buf[4:])
	for i := 0; i < NumDirect; i++ {
		h.dataSectors[i] = binary.LittleEndian.Uint32(buf[8+4*i:])
	}
}

func (h *FileHeader) WriteBack(disk *SynchDisk, sector int) {
	buf := make([]byte, machine.SectorSize)
	binary.LittleEndian.PutUint32(buf[0:], h.numBytes)
	binary.LittleEndian.PutUint32(buf[4:], h.numSectors)
	for i := 0; i < NumDirect; i++ {
		binary.LittleEndian.PutUint32(buf[8+4*i:], h.dataSectors[i])
	}
	disk.WriteSector(sector, buf)
}

// ByteToSector maps a byte offset within the file to the disk sector
// holding it.
func (h *FileHeader) ByteToSector(offset int) int {
	idx := offset / machine.SectorSize
	if idx < 0 || idx >= int(h.numSectors) {
		log.Fatalf("byte offset %d outside the file's %d sectors", offset, h.numSectors)
	}
	return int(h.dataSectors[idx])
}

func (h *FileHeader) FileLength() int { return int(h.numBytes) }

func (h *FileHeader) NumSectors() int { return int(h.numSectors) }

// DataSector returns the i'th entry of the direct list.
func (h *FileHeader) DataSector(i int) int {
	if i < 0 || i >= int(h.numSectors) {
		log.Fatalf("data sector index %d outside the file's %d sectors", i, h.numSectors)
	}
	return int(h.dataSectors[i])
}
