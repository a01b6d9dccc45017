package filesys

import (
	"nachos/machine"

	log "github.com/sirupsen/logrus"
)

// OpenFile is one opener's view of a file: the header sector, a cached
// copy of the header, and a byte cursor. The cached header is refetched
// before every transfer and by Length, since other handles may have
// extended the file meanwhile.
type OpenFile struct {
	fs           *FileSystem
	sector       int
	hdr          *FileHeader
	seekPosition int
}

func (fs *FileSystem) newOpenFile(sector int) *OpenFile {
	log.Debugf("opening file at sector %d", sector)
	f := &OpenFile{fs: fs, sector: sector, hdr: new(FileHeader)}
	f.hdr.FetchFrom(fs.disk, sector)
	return f
}

func (f *OpenFile) Sector() int { return f.sector }

// Seek moves the cursor. There is no bounds check; reads clamp later.
func (f *OpenFile) Seek(position int) {
	f.seekPosition = position
}

func (f *OpenFile) Read(into []byte) int {
	n := f.ReadAt(into, f.seekPosition)
	f.seekPosition += n
	return n
}

func (f *OpenFile) Write(from []byte) int {
	n := f.WriteAt(from, f.seekPosition)
	f.seekPosition += n
	return n
}

// ReadAt transfers up to len(into) bytes starting at position, returning
// the count actually read (0 at or past end of file). While the transfer
// runs the handle holds the file node's reader side, so no writer can
// interleave.
func (f *OpenFile) ReadAt(into []byte, position int) int {
	node := f.fs.table.Find(f.sector)
	f.hdr.FetchFrom(f.fs.disk, f.sector)

	if node != nil {
		node.readerEnter()
	}
	n := f.readAt(into, position)
	if node != nil {
		node.readerLeave()
	}
	return n
}

// WriteAt transfers len(from) bytes starting at position. A write past
// the current end asks the file system to extend the file first; if that
// fails the write is truncated to the bytes that fit. The transfer runs
// under the file node's writer gate.
func (f *OpenFile) WriteAt(from []byte, position int) int {
	numBytes := len(from)
	if numBytes <= 0 || position < 0 {
		return 0
	}
	length := f.Length()
	if position+numBytes > length {
		if !f.fs.Expand(f.sector, position+numBytes-length) {
			numBytes = length - position
			if numBytes <= 0 {
				return 0
			}
		}
	}

	node := f.fs.table.Find(f.sector)
	f.hdr.FetchFrom(f.fs.disk, f.sector)

	if node != nil {
		node.writerEnter()
	}
	n := f.writeAt(from[:numBytes], position)
	if node != nil {
		node.writerLeave()
	}
	return n
}

// readAt is the raw transfer: read every whole sector the byte window
// touches, then copy the window out.
func (f *OpenFile) readAt(into []byte, position int) int {
	numBytes := len(into)
	fileLength := f.hdr.FileLength()
	if numBytes <= 0 || position < 0 || position >= fileLength {
		return 0
	}
	if position+numBytes > fileLength {
		numBytes = fileLength - position
	}
	log.Debugf("reading %d bytes at %d, from file of length %d", numBytes, position, fileLength)

	firstSector := position / machine.SectorSize
	lastSector := (position + numBytes - 1) / machine.SectorSize
	numSectors := 1 + lastSector - firstSector

	buf := make([]byte, numSectors*machine.SectorSize)
	for i := firstSector; i <= lastSector; i++ {
		off := (i - firstSector) * machine.SectorSize
		f.fs.disk.ReadSector(f.hdr.ByteToSector(i*machine.SectorSize),
			buf[off:off+machine.SectorSize])
	}
	copy(into[:numBytes], buf[position-firstSector*machine.SectorSize:])
	return numBytes
}

// writeAt is the raw transfer. Sectors only partially covered by the
// window — an unaligned first or last — are read first so the untouched
// bytes survive; whole interior sectors are written blind.
func (f *OpenFile) writeAt(from []byte, position int) int {
	numBytes := len(from)
	fileLength := f.hdr.FileLength()
	if numBytes <= 0 || position < 0 || position >= fileLength {
		return 0
	}
	if position+numBytes > fileLength {
		numBytes = fileLength - position
	}
	log.Debugf("writing %d bytes at %d, to file of length %d", numBytes, position, fileLength)

	firstSector := position / machine.SectorSize
	lastSector := (position + numBytes - 1) / machine.SectorSize
	numSectors := 1 + lastSector - firstSector

	buf := make([]byte, numSectors*machine.SectorSize)

	firstAligned := position == firstSector*machine.SectorSize
	lastAligned := position+numBytes == (lastSector+1)*machine.SectorSize

	if !firstAligned {
		f.readAt(buf[:machine.SectorSize], firstSector*machine.SectorSize)
	}
	if !lastAligned && (firstSector != lastSector || firstAligned) {
		f.readAt(buf[(lastSector-firstSector)*machine.SectorSize:],
			lastSector*machine.SectorSize)
	}

	copy(buf[position-firstSector*machine.SectorSize:], from[:numBytes])

	for i := firstSector; i <= lastSector; i++ {
		off := (i - firstSector) * machine.SectorSize
		f.fs.disk.WriteSector(f.hdr.ByteToSector(i*machine.SectorSize),
			buf[off:off+machine.SectorSize])
	}
	return numBytes
}

// Length refetches the header and returns the current byte length; the
// cached copy may be stale if another handle extended the file.
func (f *OpenFile) Length() int {
	f.hdr.FetchFrom(f.fs.disk, f.sector)
	return f.hdr.FileLength()
}

// Close releases this handle's claim on the shared file node. The last
// close of a file with a pending remove deletes it for real.
func (f *OpenFile) Close() {
	log.Debugf("closing file at sector %d", f.sector)
	node := f.fs.table.Find(f.sector)
	if node == nil {
		return
	}
	node.users--
	if node.removePending && node.users <= 0 {
		log.Debugf("removing file %q on last close", node.name)
		f.fs.reapNode(node)
	}
}
