package filesys

import (
	"strings"

	"nachos/threads"

	log "github.com/sirupsen/logrus"
)

// Sectors holding the file headers for the free map and the root
// directory, placed where boot can find them.
const (
	FreeMapSector   = 0
	DirectorySector = 1
)

// FreeMapFileSize is the byte length of the free map file for a disk of
// the given size.
func FreeMapFileSize(numSectors int) int {
	return divRoundUp(numSectors, bitsInByte)
}

// FileSystem is the name layer: it maps paths to files and directories,
// and owns the two files kept open for the whole run — the free map and
// the root directory. Metadata operations either commit all their disk
// writes at the end or discard the in-memory copies, leaving the disk
// untouched; they serialise under one coarse lock, so two mutations never
// interleave. The per-file rw gates in the node table cover the data
// path.
type FileSystem struct {
	k    *threads.Kernel
	disk *SynchDisk

	freeMapFile   *OpenFile
	directoryFile *OpenFile
	table         *FileTable
	lock          *threads.Lock
}

// NewFileSystem boots the file system. With format set, the disk is
// assumed blank: headers for the free map and root directory are laid
// down in their well-known sectors and both files get their initial
// contents.
func NewFileSystem(k *threads.Kernel, disk *SynchDisk, format bool) *FileSystem {
	fs := &FileSystem{
		k:     k,
		disk:  disk,
		table: NewFileTable(k),
		lock:  k.NewLock("file system"),
	}
	numSectors := disk.NumSectors()

	if format {
		log.Debug("formatting the file system")
		freeMap := NewBitmap(numSectors)
		directory := NewDirectory(NumDirEntries)
		mapHeader := new(FileHeader)
		dirHeader := new(FileHeader)

		freeMap.Mark(FreeMapSector)
		freeMap.Mark(DirectorySector)
		if !mapHeader.Allocate(freeMap, FreeMapFileSize(numSectors)) {
			log.Fatal("no room for the free map file")
		}
		if !dirHeader.Allocate(freeMap, DirectoryFileSize) {
			log.Fatal("no room for the root directory file")
		}

		// Headers must hit the disk before the files can be opened.
		mapHeader.WriteBack(disk, FreeMapSector)
		dirHeader.WriteBack(disk, DirectorySector)

		fs.freeMapFile = fs.newOpenFile(FreeMapSector)
		fs.directoryFile = fs.newOpenFile(DirectorySector)

		freeMap.WriteBack(fs.freeMapFile)
		directory.WriteBack(fs.directoryFile)
	} else {
		fs.freeMapFile = fs.newOpenFile(FreeMapSector)
		fs.directoryFile = fs.newOpenFile(DirectorySector)
	}
	return fs
}

func (fs *FileSystem) NumSectors() int {
	return fs.disk.NumSectors()
}

func (fs *FileSystem) loadFreeMap() *Bitmap {
	freeMap := NewBitmap(fs.disk.NumSectors())
	freeMap.FetchFrom(fs.freeMapFile)
	return freeMap
}

// writeDirBack flushes a directory to its backing file.
func (fs *FileSystem) writeDirBack(dir *Directory, dirSector int) {
	if dirSector == DirectorySector {
		dir.WriteBack(fs.directoryFile)
	} else {
		dir.WriteBack(fs.newOpenFile(dirSector))
	}
}

// openPath walks every component but the last, each of which must exist
// and be a directory, and returns the parent directory with its sector.
func (fs *FileSystem) openPath(path string) (*Directory, int, bool) {
	sector := DirectorySector
	dir := NewDirectory(NumDirEntries)
	dir.FetchFrom(fs.directoryFile)

	trimmed := strings.TrimPrefix(path, "/")
	comps := strings.Split(trimmed, "/")
	for _, comp := range comps[:len(comps)-1] {
		if comp == "" {
			continue
		}
		s, ok := dir.FindDir(comp)
		if !ok {
			log.Debugf("no directory %q along %q", comp, path)
			return nil, 0, false
		}
		dir.FetchFrom(fs.newOpenFile(s))
		sector = s
	}
	return dir, sector, true
}

// Create makes a file of the given initial size. It fails on a missing
// parent, a duplicate name (file or directory), a full directory, or a
// full disk; nothing reaches the disk unless every step succeeded.
func (fs *FileSystem) Create(path string, initialSize int) bool {
	fs.lock.Acquire()
	defer fs.lock.Release()

	path = fs.checkRoot(path)
	name := getName(path)
	log.Debugf("creating file %q, size %d", path, initialSize)

	dir, dirSector, ok := fs.openPath(path)
	if !ok {
		return false
	}
	if _, found := dir.Find(name); found {
		return false
	}
	if _, found := dir.FindDir(name); found {
		return false
	}

	freeMap := fs.loadFreeMap()
	sector := freeMap.Find()
	if sector == -1 {
		return false
	}
	if !dir.Add(name, sector, false) {
		return false
	}
	header := new(FileHeader)
	if !header.Allocate(freeMap, initialSize) {
		return false
	}

	header.WriteBack(fs.disk, sector)
	freeMap.WriteBack(fs.freeMapFile)
	fs.writeDirBack(dir, dirSector)
	return true
}

// Open returns a fresh handle on the named file, or nil if the path does
// not resolve to a file or a remove is pending on it. Opening bumps the
// shared node's user count.
func (fs *FileSystem) Open(path string) *OpenFile {
	fs.lock.Acquire()
	defer fs.lock.Release()

	path = fs.checkRoot(path)
	name := getName(path)
	log.Debugf("opening %q", path)

	dir, dirSector, ok := fs.openPath(path)
	if !ok {
		return nil
	}
	sector, found := dir.Find(name)
	if !found {
		return nil
	}

	node := fs.table.Find(sector)
	if node == nil {
		node = fs.table.AddFile(name, sector, dirSector)
	}
	if node.removePending {
		return nil
	}
	node.users++
	return fs.newOpenFile(sector)
}

// Remove unlinks a file, or delegates to RemoveDir for a directory. If
// the file is open anywhere the remove is deferred: the entry stays until
// the last handle closes, but no new open will succeed.
func (fs *FileSystem) Remove(path string) bool {
	fs.lock.Acquire()
	defer fs.lock.Release()
	return fs.remove(path)
}

func (fs *FileSystem) remove(path string) bool {
	path = fs.checkRoot(path)
	name := getName(path)
	log.Debugf("removing %q", path)

	dir, dirSector, ok := fs.openPath(path)
	if !ok {
		return false
	}
	sector, found := dir.Find(name)
	if !found {
		if _, isDir := dir.FindDir(name); isDir {
			return fs.removeDir(path)
		}
		return false
	}

	if node := fs.table.Find(sector); node != nil && node.users != 0 {
		log.Debugf("remove of %q deferred: %d users", path, node.users)
		node.removePending = true
		return true
	}

	fs.removeFile(dir, dirSector, name, sector)
	fs.table.Remove(sector)
	return true
}

// removeFile deletes an unopened file: drop the directory entry, free the
// data blocks and the header sector, commit.
func (fs *FileSystem) removeFile(dir *Directory, dirSector int, name string, sector int) {
	header := new(FileHeader)
	header.FetchFrom(fs.disk, sector)

	freeMap := fs.loadFreeMap()
	dir.Remove(name)
	header.Deallocate(freeMap)
	freeMap.Clear(sector)

	freeMap.WriteBack(fs.freeMapFile)
	fs.writeDirBack(dir, dirSector)
}

// reapNode finishes a deferred remove once the last handle is gone. The
// node remembers its parent directory's sector, so no name resolution
// happens here.
func (fs *FileSystem) reapNode(node *FileNode) {
	fs.lock.Acquire()
	defer fs.lock.Release()

	dir := NewDirectory(NumDirEntries)
	if node.parentSector == DirectorySector {
		dir.FetchFrom(fs.directoryFile)
	} else {
		dir.FetchFrom(fs.newOpenFile(node.parentSector))
	}
	fs.removeFile(dir, node.parentSector, node.name, node.sector)
	fs.table.Remove(node.sector)
}

// Expand grows the file whose header lives at sector by additional bytes.
// Both the header and the free map are committed, or neither.
func (fs *FileSystem) Expand(sector, additional int) bool {
	fs.lock.Acquire()
	defer fs.lock.Release()
	log.Debugf("expanding sector %d by %d bytes", sector, additional)

	header := new(FileHeader)
	header.FetchFrom(fs.disk, sector)
	freeMap := fs.loadFreeMap()
	if !header.Extend(freeMap, additional) {
		return false
	}
	freeMap.WriteBack(fs.freeMapFile)
	header.WriteBack(fs.disk, sector)
	return true
}

// MakeDir creates an empty directory.
func (fs *FileSystem) MakeDir(path string) bool {
	fs.lock.Acquire()
	defer fs.lock.Release()

	path = fs.checkRoot(path)
	name := getName(path)
	log.Debugf("making directory %q", path)

	dir, dirSector, ok := fs.openPath(path)
	if !ok {
		return false
	}
	if _, found := dir.Find(name); found {
		return false
	}
	if _, found := dir.FindDir(name); found {
		return false
	}

	freeMap := fs.loadFreeMap()
	sector := freeMap.Find()
	if sector == -1 {
		return false
	}
	if !dir.Add(name, sector, true) {
		return false
	}
	header := new(FileHeader)
	if !header.Allocate(freeMap, DirectoryFileSize) {
		return false
	}

	// A blank table is all zeroes, so zeroed data sectors make the new
	// directory empty.
	for i := 0; i < header.NumSectors(); i++ {
		fs.disk.ClearSector(header.DataSector(i))
	}
	header.WriteBack(fs.disk, sector)
	freeMap.WriteBack(fs.freeMapFile)
	fs.writeDirBack(dir, dirSector)
	return true
}

// RemoveDir deletes a directory and, recursively, everything under it.
// The root cannot be removed.
func (fs *FileSystem) RemoveDir(path string) bool {
	fs.lock.Acquire()
	defer fs.lock.Release()
	return fs.removeDir(path)
}

func (fs *FileSystem) removeDir(path string) bool {
	path = fs.checkRoot(path)
	if path == "/" || path == "" {
		return false
	}
	name := getName(path)
	log.Debugf("removing directory %q", path)

	dir, dirSector, ok := fs.openPath(path)
	if !ok {
		return false
	}
	sector, found := dir.FindDir(name)
	if !found {
		return false
	}

	freeMap := fs.loadFreeMap()

	folder := NewDirectory(NumDirEntries)
	folder.FetchFrom(fs.newOpenFile(sector))
	fs.cleanDirectory(folder, freeMap)

	header := new(FileHeader)
	header.FetchFrom(fs.disk, sector)
	header.Deallocate(freeMap)
	freeMap.Clear(sector)
	dir.Remove(name)

	fs.writeDirBack(dir, dirSector)
	freeMap.WriteBack(fs.freeMapFile)
	return true
}

// cleanDirectory deallocates every entry of a directory, recursing into
// subdirectories. Only the in-memory free map is touched; the caller
// commits.
func (fs *FileSystem) cleanDirectory(dir *Directory, freeMap *Bitmap) {
	for _, entry := range dir.Entries() {
		if entry.IsDir {
			sub := NewDirectory(NumDirEntries)
			sub.FetchFrom(fs.newOpenFile(entry.Sector))
			fs.cleanDirectory(sub, freeMap)
		}
		header := new(FileHeader)
		header.FetchFrom(fs.disk, entry.Sector)
		header.Deallocate(freeMap)
		freeMap.Clear(entry.Sector)
		fs.table.Remove(entry.Sector)
	}
}

// List returns the entries of the directory at path, or nil, false if the
// path does not resolve to one.
func (fs *FileSystem) List(path string) ([]string, bool) {
	fs.lock.Acquire()
	defer fs.lock.Release()

	path = fs.checkRoot(path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	dir, _, ok := fs.openPath(path)
	if !ok {
		return nil, false
	}
	return dir.List(), true
}

// CheckPath reports whether path resolves to a directory.
func (fs *FileSystem) CheckPath(path string) bool {
	fs.lock.Acquire()
	defer fs.lock.Release()

	path = fs.checkRoot(path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	_, _, ok := fs.openPath(path)
	return ok
}

// FreeSectors reports how many sectors remain unallocated.
func (fs *FileSystem) FreeSectors() int {
	fs.lock.Acquire()
	defer fs.lock.Release()
	return fs.loadFreeMap().CountClear()
}
