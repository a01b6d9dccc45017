package filesys

import (
	"bytes"
	"encoding/binary"

	log "github.com/sirupsen/logrus"
)

const (
	FileNameMaxLen = 32
	NumDirEntries  = 64

	// inUse, isDir, sector (i32 LE), NUL-padded name
	dirEntrySize = 1 + 1 + 4 + FileNameMaxLen + 1

	// DirectoryFileSize is the length of a serialised directory; every
	// directory file is exactly this long.
	DirectoryFileSize = dirEntrySize * NumDirEntries
)

type DirEntry struct {
	InUse  bool
	IsDir  bool
	Sector int
	Name   string
}

// Directory is a fixed-capacity table of name → header-sector entries,
// itself stored as a regular file. Names among in-use entries are unique
// across both files and subdirectories.
type Directory struct {
	table []DirEntry
}

func NewDirectory(size int) *Directory {
	return &Directory{table: make([]DirEntry, size)}
}

func (d *Directory) FetchFrom(f *OpenFile) {
	raw := make([]byte, dirEntrySize*len(d.table))
	if n := f.ReadAt(raw, 0); n != len(raw) {
		log.Fatalf("directory fetch read %d of %d bytes", n, len(raw))
	}
	for i := range d.table {
		e := raw[i*dirEntrySize:]
		name := e[6 : 6+FileNameMaxLen+1]
		if j := bytes.IndexByte(name, 0); j >= 0 {
			name = name[:j]
		}
		d.table[i] = DirEntry{
			InUse:  e[0] != 0,
			IsDir:  e[1] != 0,
			Sector: int(int32(binary.LittleEndian.Uint32(e[2:]))),
			Name:   string(name),
		}
	}
}

func (d *Directory) WriteBack(f *OpenFile) {
	raw := make([]byte, dirEntrySize*len(d.table))
	for i, entry := range d.table {
		e := raw[i*dirEntrySize:]
		if entry.InUse {
			e[0] = 1
		}
		if entry.IsDir {
			e[1] = 1
		}
		binary.LittleEndian.PutUint32(e[2:], uint32(int32(entry.Sector)))
		copy(e[6:6+FileNameMaxLen], entry.Name)
	}
	if n := f.WriteAt(raw, 0); n != len(raw) {
		log.Fatalf("directory flush wrote %d of %d bytes", n, len(raw))
	}
}

func (d *Directory) find(name string, isDir bool) int {
	for i, e := range d.table {
		if e.InUse && e.IsDir == isDir && e.Name == name {
			return i
		}
	}
	return -1
}

// Find locates a file entry by name.
func (d *Directory) Find(name string) (int, bool) {
	if i := d.find(name, false); i >= 0 {
		return d.table[i].Sector, true
	}
	return 0, false
}

// FindDir locates a subdirectory entry by name.
func (d *Directory) FindDir(name string) (int, bool) {
	if i := d.find(name, true); i >= 0 {
		return d.table[i].Sector, true
	}
	return 0, false
}

// Add inserts an entry into the first free slot. It fails on a duplicate
// name (of either kind), an over-long name, or a full table.
func (d *Directory) Add(name string, sector int, isDir bool) bool {
	if name == "" || len(name) > FileNameMaxLen {
		return false
	}
	if d.find(name, false) >= 0 || d.find(name, true) >= 0 {
		return false
	}
	for i := range d.table {
		if !d.table[i].InUse {
			d.table[i] = DirEntry{InUse: true, IsDir: isDir, Sector: sector, Name: name}
			return true
		}
	}
	return false
}

// Remove clears the entry with the given name, of either kind, and
// returns its header sector.
func (d *Directory) Remove(name string) (int, bool) {
	i := d.find(name, false)
	if i < 0 {
		i = d.find(name, true)
	}
	if i < 0 {
		return 0, false
	}
	sector := d.table[i].Sector
	d.table[i] = DirEntry{}
	return sector, true
}

// Entries returns the in-use entries in table order.
func (d *Directory) Entries() []DirEntry {
	var entries []DirEntry
	for _, e := range d.table {
		if e.InUse {
			entries = append(entries, e)
		}
	}
	return entries
}

// List returns the in-use names in table order, directories with a
// trailing slash.
func (d *Directory) List() []string {
	var names []string
	for _, e := range d.table {
		if !e.InUse {
			continue
		}
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		names = append(names, name)
	}
	return names
}
