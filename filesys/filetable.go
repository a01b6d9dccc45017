package filesys

import (
	"nachos/threads"

	log "github.com/sirupsen/logrus"
)

// FileNode is the shared, per-header-sector state behind every open
// handle on the same file: how many handles exist, whether a remove is
// pending, and the reader-preferring rw gates that serialise writers
// against readers.
type FileNode struct {
	name         string
	sector       int
	parentSector int

	users         int
	removePending bool

	readers     int
	readersGate *threads.Semaphore
	writerGate  *threads.Semaphore
}

// readerEnter admits a reader; the first reader in locks writers out.
func (n *FileNode) readerEnter() {
	n.readersGate.P()
	n.readers++
	if n.readers == 1 {
		n.writerGate.P()
	}
	n.readersGate.V()
}

// readerLeave retires a reader; the last one out readmits writers.
func (n *FileNode) readerLeave() {
	n.readersGate.P()
	n.readers--
	if n.readers == 0 {
		n.writerGate.V()
	}
	n.readersGate.V()
}

func (n *FileNode) writerEnter() {
	n.writerGate.P()
}

func (n *FileNode) writerLeave() {
	n.writerGate.V()
}

// FileTable maps header sectors to their shared nodes, kernel-wide.
type FileTable struct {
	k     *threads.Kernel
	nodes map[int]*FileNode
}

func NewFileTable(k *threads.Kernel) *FileTable {
	return &FileTable{k: k, nodes: make(map[int]*FileNode)}
}

func (ft *FileTable) AddFile(name string, sector, parentSector int) *FileNode {
	if _, ok := ft.nodes[sector]; ok {
		log.Fatalf("file node for sector %d added twice", sector)
	}
	n := &FileNode{
		name:         name,
		sector:       sector,
		parentSector: parentSector,
		readersGate:  ft.k.NewSemaphore(name+" readers", 1),
		writerGate:   ft.k.NewSemaphore(name+" writer", 1),
	}
	ft.nodes[sector] = n
	return n
}

func (ft *FileTable) Find(sector int) *FileNode {
	return ft.nodes[sector]
}

func (ft *FileTable) Remove(sector int) {
	delete(ft.nodes, sector)
}

func (n *FileNode) Users() int          { return n.users }
func (n *FileNode) RemovePending() bool { return n.removePending }
