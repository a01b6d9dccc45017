package threads

// ProcessTable maps process ids to live threads. Ids are handed out
// monotonically from 1 and never reused within a run. An entry leaves the
// table when a non-joinable thread finishes, or when the joiner of a
// joinable thread has consumed the exit value.
type ProcessTable struct {
	procs   map[int]*Thread
	nextPid int
}

func NewProcessTable() *ProcessTable {
	return &ProcessTable{procs: make(map[int]*Thread), nextPid: 1}
}

func (pt *ProcessTable) Add(t *Thread) int {
	pid := pt.nextPid
	pt.nextPid++
	pt.procs[pid] = t
	return pid
}

func (pt *ProcessTable) Get(pid int) (*Thread, bool) {
	t, ok := pt.procs[pid]
	return t, ok
}

func (pt *ProcessTable) HasKey(pid int) bool {
	_, ok := pt.procs[pid]
	return ok
}

func (pt *ProcessTable) Remove(pid int) {
	delete(pt.procs, pid)
}
