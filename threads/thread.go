package threads

import (
	"nachos/machine"

	log "github.com/sirupsen/logrus"
)

const DefaultPriority = 20

// MaxOpenFiles bounds a thread's descriptor table. Ids 0 and 1 are the
// console and never occupy a slot.
const MaxOpenFiles = 16

type Status int

const (
	JustCreated Status = iota
	Ready
	Running
	Blocked
)

func (s Status) String() string {
	switch s {
	case JustCreated:
		return "just created"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// File is what a descriptor table slot holds. The file system's open-file
// handles satisfy it; Close releases the handle's claim on the shared
// file node.
type File interface {
	Close()
}

// UserSpace is the slice of an address space the thread kernel needs:
// save/restore around context switches and frame release on destruction.
type UserSpace interface {
	SaveState()
	RestoreState()
	Release()
}

type Thread struct {
	k *Kernel

	name     string
	priority int
	status   Status
	pid      int
	path     string

	baton  chan struct{}
	reaped bool

	joinable bool
	joined   bool
	joinSem  *Semaphore
	exitVal  int

	space    UserSpace
	userRegs [machine.NumTotalRegs]int32

	files [MaxOpenFiles]File
}

// NewThread allocates a thread in the JustCreated state and registers it
// in the process table. joinable permits exactly one later Join.
func (k *Kernel) NewThread(name string, joinable bool) *Thread {
	t := &Thread{
		k:        k,
		name:     name,
		priority: DefaultPriority,
		status:   JustCreated,
		path:     "/",
		baton:    make(chan struct{}, 1),
		joinable: joinable,
	}
	if joinable {
		t.joinSem = k.NewSemaphore(name+" join", 0)
	}
	t.pid = k.Procs.Add(t)
	return t
}

func (t *Thread) Name() string   { return t.name }
func (t *Thread) Pid() int       { return t.pid }
func (t *Thread) Status() Status { return t.status }
func (t *Thread) ExitValue() int { return t.exitVal }

func (t *Thread) Priority() int { return t.priority }

// SetPriority fixes the scheduling priority. It may only be called before
// the thread is forked; calling it afterwards is a fatal error.
func (t *Thread) SetPriority(priority int) {
	if t.status != JustCreated {
		log.Fatalf("thread %q: priority set after first fork", t.name)
	}
	if priority < 0 {
		log.Fatalf("thread %q: negative priority %d", t.name, priority)
	}
	t.priority = priority
}

// Path is the thread's current directory, consulted for relative paths.
func (t *Thread) Path() string        { return t.path }
func (t *Thread) SetPath(path string) { t.path = path }

func (t *Thread) Space() UserSpace         { return t.space }
func (t *Thread) SetSpace(space UserSpace) { t.space = space }

func (t *Thread) saveUserState() {
	m := t.k.Mach
	for i := 0; i < machine.NumTotalRegs; i++ {
		t.userRegs[i] = m.ReadRegister(i)
	}
}

func (t *Thread) restoreUserState() {
	m := t.k.Mach
	for i := 0; i < machine.NumTotalRegs; i++ {
		m.WriteRegister(i, t.userRegs[i])
	}
}

// Fork starts the thread running fn(arg). The goroutine parks until the
// scheduler first dispatches it; if fn returns, the thread finishes with
// exit value 0.
func (t *Thread) Fork(fn func(arg interface{}), arg interface{}) {
	if t.status != JustCreated {
		log.Fatalf("thread %q forked twice", t.name)
	}
	log.Debugf("forking thread %q with priority %d", t.name, t.priority)

	go func() {
		<-t.baton
		if t.reaped {
			return
		}
		t.k.finishSwitch()
		t.k.Ints.SetLevel(machine.IntOn)
		fn(arg)
		t.Finish(0)
	}()

	old := t.k.Ints.SetLevel(machine.IntOff)
	t.k.Sched.ReadyToRun(t)
	t.k.Ints.SetLevel(old)
}

// Yield surrenders the CPU if another thread is ready.
func (t *Thread) Yield() {
	k := t.k
	if t != k.current {
		log.Fatalf("thread %q yielding while not running", t.name)
	}
	old := k.Ints.SetLevel(machine.IntOff)
	if next := k.Sched.FindNextToRun(); next != nil {
		k.Sched.ReadyToRun(t)
		k.Sched.Run(next)
	}
	k.Ints.SetLevel(old)
}

// Sleep blocks the thread. The caller must have disabled interrupts and
// put the thread on some wait set first; nothing here will wake it.
func (t *Thread) Sleep() {
	k := t.k
	if t != k.current {
		log.Fatalf("thread %q sleeping while not running", t.name)
	}
	if k.Ints.Level() != machine.IntOff {
		log.Fatal("Sleep with interrupts enabled")
	}
	log.Debugf("sleeping thread %q", t.name)

	t.status = Blocked
	next := k.Sched.FindNextToRun()
	for next == nil {
		k.Ints.Idle()
		next = k.Sched.FindNextToRun()
	}
	k.Sched.Run(next)
}

// Finish terminates the calling thread with the given exit value. Open
// descriptors are released, the exit value is published to any joiner, and
// the thread sleeps forever; the next thread to run frees its carcass (a
// thread cannot free itself while still on its own stack).
func (t *Thread) Finish(exitVal int) {
	k := t.k
	if t != k.current {
		log.Fatalf("thread %q finishing while not running", t.name)
	}
	log.Debugf("finishing thread %q with exit value %d", t.name, exitVal)

	for id := 2; id < MaxOpenFiles; id++ {
		if f := t.files[id]; f != nil {
			t.files[id] = nil
			f.Close()
		}
	}

	t.exitVal = exitVal
	if t.joinable {
		t.joinSem.V()
	} else {
		k.Procs.Remove(t.pid)
	}

	k.Ints.SetLevel(machine.IntOff)
	k.toDestroy = t
	t.Sleep()
	log.Fatalf("thread %q ran after finishing", t.name)
}

// Join blocks until the target thread finishes and returns its exit value.
// Only threads forked joinable may be joined, and only once; the exit
// value is consumed and the pid retired.
func (t *Thread) Join() int {
	cur := t.k.current
	if t == cur {
		log.Fatalf("thread %q joining itself", t.name)
	}
	if !t.joinable {
		log.Fatalf("thread %q is not joinable", t.name)
	}
	if t.joined {
		log.Fatalf("thread %q joined twice", t.name)
	}
	log.Debugf("thread %q joining thread %q", cur.name, t.name)

	t.joinSem.P()
	t.joined = true
	t.k.Procs.Remove(t.pid)
	return t.exitVal
}

// Descriptor table. AddFile hands out the smallest free id at or above 2.

func (t *Thread) AddFile(f File) int {
	if f == nil {
		return -1
	}
	for id := 2; id < MaxOpenFiles; id++ {
		if t.files[id] == nil {
			t.files[id] = f
			return id
		}
	}
	return -1
}

func (t *Thread) IsOpenFile(id int) bool {
	return id >= 2 && id < MaxOpenFiles && t.files[id] != nil
}

func (t *Thread) GetFile(id int) File {
	if !t.IsOpenFile(id) {
		return nil
	}
	return t.files[id]
}

func (t *Thread) RemoveFile(id int) File {
	if !t.IsOpenFile(id) {
		return nil
	}
	f := t.files[id]
	t.files[id] = nil
	return f
}
