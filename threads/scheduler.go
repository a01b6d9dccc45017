package threads

import (
	"runtime"

	"nachos/machine"

	log "github.com/sirupsen/logrus"
)

// Scheduler keeps the ready threads in three priority bands: band 0 for
// priority below DefaultPriority, band 1 for exactly DefaultPriority,
// band 2 above it. Within a band threads stay sorted by priority, ties in
// insertion order. Selection scans bands from 2 down to 0 and takes the
// head of the first non-empty one.
//
// These routines assume interrupts are already disabled; on a uniprocessor
// that is mutual exclusion. Locks cannot be used here: waiting on one
// would re-enter the scheduler.
type Scheduler struct {
	k     *Kernel
	ready [3][]*Thread
}

func band(priority int) int {
	switch {
	case priority < DefaultPriority:
		return 0
	case priority == DefaultPriority:
		return 1
	default:
		return 2
	}
}

// ReadyToRun marks a thread ready and inserts it into its band.
func (s *Scheduler) ReadyToRun(t *Thread) {
	if s.k.Ints.Level() != machine.IntOff {
		log.Fatal("ReadyToRun with interrupts enabled")
	}
	log.Debugf("putting thread %q with priority %d on ready list", t.name, t.priority)
	t.status = Ready

	b := band(t.priority)
	q := s.ready[b]
	i := len(q)
	for j, other := range q {
		if other.priority > t.priority {
			i = j
			break
		}
	}
	q = append(q, nil)
	copy(q[i+1:], q[i:])
	q[i] = t
	s.ready[b] = q
}

// FindNextToRun removes and returns the next thread to schedule, or nil if
// every band is empty.
func (s *Scheduler) FindNextToRun() *Thread {
	for b := 2; b >= 0; b-- {
		if len(s.ready[b]) > 0 {
			t := s.ready[b][0]
			s.ready[b] = s.ready[b][1:]
			return t
		}
	}
	return nil
}

// Run dispatches the CPU to next. The calling thread's goroutine parks on
// its baton and does not return from Run until some later dispatch hands
// the baton back. The caller must already have moved itself off the
// running state (to Ready or Blocked) and disabled interrupts.
func (s *Scheduler) Run(next *Thread) {
	k := s.k
	old := k.current

	if old.space != nil {
		old.saveUserState()
		old.space.SaveState()
	}

	k.current = next
	next.status = Running
	log.Debugf("switching from thread %q to thread %q", old.name, next.name)

	next.baton <- struct{}{}
	<-old.baton

	// Back on this thread's stack. A finished thread is woken exactly once
	// more, to die.
	if old.reaped {
		runtime.Goexit()
	}
	log.Debugf("now in thread %q", k.current.name)
	k.finishSwitch()
}
