package threads

import (
	"nachos/machine"

	log "github.com/sirupsen/logrus"
)

// Synchronisation primitives, all built the same way: disable interrupts,
// inspect state, either proceed or queue the current thread and sleep.
// Misuse (V/P imbalance never shows up here, but releasing a lock one does
// not hold, recursive acquisition, waiting on a condition without its
// lock) is a fatal assertion.

// Semaphore is a non-negative counter. P blocks while the count is zero;
// V wakes at most one waiter.
type Semaphore struct {
	k     *Kernel
	name  string
	value int
	queue []*Thread
}

func (k *Kernel) NewSemaphore(name string, value int) *Semaphore {
	if value < 0 {
		log.Fatalf("semaphore %q created with negative value %d", name, value)
	}
	return &Semaphore{k: k, name: name, value: value}
}

func (s *Semaphore) P() {
	old := s.k.Ints.SetLevel(machine.IntOff)
	for s.value == 0 {
		s.queue = append(s.queue, s.k.current)
		s.k.current.Sleep()
	}
	s.value--
	s.k.Ints.SetLevel(old)
}

func (s *Semaphore) V() {
	old := s.k.Ints.SetLevel(machine.IntOff)
	if len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]
		s.k.Sched.ReadyToRun(t)
	}
	s.value++
	s.k.Ints.SetLevel(old)
}

// Lock is binary and owned: only the acquiring thread may release it, and
// it must not acquire it again while holding it.
type Lock struct {
	k     *Kernel
	name  string
	sem   *Semaphore
	owner *Thread
}

func (k *Kernel) NewLock(name string) *Lock {
	return &Lock{k: k, name: name, sem: k.NewSemaphore(name+" sem", 1)}
}

func (l *Lock) Acquire() {
	if l.HeldByCurrentThread() {
		log.Fatalf("lock %q acquired recursively by %q", l.name, l.owner.name)
	}
	l.sem.P()
	l.owner = l.k.current
}

func (l *Lock) Release() {
	if !l.HeldByCurrentThread() {
		log.Fatalf("lock %q released by thread that does not hold it", l.name)
	}
	l.owner = nil
	l.sem.V()
}

func (l *Lock) HeldByCurrentThread() bool {
	return l.owner == l.k.current
}

// Condition is a condition variable tied to a lock. Wait atomically
// releases the lock and sleeps; Signal wakes one waiter, Broadcast all.
// Woken threads reacquire the lock before Wait returns.
type Condition struct {
	k     *Kernel
	name  string
	lock  *Lock
	queue []*Thread
}

func (k *Kernel) NewCondition(name string, lock *Lock) *Condition {
	return &Condition{k: k, name: name, lock: lock}
}

func (c *Condition) Wait() {
	if !c.lock.HeldByCurrentThread() {
		log.Fatalf("condition %q: Wait without holding %q", c.name, c.lock.name)
	}
	old := c.k.Ints.SetLevel(machine.IntOff)
	c.queue = append(c.queue, c.k.current)
	c.lock.Release()
	c.k.current.Sleep()
	c.k.Ints.SetLevel(old)
	c.lock.Acquire()
}

func (c *Condition) Signal() {
	if !c.lock.HeldByCurrentThread() {
		log.Fatalf("condition %q: Signal without holding %q", c.name, c.lock.name)
	}
	old := c.k.Ints.SetLevel(machine.IntOff)
	if len(c.queue) > 0 {
		t := c.queue[0]
		c.queue = c.queue[1:]
		c.k.Sched.ReadyToRun(t)
	}
	c.k.Ints.SetLevel(old)
}

func (c *Condition) Broadcast() {
	if !c.lock.HeldByCurrentThread() {
		log.Fatalf("condition %q: Broadcast without holding %q", c.name, c.lock.name)
	}
	old := c.k.Ints.SetLevel(machine.IntOff)
	for _, t := range c.queue {
		c.k.Sched.ReadyToRun(t)
	}
	c.queue = nil
	c.k.Ints.SetLevel(old)
}
