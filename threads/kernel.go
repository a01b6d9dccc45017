// The thread kernel: cooperative threads over an m:1 goroutine scheduler,
// synchronisation primitives built on interrupt disabling, and the process
// table. At most one kernel goroutine runs at any instant; control moves
// only through Scheduler.Run.
package threads

import (
	"nachos/machine"
)

// Kernel is the explicit kernel context: everything the original kept in
// globals. Every subsystem receives it at construction.
type Kernel struct {
	Ints  *machine.Interrupts
	Mach  *machine.Machine // nil unless user programs run
	Sched *Scheduler
	Procs *ProcessTable

	current   *Thread
	toDestroy *Thread
}

// NewKernel builds a kernel and adopts the calling goroutine as its "main"
// thread, already running.
func NewKernel(ints *machine.Interrupts) *Kernel {
	k := &Kernel{
		Ints:  ints,
		Procs: NewProcessTable(),
	}
	k.Sched = &Scheduler{k: k}

	main := &Thread{
		k:        k,
		name:     "main",
		priority: DefaultPriority,
		status:   Running,
		path:     "/",
		baton:    make(chan struct{}, 1),
	}
	main.pid = k.Procs.Add(main)
	k.current = main
	return k
}

func (k *Kernel) Current() *Thread {
	return k.current
}

// finishSwitch is the bookkeeping every thread performs as it comes back
// onto the CPU: reap a finished predecessor, then restore user state. It
// runs both after Scheduler.Run returns and at the top of a brand-new
// thread's first dispatch.
func (k *Kernel) finishSwitch() {
	if d := k.toDestroy; d != nil {
		k.toDestroy = nil
		if d.space != nil {
			d.space.Release()
			d.space = nil
		}
		d.reaped = true
		d.baton <- struct{}{}
	}
	cur := k.current
	if cur.space != nil {
		cur.restoreUserState()
		cur.space.RestoreState()
	}
}
