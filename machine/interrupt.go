// The simulated hardware the kernel runs on. Nothing in this package
// knows about threads or the file system; it only raises interrupts.
package machine

import (
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

type IntStatus int

const (
	IntOff IntStatus = iota
	IntOn
)

// Interrupts is the machine's interrupt engine. The kernel side runs on
// exactly one goroutine at a time, so the enable/disable level is a plain
// flag; only the pending queue is shared with device goroutines and needs
// a host mutex. Handlers posted by devices run with interrupts off, at the
// next enable or when the machine idles.
type Interrupts struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	sources int

	level  IntStatus
	haltFn func()
}

func NewInterrupts() *Interrupts {
	return &Interrupts{
		wake:   make(chan struct{}, 1),
		level:  IntOn,
		haltFn: func() { os.Exit(0) },
	}
}

func (i *Interrupts) Level() IntStatus {
	return i.level
}

// SetLevel changes the interrupt level and returns the old one.
// Enabling delivers any interrupts that devices posted meanwhile.
func (i *Interrupts) SetLevel(now IntStatus) IntStatus {
	old := i.level
	i.level = now
	if now == IntOn && old == IntOff {
		i.drain()
	}
	return old
}

// Post queues an interrupt handler for delivery. This is the only entry
// point device goroutines may use.
func (i *Interrupts) Post(handler func()) {
	i.mu.Lock()
	i.pending = append(i.pending, handler)
	i.mu.Unlock()
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

// AddSource and RemoveSource track live device goroutines that may still
// post. While any source is alive an idle machine waits instead of
// declaring itself wedged.
func (i *Interrupts) AddSource() {
	i.mu.Lock()
	i.sources++
	i.mu.Unlock()
}

func (i *Interrupts) RemoveSource() {
	i.mu.Lock()
	i.sources--
	i.mu.Unlock()
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

func (i *Interrupts) drain() bool {
	ran := false
	for {
		i.mu.Lock()
		if len(i.pending) == 0 {
			i.mu.Unlock()
			return ran
		}
		handler := i.pending[0]
		i.pending = i.pending[1:]
		i.mu.Unlock()

		old := i.level
		i.level = IntOff
		handler()
		i.level = old
		ran = true
	}
}

// Idle is called by the scheduler, with interrupts disabled, when there is
// no thread to run. It returns once at least one interrupt handler has run
// (which may have readied a thread). If no handler is pending and no device
// can ever post one again, the machine is wedged.
func (i *Interrupts) Idle() {
	for {
		if i.drain() {
			return
		}
		i.mu.Lock()
		stuck := len(i.pending) == 0 && i.sources == 0
		i.mu.Unlock()
		if stuck {
			log.Fatal("machine idle: no threads ready and no pending interrupts")
		}
		<-i.wake
	}
}

// Halt shuts the machine down. The default exits the host process; tests
// and the driver may install their own.
func (i *Interrupts) Halt() {
	log.Info("machine halting")
	i.haltFn()
}

func (i *Interrupts) SetHaltFn(fn func()) {
	i.haltFn = fn
}
