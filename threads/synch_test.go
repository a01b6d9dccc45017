package threads

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Tests the synchronisation api:
//	-> Semaphore P/V, Lock Acquire/Release, Condition Wait/Signal/Broadcast

// Partitions:
//	-> semaphore
//		-> initial value 0 (P blocks); value > 0 (P proceeds)
//	-> lock
//		-> uncontended; contended
//	-> condition
//		-> signal one of several; broadcast all

// Covers:
//	-> semaphore/value > 0
func TestSemaphoreNonZeroDoesNotBlock(tt *testing.T) {
	k := initUut()
	sem := k.NewSemaphore("test", 2)
	sem.P()
	sem.P()
	sem.V()
	sem.P()
}

// Covers:
//	-> semaphore/value 0
func TestSemaphoreBlocksUntilV(tt *testing.T) {
	k := initUut()
	sem := k.NewSemaphore("test", 0)
	var trace []string

	waiter := k.NewThread("waiter", true)
	waiter.Fork(func(interface{}) {
		sem.P()
		trace = append(trace, "woke")
	}, nil)

	k.Current().Yield() // waiter runs and blocks on P
	trace = append(trace, "before V")
	sem.V()
	waiter.Join()

	want := []string{"before V", "woke"}
	if diff := cmp.Diff(want, trace); diff != "" {
		tt.Errorf("P did not block until V (-want +got):\n%s", diff)
	}
}

// Covers:
//	-> lock/contended
func TestLockExcludesContender(tt *testing.T) {
	k := initUut()
	lock := k.NewLock("test")
	var trace []string

	lock.Acquire()
	contender := k.NewThread("contender", true)
	contender.Fork(func(interface{}) {
		trace = append(trace, "try")
		lock.Acquire()
		trace = append(trace, "got")
		lock.Release()
	}, nil)

	k.Current().Yield() // contender runs and blocks in Acquire
	trace = append(trace, "release")
	lock.Release()
	contender.Join()

	want := []string{"try", "release", "got"}
	if diff := cmp.Diff(want, trace); diff != "" {
		tt.Errorf("lock did not exclude (-want +got):\n%s", diff)
	}
}

// Covers:
//	-> lock/uncontended
func TestLockHeldByCurrentThread(tt *testing.T) {
	k := initUut()
	lock := k.NewLock("test")

	if lock.HeldByCurrentThread() {
		tt.Errorf("fresh lock reported held")
	}
	lock.Acquire()
	if !lock.HeldByCurrentThread() {
		tt.Errorf("acquired lock reported not held")
	}
	lock.Release()
	if lock.HeldByCurrentThread() {
		tt.Errorf("released lock reported held")
	}
}

// Covers:
//	-> condition/broadcast all
func TestConditionBroadcastWakesAll(tt *testing.T) {
	k := initUut()
	lock := k.NewLock("m")
	cond := k.NewCondition("c", lock)
	woken := 0

	var waiters []*Thread
	for i := 0; i < 3; i++ {
		w := k.NewThread(fmt.Sprintf("waiter%d", i), true)
		w.Fork(func(interface{}) {
			lock.Acquire()
			cond.Wait()
			woken++
			lock.Release()
		}, nil)
		waiters = append(waiters, w)
	}

	k.Current().Yield() // all three run to Wait
	if woken != 0 {
		tt.Errorf("%d waiters woke before broadcast", woken)
	}

	lock.Acquire()
	cond.Broadcast()
	lock.Release()
	for _, w := range waiters {
		w.Join()
	}
	if woken != 3 {
		tt.Errorf("%d waiters woke, wanted 3", woken)
	}
}

// Covers:
//	-> condition/signal one of several
func TestConditionSignalWakesOne(tt *testing.T) {
	k := initUut()
	lock := k.NewLock("m")
	cond := k.NewCondition("c", lock)
	woken := 0

	var waiters []*Thread
	for i := 0; i < 2; i++ {
		w := k.NewThread(fmt.Sprintf("waiter%d", i), true)
		w.Fork(func(interface{}) {
			lock.Acquire()
			cond.Wait()
			woken++
			lock.Release()
		}, nil)
		waiters = append(waiters, w)
	}

	k.Current().Yield()
	lock.Acquire()
	cond.Signal()
	lock.Release()
	waiters[0].Join()

	if woken != 1 {
		tt.Errorf("%d waiters woke after one signal, wanted 1", woken)
	}

	lock.Acquire()
	cond.Broadcast()
	lock.Release()
	waiters[1].Join()
}
