// Package uthreads implements a user-space preemptive thread library that
// multiplexes many logical threads onto a single operating-system thread.
// Scheduling is driven by a virtual-time interval timer (SIGVTALRM /
// ITIMER_VIRTUAL): when it fires, the currently running thread is suspended
// and the next ready thread resumes, in strict round-robin order.
//
// Thread bodies that run unbounded CPU-bound work should call Checkpoint
// periodically — see its doc comment for why.
package uthreads

import (
	"os"
	"runtime"
	"sync"
)

var (
	globalMu sync.Mutex
	global   *Scheduler
)

// current returns the live scheduler, or nil before Init / after shutdown.
func current() *Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Init brings up the library: installs the virtual-time alarm, arms the
// interval timer for quantumUsecs, and creates the id-0 thread in RUNNING
// state bound to the calling goroutine (spec §4.4's init). It is an error to
// call Init twice without an intervening Terminate(0).
//
// Init wires the calling goroutine to its OS thread and caps GOMAXPROCS at 1,
// so at most one goroutine runs Go code at a time. The goroutines backing
// spawned threads and the dispatch loop are not wired to that OS thread and
// run on others, so the critical-section guard's masking of SIGVTALRM covers
// only the OS thread each guard call happens to run on.
func Init(quantumUsecs int) error {
	if quantumUsecs <= 0 {
		libraryError(ErrBadQuantum)
		return ErrBadQuantum
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		libraryError(ErrAlreadyInitialized)
		return ErrAlreadyInitialized
	}

	runtime.LockOSThread()
	runtime.GOMAXPROCS(1)

	global = newScheduler(quantumUsecs)
	return nil
}

// Spawn implements spec §4.4's spawn(entry_point): allocates the lowest free
// id, places the new thread in READY, and returns its id. entry runs on its
// own goroutine once dispatch first selects it.
func Spawn(entry func()) (int, error) {
	s := current()
	if s == nil {
		libraryError(ErrNotInitialized)
		return -1, ErrNotInitialized
	}
	return s.spawn(entry)
}

// Terminate implements spec §4.4's terminate(tid) plus the façade-level
// special case for tid==0: "terminating id 0 shuts the library down: all
// TCBs are destroyed and the process exits with code 0."
func Terminate(tid int) error {
	s := current()
	if s == nil {
		libraryError(ErrNotInitialized)
		return ErrNotInitialized
	}
	if tid == 0 {
		globalMu.Lock()
		global = nil
		globalMu.Unlock()
		s.shutdown()
		os.Exit(0)
	}
	return s.terminate(tid)
}

// Block implements spec §4.4's block(tid, from_sleep=false), with the
// façade-level rejection spec §6 requires: "block tid ≠ 0".
func Block(tid int) error {
	s := current()
	if s == nil {
		libraryError(ErrNotInitialized)
		return ErrNotInitialized
	}
	if tid == 0 {
		libraryError(ErrBlockMain)
		return ErrBlockMain
	}
	return s.block(tid, false)
}

// Resume implements spec §4.4's resume(tid).
func Resume(tid int) error {
	s := current()
	if s == nil {
		libraryError(ErrNotInitialized)
		return ErrNotInitialized
	}
	return s.resume(tid)
}

// Sleep implements spec §4.4's sleep(num_quanta), with the façade-level
// rejection spec §6 requires: "caller ≠ id 0".
func Sleep(numQuanta int) error {
	s := current()
	if s == nil {
		libraryError(ErrNotInitialized)
		return ErrNotInitialized
	}
	if numQuanta <= 0 {
		libraryError(ErrBadQuantum)
		return ErrBadQuantum
	}
	if s.currentTid() == 0 {
		libraryError(ErrSleepMain)
		return ErrSleepMain
	}
	return s.sleep(numQuanta)
}

// GetTid returns the id of the calling thread.
func GetTid() int {
	s := current()
	if s == nil {
		return -1
	}
	return s.currentTid()
}

// GetTotalQuantums returns the number of quanta that have elapsed since Init,
// counting the current one.
func GetTotalQuantums() int {
	s := current()
	if s == nil {
		return -1
	}
	return s.totalQuantaSnapshot()
}

// GetQuantums returns the number of quanta thread tid has been RUNNING for,
// including the current one if it is presently RUNNING.
func GetQuantums(tid int) (int, error) {
	s := current()
	if s == nil {
		libraryError(ErrNotInitialized)
		return -1, ErrNotInitialized
	}
	return s.threadQuantaSnapshot(tid)
}
