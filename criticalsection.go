package uthreads

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// criticalSection is a nesting-aware guard masking SIGVTALRM, grounded on
// original_source/Scheduler.cpp's set_signals(BLOCK/UNBLOCK) pair (itself a
// thin wrapper over sigprocmask). Nesting matters because terminate/block/
// sleep and Checkpoint hand the running thread off to dispatch, which must not unmask signals
// partway through a caller's own guarded section — only the outermost enter/
// exit pair actually touches the OS mask, same as the C original's "signal
// masking is not reentrant unless you count depth yourself" behavior.
//
// A caveat the teacher's sigprocmask-per-OS-thread model doesn't have to deal
// with: enter() and exit() are not required to run on the same goroutine.
// scheduler.go's dispatch loop hands a thread's critical section off to the
// persistent dispatcher goroutine partway through (the outgoing thread
// enters, the dispatcher goroutine exits once the incoming thread is
// running). PthreadSigmask changes the mask of whichever OS thread the
// calling goroutine is on at that moment, and Init wires only its own
// caller's goroutine to an OS thread, so the unmask in exit() can land on a
// different OS thread than the mask in enter() did; see DESIGN.md.
type criticalSection struct {
	depth int32
	set   unix.Sigset_t
}

func newCriticalSection() *criticalSection {
	cs := &criticalSection{}
	// Sigset_t is a fixed-size bitmap (Val [16]uint64 on linux/amd64);
	// signal N sets bit (N-1) of word (N-1)/64, the same layout the libc
	// sigsetops macros use under sigprocmask.
	bit := uint(unix.SIGVTALRM) - 1
	cs.set.Val[bit/64] |= 1 << (bit % 64)
	return cs
}

// enter masks SIGVTALRM if this is the outermost entry.
func (cs *criticalSection) enter() {
	if atomic.AddInt32(&cs.depth, 1) == 1 {
		_ = unix.PthreadSigmask(unix.SIG_BLOCK, &cs.set, nil)
	}
}

// exit unmasks SIGVTALRM once the last nested caller leaves.
func (cs *criticalSection) exit() {
	if atomic.AddInt32(&cs.depth, -1) == 0 {
		_ = unix.PthreadSigmask(unix.SIG_UNBLOCK, &cs.set, nil)
	}
}
