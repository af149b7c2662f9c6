package uthreads

import (
	"unsafe"
)

// waitReason mirrors (a trimmed slice of) runtime.waitReason. gopark records
// it for goroutine dumps/traces; only the one value a parked thread ever
// reports is kept.
type waitReason uint8

const waitReasonPreempted waitReason = 30 // matches runtime.waitReasonPreempted (Go 1.27 numbering; the runtime renumbers it between releases)

// traceBlockReason mirrors runtime.traceBlockReason; only the value gopark's
// signature requires is kept.
type traceBlockReason uint8

const traceBlockPreempted traceBlockReason = 11 // matches runtime.traceBlockPreempted (Go 1.27 numbering)

//go:linkname goready runtime.goready
func goready(gp unsafe.Pointer, traceskip int)

//go:linkname gopark runtime.gopark
func gopark(unlockf func(unsafe.Pointer, unsafe.Pointer) bool, lock unsafe.Pointer, reason waitReason, traceReason traceBlockReason, traceskip int)

// getg returns the runtime *g of the calling goroutine. Implemented in
// getg_<arch>.s: it reads the g pointer straight out of the per-thread TLS
// slot the runtime keeps it in, the same trick the runtime's own assembly
// uses internally (and the one every "fetch my goroutine id" package in the
// wild relies on, since getg() itself is a compiler intrinsic with no linkname
// target).
func getg() unsafe.Pointer

// machineContext is the opaque per-thread "saved machine context" the spec's
// ContextSwitch primitive names. Concretely it is the goroutine backing the
// logical thread: the Go runtime is the one actually preserving stack
// pointer, program counter and callee-saved registers across a park/ready
// cycle, exactly the guarantee original_source/Scheduler.cpp gets out of a
// sigjmp_buf filled in by sigsetjmp. A thread never restores itself and
// never parks anyone but itself — see scheduler.go's dispatch loop for why
// that split is required in Go, where gopark cannot be asked to suspend any
// goroutine other than the caller.
type machineContext struct {
	g unsafe.Pointer

	// parked is a one-shot rendezvous, reused across every park/ready cycle
	// of this context's lifetime: save's gopark unlockf sends into it only
	// once the runtime has actually finished moving the calling goroutine
	// out of _Grunning, and restore receives from it before ever calling
	// goready. Without this handshake, restore can race capture/save —
	// dispatchLoop popping a just-spawned tcb off ready_queue and calling
	// goready(g) before that goroutine's own runThread has gotten as far as
	// calling save() targets a g that was never parked in the first place,
	// which the runtime answers with a fatal "bad g->status in ready". The
	// channel is buffered (capacity 1) so the unlockf's send — which runs on
	// the system stack, not a schedulable goroutine — can never itself
	// block waiting for a receiver.
	parked chan struct{}
}

// capture records the calling goroutine as the one this context parks and
// resumes. Must be called once, from the goroutine that owns the context,
// before the first save. The parked channel itself is allocated earlier, by
// newTCB, precisely so a tcb can be published to a ready/blocked list the
// instant it's constructed without waiting for its goroutine to schedule:
// restore() only ever blocks on a valid channel, never reads one that's
// still a nil zero value.
func (c *machineContext) capture() {
	c.g = getg()
}

// save parks the calling goroutine. Control returns from this call only once
// some later restore (on a different goroutine, by construction) readies it
// again — at this exact call site, not at the point restore was invoked,
// mirroring sigsetjmp's "returns twice" contract minus the numeric return
// value (Go has no equivalent use for it: a thread always knows why it was
// dispatched by reading its own state field, not by branching on save's
// return).
func (c *machineContext) save() {
	gopark(func(unsafe.Pointer, unsafe.Pointer) bool {
		c.parked <- struct{}{}
		return true
	}, nil, waitReasonPreempted, traceBlockPreempted, 1)
}

// restore readies the goroutine parked on this context. Must be called by a
// goroutine other than c's own — typically the dispatch loop goroutine, never
// the thread being restored. Blocks until save's unlockf confirms the target
// has actually parked, so a caller racing ahead of a not-yet-parked (or
// not-yet-even-started) goroutine waits instead of handing the runtime a g
// that isn't ready to be readied.
func (c *machineContext) restore() {
	<-c.parked
	goready(c.g, 1)
}
