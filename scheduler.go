package uthreads

import (
	"runtime"
	"sync/atomic"
)

// MaxThreads bounds table — spec §6's compile-time MAX_THREADS.
const MaxThreads = 100

// StackSize is retained for parity with spec §6's compile-time STACK_SIZE
// constant. Go goroutines grow their own stacks on demand; nothing in this
// package sizes an allocation from it, unlike original_source/Thread.cpp's
// `new char[STACK_SIZE]`.
const StackSize = 4096

// Scheduler is the process-wide scheduler core (spec §2 "Scheduler core"),
// grounded on original_source/Scheduler.h/.cpp. Exactly one instance exists
// between Init and a terminate(0) shutdown — see uthreads.go for the
// singleton lifecycle, which is deliberately kept outside this type (spec §1
// names "process-wide initialization/teardown of the singleton" as an
// external collaborator, not part of the core).
type Scheduler struct {
	guard *criticalSection
	timer *virtualTimer

	table       [MaxThreads]*tcb
	readyQueue  threadList
	blockedSet  threadList
	sleepingSet threadList

	running     *tcb
	totalQuanta int

	// requestDispatch hands the "pick a successor and restore into it" half
	// of dispatch's protocol off to dispatchLoop's persistent goroutine.
	// gopark can only suspend the calling goroutine, never a goroutine
	// chosen from the outside — see contextswitch.go — so the thread
	// giving up RUNNING cannot also be the one popping ready_queue and
	// calling restore on whatever it finds there; it has to ask a
	// different, always-running goroutine to do that, then park itself (or,
	// if terminating, simply stop).
	requestDispatch chan struct{}
	shutdownLoop    chan struct{}

	// preemptRequested is set by the signal-delivery goroutine on every
	// SIGVTALRM and cleared by whichever call to Checkpoint notices it.
	// See Checkpoint's doc comment for why this exists at all.
	preemptRequested atomic.Bool
}

// newScheduler builds the scheduler core and starts its two permanent
// background goroutines (timer/signal relay, dispatch loop). Called once by
// uthreads.Init.
func newScheduler(quantumUsecs int) *Scheduler {
	s := &Scheduler{
		guard:           newCriticalSection(),
		timer:           newVirtualTimer(quantumUsecs),
		requestDispatch: make(chan struct{}),
		shutdownLoop:    make(chan struct{}),
	}

	main := newTCB(0)
	main.state = stateRunning
	main.quantumCount = 1
	main.ctx.capture()
	s.table[0] = main
	s.running = main
	s.totalQuanta = 1

	go s.dispatchLoop()
	s.timer.start(func() { s.preemptRequested.Store(true) })

	return s
}

func (s *Scheduler) dispatchLoop() {
	for {
		select {
		case <-s.requestDispatch:
			s.runDispatchStep()
		case <-s.shutdownLoop:
			return
		}
	}
}

// runDispatchStep performs steps 3-6 of spec §4.4's dispatch protocol: pop
// ready_queue, promote to RUNNING, account quanta, wake sleepers, re-arm the
// timer, unmask, and restore into the new thread. Runs on dispatchLoop's
// goroutine, never on a thread's own — see Scheduler.requestDispatch.
func (s *Scheduler) runDispatchStep() {
	next := s.readyQueue.popFront()
	if next == nil {
		// Nothing runnable. This only happens if every thread blocked or
		// terminated itself with none ready — a program bug, not a
		// scheduler one (spec doesn't define recovery from total
		// starvation). The guard is released, but nothing requests a dispatch
		// again from here: resume only requeues a thread, and wakeLocked runs
		// only inside this step, so scheduling stops.
		s.guard.exit()
		return
	}
	next.state = stateRunning
	s.running = next
	s.totalQuanta++
	next.quantumCount++
	s.wakeLocked()
	s.timer.rearm()
	s.guard.exit()
	next.ctx.restore()
}

// wakeLocked is spec §4.4's wake(): moves sleepers whose deadline has
// arrived out of sleeping_set, and into ready_queue unless the user also
// explicitly blocked them. Must run under the guard. Walks a snapshot (see
// readyqueue.go's threadList.snapshot) rather than sleepingSet directly, so
// removing the current element mid-walk can't skip the next one —
// SPEC_FULL.md's "wake_threads in-place erase" note.
func (s *Scheduler) wakeLocked() {
	for _, t := range s.sleepingSet.snapshot() {
		if t.sleepUntil > s.totalQuanta {
			continue
		}
		s.sleepingSet.remove(t, &t.sleepNode)
		t.sleepUntil = -1
		if t.userBlocked {
			continue
		}
		s.blockedSet.remove(t, &t.listNode)
		t.state = stateReady
		s.readyQueue.pushBack(t, &t.listNode)
	}
}

// yieldSelf is the common path for a RUNNING thread demoting itself and
// waiting to be dispatched again: Checkpoint's cooperative preemption,
// self-block, self-sleep. Caller must already hold the guard and must have
// already set self's new state and queued it into the right container.
func (s *Scheduler) yieldSelf(self *tcb) {
	s.running = nil
	s.requestDispatch <- struct{}{}
	self.ctx.save()
}

// Checkpoint is this translation's answer to spec §4.2/§5's "threads may be
// preempted at any instruction except while masked": Go gives no way to
// suspend an arbitrary goroutine's execution from the outside the way a
// SIGVTALRM handler suspends whatever instruction the OS thread happened to
// be executing. A thread body that runs an unbounded CPU-bound loop without
// ever calling another uthreads operation must call Checkpoint periodically
// for the scheduler to actually time-slice it. No other uthreads operation
// acts on the timer: they give up RUNNING only when they block, sleep or
// terminate the calling thread itself, so only bodies that return promptly or
// soon reach one of those calls can do without it. This is a disclosed simplification, not a
// best-effort performance knob — without it, true asynchronous preemption of
// arbitrary Go code isn't achievable from a library.
func Checkpoint() {
	s := current()
	if s == nil {
		return
	}
	s.guard.enter()
	if !s.preemptRequested.CompareAndSwap(true, false) {
		s.guard.exit()
		return
	}
	self := s.running
	self.state = stateReady
	s.readyQueue.pushBack(self, &self.listNode)
	s.yieldSelf(self)
}

// spawn implements spec §4.4's spawn(entry_point).
func (s *Scheduler) spawn(entry func()) (int, error) {
	s.guard.enter()
	id := s.freeIDLocked()
	if id < 0 {
		s.guard.exit()
		libraryError(ErrTooManyThreads)
		return -1, ErrTooManyThreads
	}
	t := newTCB(id)
	s.table[id] = t
	s.readyQueue.pushBack(t, &t.listNode)
	s.guard.exit()

	// Safe to make t dispatchable before runThread's goroutine has even
	// started: t.ctx.parked was allocated by newTCB above, so restore (see
	// contextswitch.go) blocks on a valid channel instead of racing
	// runThread's own capture/save — it simply waits until this goroutine
	// actually parks.
	go s.runThread(t, entry)
	return id, nil
}

// freeIDLocked returns the lowest unused slot in [1, MaxThreads), or -1 if
// none remain (spec §8 invariant 4: always the smallest unused id).
func (s *Scheduler) freeIDLocked() int {
	for i := 1; i < MaxThreads; i++ {
		if s.table[i] == nil {
			return i
		}
	}
	return -1
}

// runThread is the goroutine body backing every spawned (non-main) thread.
// It parks immediately on its own context — dispatch is what wakes it, the
// first time it's popped off ready_queue — then runs entry, then
// auto-terminates exactly as if the thread had called terminate(get_tid())
// on itself just before returning.
func (s *Scheduler) runThread(t *tcb, entry func()) {
	t.ctx.capture()
	t.ctx.save()
	entry()
	s.guard.enter()
	s.table[t.id] = nil
	s.running = nil
	s.requestDispatch <- struct{}{}
	// No park, no Goexit: entry has already returned, so falling off the
	// end of runThread ends this goroutine exactly like any other function
	// return — there is no caller stack above this point to unwind.
}

// terminate implements spec §4.4's terminate(tid), excluding tid==0 which
// uthreads.go's façade special-cases into full shutdown before ever reaching
// here (spec: "terminating id 0 shuts the library down").
func (s *Scheduler) terminate(tid int) error {
	s.guard.enter()
	t := s.tableLookupLocked(tid)
	if t == nil {
		s.guard.exit()
		libraryError(ErrNoSuchThread)
		return ErrNoSuchThread
	}

	switch t.state {
	case stateReady:
		// t's goroutine is still parked in runThread's initial save (it was
		// never dispatched). Dropping the table/list references here leaves
		// it parked forever — a genuine goroutine leak, not just reclaimed
		// storage, since nothing will ever call restore on it again. Waking
		// it just to make it notice termination would mean threading a
		// "terminated" check through every self-park site (Checkpoint,
		// blockLocked, sleep), not only runThread's; left as a known gap
		// rather than a partial, unverified fix.
		s.readyQueue.remove(t, &t.listNode)
		s.table[tid] = nil
		s.guard.exit()
	case stateBlocked:
		// Same leak as the READY case above: this goroutine is parked
		// somewhere inside blockLocked/sleep's self.ctx.save() and nothing
		// will ever restore it once its table slot is cleared.
		s.blockedSet.remove(t, &t.listNode)
		if t.sleepUntil >= 0 {
			s.sleepingSet.remove(t, &t.sleepNode)
		}
		s.table[tid] = nil
		s.guard.exit()
	case stateRunning:
		s.table[tid] = nil
		s.running = nil
		s.requestDispatch <- struct{}{}
		// Control must never return to the caller here (spec scenario 4):
		// the rest of this thread's own call stack, above this Terminate
		// call, still exists and must not resume. Goexit unwinds it
		// (running deferred calls) without ever returning normally.
		runtime.Goexit()
	}
	return nil
}

func (s *Scheduler) tableLookupLocked(tid int) *tcb {
	if tid < 0 || tid >= MaxThreads {
		return nil
	}
	return s.table[tid]
}

// block implements spec §4.4's block(tid, from_sleep). The façade rejects
// tid==0 before this is ever called (spec: "blocking id 0 by user request is
// rejected by the façade").
func (s *Scheduler) block(tid int, fromSleep bool) error {
	s.guard.enter()
	t := s.tableLookupLocked(tid)
	if t == nil {
		s.guard.exit()
		libraryError(ErrNoSuchThread)
		return ErrNoSuchThread
	}
	s.blockLocked(t, fromSleep)
	return nil
}

// blockLocked assumes the guard is already held exactly once by the caller
// (block's own lookup, or sleep transitioning the running thread) and
// discharges that single entry on every path: directly here for the READY/
// BLOCKED cases, or via yieldSelf's handoff to dispatchLoop for RUNNING.
func (s *Scheduler) blockLocked(t *tcb, fromSleep bool) {
	if !fromSleep {
		t.userBlocked = true
	}

	switch t.state {
	case stateRunning:
		t.state = stateBlocked
		s.blockedSet.pushBack(t, &t.listNode)
		s.yieldSelf(t)
	case stateReady:
		s.readyQueue.remove(t, &t.listNode)
		t.state = stateBlocked
		s.blockedSet.pushBack(t, &t.listNode)
		s.guard.exit()
	case stateBlocked:
		s.guard.exit()
	}
}

// resume implements spec §4.4's resume(tid).
func (s *Scheduler) resume(tid int) error {
	s.guard.enter()
	defer s.guard.exit()
	t := s.tableLookupLocked(tid)
	if t == nil {
		libraryError(ErrNoSuchThread)
		return ErrNoSuchThread
	}
	t.userBlocked = false
	if t.state == stateBlocked && t.sleepUntil < 0 {
		s.blockedSet.remove(t, &t.listNode)
		t.state = stateReady
		s.readyQueue.pushBack(t, &t.listNode)
	}
	return nil
}

// sleep implements spec §4.4's sleep(num_quanta): "sets sleep_until ...
// adds it to sleeping_set, and performs block(running_id, from_sleep=true)".
// The façade rejects id 0 before this is reached (spec: "the running thread
// must not be id 0").
func (s *Scheduler) sleep(numQuanta int) error {
	s.guard.enter()
	self := s.running
	self.sleepUntil = s.totalQuanta + numQuanta
	s.sleepingSet.pushBack(self, &self.sleepNode)
	s.blockLocked(self, true)
	return nil
}

// totalQuantaSnapshot and threadQuantaSnapshot back get_total_quantums/
// get_quantums; both are simple reads under the guard, spec §4.4's
// accessors.
func (s *Scheduler) totalQuantaSnapshot() int {
	s.guard.enter()
	defer s.guard.exit()
	return s.totalQuanta
}

func (s *Scheduler) threadQuantaSnapshot(tid int) (int, error) {
	s.guard.enter()
	defer s.guard.exit()
	t := s.tableLookupLocked(tid)
	if t == nil {
		libraryError(ErrNoSuchThread)
		return -1, ErrNoSuchThread
	}
	return t.quantumCount, nil
}

func (s *Scheduler) currentTid() int {
	s.guard.enter()
	defer s.guard.exit()
	return s.running.id
}

// shutdown tears down the timer and dispatch loop. Called only from
// uthreads.go's Terminate(0) path, itself responsible for the process exit.
func (s *Scheduler) shutdown() {
	s.timer.stop()
	close(s.shutdownLoop)
}
