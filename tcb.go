package uthreads

// threadState is the RUNNING/READY/BLOCKED state machine from
// original_source/Thread.h's state enum, renamed to Go naming conventions.
type threadState uint8

const (
	stateRunning threadState = iota
	stateReady
	stateBlocked
)

func (s threadState) String() string {
	switch s {
	case stateRunning:
		return "RUNNING"
	case stateReady:
		return "READY"
	case stateBlocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// tcb is a ThreadControlBlock: everything the scheduler needs to know about
// one logical thread, grounded on original_source/Thread.h's fields. There is
// no stack buffer here (Thread.h's `new char[STACK_SIZE]`) — the "stack" of a
// logical thread in this translation is the real goroutine stack backing it,
// grown and shrunk by the Go runtime, not a fixed-size buffer the scheduler
// owns. See SPEC_FULL.md's "Stack release ordering" note for why that
// difference doesn't change the resource-lifetime rule.
type tcb struct {
	id    int
	state threadState
	ctx   machineContext

	quantumCount int // number of quanta this thread has been dispatched for
	sleepUntil   int // total-quanta deadline; -1 when not sleeping
	userBlocked  bool // true once block() targeted this thread explicitly;
	// kept separate from sleepUntil so wake() never resumes a thread the
	// user asked to keep blocked just because its sleep timer also expired
	// (original_source/Thread.h's is_blocked flag, same separation).

	// listNode links this tcb into whichever of readyQueue/blockedSet
	// currently owns it; nil when untracked (e.g. the currently RUNNING
	// thread). sleepNode is the separate link into sleepingSet, tracked
	// independently because a sleeping thread sits in *both* blockedSet and
	// sleepingSet at once (spec §3) — one node pointer can't stand in for
	// membership in two lists simultaneously (see readyqueue.go's node.slot).
	listNode  *node
	sleepNode *node
}

func newTCB(id int) *tcb {
	return &tcb{
		id:         id,
		state:      stateReady,
		sleepUntil: -1,
		ctx:        machineContext{parked: make(chan struct{}, 1)},
	}
}
