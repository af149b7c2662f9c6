package uthreads

import "sync"

// node is the intrusive list cell backing threadList, descended from
// alphadose-ZenQ's list.go/select_list.go Michael-Scott queue node. The CAS
// loops those files build around a single-ended, head-only-dequeue queue are
// dropped here: the critical-section guard already serializes every access
// to a threadList (spec: "the critical-section guard is the sole
// synchronization mechanism"), and terminate/block need to remove a tcb from
// the *middle* of ready_queue or sleeping_set, which a Treiber/MS queue
// cannot do without a full walk. A plain doubly linked list gives that
// removal in O(1) given the node pointer, which is why tcb carries one (or,
// for sleeping_set, two — see slot below) node pointers back to its cells.
type node struct {
	prev, next *node
	owner      *tcb

	// slot is the address of whichever tcb field this node is published
	// through — &owner.listNode for ready_queue/blocked_set membership, or
	// &owner.sleepNode for sleeping_set membership. A sleeping thread is a
	// member of both blocked_set *and* sleeping_set at once (spec §3), so a
	// single tcb.listNode can't stand in for both: unlink needs to clear
	// the one field that actually points at this node, not always the
	// same one, or removing from one list corrupts the tcb's membership in
	// the other.
	slot **node
}

var nodePool = sync.Pool{
	New: func() any { return new(node) },
}

// threadList is an intrusive FIFO of *tcb, used for ready_queue, blocked_set
// and sleeping_set alike (spec §3). A tcb can be linked into at most one
// threadList through any given slot at a time, but — since sleeping_set uses
// a different slot (tcb.sleepNode) than ready_queue/blocked_set
// (tcb.listNode) — a thread can be tracked by two threadLists
// simultaneously, exactly the "sleeping is also blocked" case spec §3
// requires.
type threadList struct {
	head, tail *node
	size       int
}

// pushBack enqueues t at the tail, publishing the new node through slot
// (pass &t.listNode for ready_queue/blocked_set, &t.sleepNode for
// sleeping_set). *slot must be nil — t must not already be linked into this
// particular list.
func (l *threadList) pushBack(t *tcb, slot **node) {
	n := nodePool.Get().(*node)
	n.owner = t
	n.slot = slot
	n.prev, n.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	*slot = n
	l.size++
}

// popFront dequeues and returns the head, or nil if the list is empty.
func (l *threadList) popFront() *tcb {
	n := l.head
	if n == nil {
		return nil
	}
	l.unlink(n)
	t := n.owner
	n.owner, n.prev, n.next, n.slot = nil, nil, nil, nil
	nodePool.Put(n)
	return t
}

// remove unlinks t from this threadList via slot (the same field pointer
// used to push it — &t.listNode or &t.sleepNode). No-op if *slot is nil,
// i.e. t isn't currently linked into this list. Used by terminate/block/wake
// to pull a non-running thread out of ready_queue, blocked_set or
// sleeping_set without having to pop and requeue everything ahead of it.
func (l *threadList) remove(t *tcb, slot **node) {
	n := *slot
	if n == nil {
		return
	}
	l.unlink(n)
	n.owner, n.prev, n.next, n.slot = nil, nil, nil, nil
	nodePool.Put(n)
}

func (l *threadList) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	*n.slot = nil
	l.size--
}

// snapshot returns the members of l as a plain slice, in list order. Used by
// wake() to iterate sleeping_set while members are concurrently removed from
// it mid-walk (see SPEC_FULL.md's "wake_threads in-place erase" note: walking
// a separately-allocated snapshot means removing element k from the live list
// while looking at element k+1 of the snapshot can never skip an entry, the
// bug original_source/Scheduler.cpp works around with an iterator reassign).
func (l *threadList) snapshot() []*tcb {
	out := make([]*tcb, 0, l.size)
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.owner)
	}
	return out
}

func (l *threadList) len() int { return l.size }
