package uthreads

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFreeIDLockedPicksLowestSlot exercises spec §8 invariant 4 directly
// against the table, without spinning up the timer/dispatch goroutines —
// id allocation is pure bookkeeping and doesn't need either.
func TestFreeIDLockedPicksLowestSlot(t *testing.T) {
	s := &Scheduler{}
	require.Equal(t, 1, s.freeIDLocked())

	s.table[1] = newTCB(1)
	s.table[2] = newTCB(2)
	require.Equal(t, 3, s.freeIDLocked())

	s.table[2] = nil // id 2 freed by a terminate
	require.Equal(t, 2, s.freeIDLocked())
}

func TestFreeIDLockedExhausted(t *testing.T) {
	s := &Scheduler{}
	for i := 1; i < MaxThreads; i++ {
		s.table[i] = newTCB(i)
	}
	require.Equal(t, -1, s.freeIDLocked())
}

func TestWakeLockedRespectsUserBlocked(t *testing.T) {
	s := &Scheduler{}
	s.totalQuanta = 10

	asleep := newTCB(1)
	asleep.state = stateBlocked
	asleep.sleepUntil = 10
	s.sleepingSet.pushBack(asleep, &asleep.sleepNode)
	s.blockedSet.pushBack(asleep, &asleep.listNode)

	asleepAndBlocked := newTCB(2)
	asleepAndBlocked.state = stateBlocked
	asleepAndBlocked.sleepUntil = 10
	asleepAndBlocked.userBlocked = true
	s.sleepingSet.pushBack(asleepAndBlocked, &asleepAndBlocked.sleepNode)
	s.blockedSet.pushBack(asleepAndBlocked, &asleepAndBlocked.listNode)

	notYet := newTCB(3)
	notYet.state = stateBlocked
	notYet.sleepUntil = 50
	s.sleepingSet.pushBack(notYet, &notYet.sleepNode)
	s.blockedSet.pushBack(notYet, &notYet.listNode)

	s.wakeLocked()

	require.Equal(t, stateReady, asleep.state)
	require.Equal(t, -1, asleep.sleepUntil)
	require.Equal(t, 1, s.readyQueue.len())
	require.Nil(t, asleep.sleepNode)
	require.NotNil(t, asleep.listNode, "promoted into readyQueue, which now owns its listNode")

	require.Equal(t, stateBlocked, asleepAndBlocked.state, "user_blocked must keep it BLOCKED even once the sleep deadline passes")
	require.Equal(t, -1, asleepAndBlocked.sleepUntil)
	require.Nil(t, asleepAndBlocked.sleepNode, "deadline passed, so sleepingSet drops it regardless of user_blocked")
	require.NotNil(t, asleepAndBlocked.listNode, "still tracked by blockedSet")

	require.Equal(t, stateBlocked, notYet.state)
	require.Equal(t, 50, notYet.sleepUntil)
	require.NotNil(t, notYet.sleepNode)

	require.Equal(t, 1, s.sleepingSet.len(), "only notYet's deadline hasn't passed, so only it remains in sleepingSet")
	require.Equal(t, 2, s.blockedSet.len(), "asleepAndBlocked and notYet remain BLOCKED")
}
