package uthreads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadStateString(t *testing.T) {
	assert.Equal(t, "RUNNING", stateRunning.String())
	assert.Equal(t, "READY", stateReady.String())
	assert.Equal(t, "BLOCKED", stateBlocked.String())
}

func TestNewTCB(t *testing.T) {
	tc := newTCB(7)
	assert.Equal(t, 7, tc.id)
	assert.Equal(t, stateReady, tc.state)
	assert.Equal(t, -1, tc.sleepUntil)
	assert.False(t, tc.userBlocked)
	assert.Equal(t, 0, tc.quantumCount)
	assert.Nil(t, tc.listNode)
	assert.Nil(t, tc.sleepNode)
	assert.NotNil(t, tc.ctx.parked, "parked channel must exist before the owning goroutine ever calls capture/save")
}
