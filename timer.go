package uthreads

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// virtualTimer arms ITIMER_VIRTUAL and funnels SIGVTALRM deliveries onto a
// channel, grounded on original_source/Scheduler.cpp's constructor (the
// sigaction/setitimer pair installing switch_handler). Go can't install a
// signal handler that runs synchronously on the interrupted goroutine's own
// stack the way a C signal handler does, so this only ever flips a flag the
// running thread is expected to notice at its own next checkpoint — see
// scheduler.go's Checkpoint for the consequence of that gap.
type virtualTimer struct {
	quantumUsecs int64
	sigCh        chan os.Signal
	stopCh       chan struct{}
}

func newVirtualTimer(quantumUsecs int) *virtualTimer {
	return &virtualTimer{
		quantumUsecs: int64(quantumUsecs),
		sigCh:        make(chan os.Signal, 1),
		stopCh:       make(chan struct{}),
	}
}

// start begins listening for SIGVTALRM and arms the first quantum. onFire
// runs for every delivery, on its own goroutine, for the lifetime of the
// scheduler.
func (vt *virtualTimer) start(onFire func()) {
	signal.Notify(vt.sigCh, unix.SIGVTALRM)
	vt.rearm()
	go func() {
		for {
			select {
			case <-vt.sigCh:
				onFire()
			case <-vt.stopCh:
				return
			}
		}
	}()
}

// rearm schedules the next SIGVTALRM quantumUsecs of virtual (CPU, not wall
// clock) time from now, matching spec §2's "timer counts CPU time consumed by
// the process, not wall-clock time." ITIMER_VIRTUAL is one-shot per spec —
// dispatch calls rearm again every time it runs, rather than relying on
// setitimer's own interval field.
func (vt *virtualTimer) rearm() {
	it := unix.Itimerval{
		Value: unix.Timeval{
			Sec:  vt.quantumUsecs / 1_000_000,
			Usec: vt.quantumUsecs % 1_000_000,
		},
	}
	// A failed arm is reported but does not unwind dispatch (spec §4.4's
	// failure semantics: "the scheduler continues; a missing tick will
	// simply delay preemption of that quantum").
	if err := unix.Setitimer(unix.ITIMER_VIRTUAL, &it, nil); err != nil {
		systemError(err)
	}
}

// stop disarms the timer and releases the signal channel. Used by
// terminate(0)'s full shutdown path.
func (vt *virtualTimer) stop() {
	var it unix.Itimerval
	if err := unix.Setitimer(unix.ITIMER_VIRTUAL, &it, nil); err != nil {
		systemError(err)
	}
	signal.Stop(vt.sigCh)
	close(vt.stopCh)
}
