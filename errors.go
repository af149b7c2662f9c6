package uthreads

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors returned by the public API, grounded on
// original_source/uthreads.cpp's error paths (each of which prints a fixed
// "thread library error:"-prefixed line to stderr and returns -1) and
// Scheduler.h's error #defines for the scheduler-level failures.
var (
	// ErrBadQuantum is returned by Init when quantum_usecs is not positive.
	ErrBadQuantum = errors.New("quantum_usecs must be a positive number of microseconds")
	// ErrNoSuchThread is returned by Terminate/Block/Resume/GetQuantums
	// when tid does not name a live thread.
	ErrNoSuchThread = errors.New("no thread with the given id exists")
	// ErrBlockMain is returned by Block when tid is the main thread (id 0),
	// which can never leave RUNNING/READY.
	ErrBlockMain = errors.New("the main thread cannot be blocked")
	// ErrSleepMain is returned by Sleep when called by the main thread.
	ErrSleepMain = errors.New("the main thread cannot sleep")
	// ErrTooManyThreads is returned by Spawn once MaxThreads live threads
	// already exist.
	ErrTooManyThreads = errors.New("maximum number of concurrent threads already spawned")
	// ErrNotInitialized is returned by every operation called before Init.
	ErrNotInitialized = errors.New("uthreads: library has not been initialized")
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("uthreads: library is already initialized")
)

// libraryError mirrors uthreads.cpp's "thread library error: <reason>" line:
// plain, unstructured diagnostics to stderr, never to the caller's stdout.
// Every exported operation that fails for a reason the caller already gets
// back as an error value also logs it here, matching the C façade printing
// before returning -1.
func libraryError(reason error) {
	fmt.Fprintln(os.Stderr, "thread library error:", reason)
}

// systemError mirrors uthreads.cpp's "system error: <reason>" line, used for
// failures in the underlying OS calls (setitimer). Per spec §4.4's failure
// semantics, a failed timer-arm is reported but does not unwind scheduling.
// The signal handler is installed through signal.Notify, which reports no
// failure, so Init has no signal-handler error path.
func systemError(reason error) {
	fmt.Fprintln(os.Stderr, "system error:", reason)
}
