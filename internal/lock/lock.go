// Package lock provides the cross-process lock that serializes access to an
// advisory database checkout. The lock is an OS advisory file lock on a
// sibling marker file, so a holder that exits without releasing never blocks
// later acquirers.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danjacques/gofslock/fslock"
)

const (
	// DefaultTimeout bounds how long Acquire waits for a lock held by
	// another process.
	DefaultTimeout = 5 * time.Minute

	initialBackoff = 10 * time.Millisecond
	maxBackoff     = time.Second
)

// TimeoutError reports that the lock could not be acquired before the
// policy's deadline.
type TimeoutError struct {
	Path    string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for lock on %s after %s", e.Path, e.Elapsed.Round(time.Millisecond))
}

// Policy controls how Acquire behaves when the lock is held by another
// process.
type Policy struct {
	wait    bool
	timeout time.Duration
}

// FailImmediate makes Acquire return a TimeoutError on the first conflict
// without waiting.
func FailImmediate() Policy {
	return Policy{}
}

// BackoffUntil makes Acquire retry with increasing backoff until the timeout
// elapses.
func BackoffUntil(timeout time.Duration) Policy {
	return Policy{wait: true, timeout: timeout}
}

// Marker is a held lock. Release it exactly once per acquisition; extra
// Release calls are no-ops.
type Marker struct {
	path   string
	handle fslock.Handle

	mu       sync.Mutex
	released bool
}

// MarkerPath derives the lock file guarding a resource: the resource path
// with ".lock" appended, making the marker a sibling of the resource.
func MarkerPath(resource string) string {
	return resource + ".lock"
}

// Acquire takes the exclusive lock at path. The parent directory must exist.
// A conflict past the policy's deadline is a *TimeoutError; context
// cancellation aborts the wait with the context's error.
func Acquire(ctx context.Context, path string, policy Policy) (*Marker, error) {
	start := time.Now()

	var blocker fslock.Blocker
	if policy.wait {
		blocker = newBlocker(ctx, path, start, start.Add(policy.timeout))
	}

	handle, err := fslock.LockBlocking(path, blocker)
	if err != nil {
		if errors.Is(err, fslock.ErrLockHeld) {
			// Non-blocking attempt, or the blocker declined to wait.
			return nil, &TimeoutError{Path: path, Elapsed: time.Since(start)}
		}
		return nil, err
	}

	return &Marker{path: path, handle: handle}, nil
}

// newBlocker returns the retry callback invoked by fslock each time the lock
// turns out to be held. Returning nil retries, returning an error aborts the
// acquisition with that error.
func newBlocker(ctx context.Context, path string, start, deadline time.Time) fslock.Blocker {
	delay := initialBackoff
	return func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			return &TimeoutError{Path: path, Elapsed: time.Since(start)}
		}

		wait := delay
		if remaining := time.Until(deadline); wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
		return nil
	}
}

func (m *Marker) Path() string {
	return m.path
}

// Release unlocks the marker. Safe to call more than once.
func (m *Marker) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil
	}
	m.released = true
	return m.handle.Unlock()
}
