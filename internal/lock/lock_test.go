package lock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestMarkerPath(t *testing.T) {
	for _, tc := range []struct {
		path string
		want string
	}{
		{"/home/user/.cargo/advisory-db.rustsec", "/home/user/.cargo/advisory-db.rustsec.lock"},
		{"advisory-db", "advisory-db.lock"},
	} {
		if got := MarkerPath(tc.path); got != tc.want {
			t.Fatalf("MarkerPath(%q): expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisory-db.lock")

	m, err := Acquire(context.Background(), path, FailImmediate())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.Path() != path {
		t.Fatalf("expected path %q, got %q", path, m.Path())
	}
	if err := m.Release(); err != nil {
		t.Fatalf("expected no error releasing, got %v", err)
	}
	if err := m.Release(); err != nil {
		t.Fatalf("expected second release to be a no-op, got %v", err)
	}

	// The lock is free again.
	m2, err := Acquire(context.Background(), path, FailImmediate())
	if err != nil {
		t.Fatalf("expected re-acquisition after release, got %v", err)
	}
	if err := m2.Release(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestFailImmediate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisory-db.lock")

	held, err := Acquire(context.Background(), path, FailImmediate())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer held.Release()

	_, err = Acquire(context.Background(), path, FailImmediate())
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if timeout.Path != path {
		t.Fatalf("expected path %q in error, got %q", path, timeout.Path)
	}
}

func TestBackoffTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisory-db.lock")

	held, err := Acquire(context.Background(), path, FailImmediate())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = Acquire(context.Background(), path, BackoffUntil(150*time.Millisecond))
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("expected acquisition to wait for the deadline, returned after %s", elapsed)
	}
	if timeout.Elapsed <= 0 {
		t.Fatalf("expected elapsed duration in error, got %s", timeout.Elapsed)
	}
}

func TestBackoffAcquiresAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisory-db.lock")

	held, err := Acquire(context.Background(), path, FailImmediate())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		held.Release()
	}()

	m, err := Acquire(context.Background(), path, BackoffUntil(5*time.Second))
	if err != nil {
		t.Fatalf("expected acquisition once the holder released, got %v", err)
	}
	if err := m.Release(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisory-db.lock")

	held, err := Acquire(context.Background(), path, FailImmediate())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = Acquire(ctx, path, BackoffUntil(time.Minute))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
