package hostloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// startLoop runs a new loop on a background goroutine, returning a channel
// that receives the result of Run. The loop is closed on test cleanup.
func startLoop(t *testing.T, opts ...LoopOption) (*Loop, <-chan error) {
	t.Helper()
	loop, err := New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(context.Background()) }()
	waitState(t, loop, StateRunning, StateSleeping)
	t.Cleanup(func() { _ = loop.Close() })
	return loop, runErr
}

func waitState(t *testing.T, loop *Loop, states ...LoopState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		current := loop.State()
		for _, s := range states {
			if current == s {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for states %v, current %v", states, loop.State())
}

func waitChan[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
		panic("unreachable")
	}
}

func TestLoop_RunShutdown(t *testing.T) {
	loop, runErr := startLoop(t)

	ran := make(chan struct{})
	if err := loop.Submit(func() { close(ran) }); err != nil {
		t.Fatal(err)
	}
	waitChan(t, ran)

	if err := loop.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := waitChan(t, runErr); err != nil {
		t.Errorf("Run returned %v", err)
	}
	if loop.State() != StateTerminated {
		t.Errorf("expected Terminated, got %v", loop.State())
	}
	select {
	case <-loop.Done():
	default:
		t.Error("expected Done to be closed")
	}

	if err := loop.Shutdown(context.Background()); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("second Shutdown: expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.Submit(func() {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("Submit: expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.SubmitMicrotask(func() {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("SubmitMicrotask: expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.Run(context.Background()); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("Run: expected ErrLoopTerminated, got %v", err)
	}
}

func TestLoop_TerminatedRejectsScheduling(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := loop.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := loop.ScheduleTimer(time.Millisecond, func() {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("ScheduleTimer: expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.CancelTimer(1); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("CancelTimer: expected ErrLoopTerminated, got %v", err)
	}
	if _, err := loop.RequestAnimationFrame(func(time.Time) {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("RequestAnimationFrame: expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.CancelAnimationFrame(1); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("CancelAnimationFrame: expected ErrLoopTerminated, got %v", err)
	}
	if _, err := loop.RequestIdleCallback(func(IdleDeadline) {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("RequestIdleCallback: expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.CancelIdleCallback(1); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("CancelIdleCallback: expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.SubmitIdle(func() {}); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("SubmitIdle: expected ErrLoopTerminated, got %v", err)
	}
}

func TestLoop_RunContextCancel(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()
	waitState(t, loop, StateRunning, StateSleeping)

	cancel()
	if err := waitChan(t, runErr); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if loop.State() != StateTerminated {
		t.Errorf("expected Terminated, got %v", loop.State())
	}
}

func TestLoop_RunTwice(t *testing.T) {
	loop, _ := startLoop(t)
	if err := loop.Run(context.Background()); !errors.Is(err, ErrLoopAlreadyRunning) {
		t.Errorf("expected ErrLoopAlreadyRunning, got %v", err)
	}
}

func TestLoop_ReentrantRun(t *testing.T) {
	loop, _ := startLoop(t)

	result := make(chan error, 1)
	if err := loop.Submit(func() { result <- loop.Run(context.Background()) }); err != nil {
		t.Fatal(err)
	}
	if err := waitChan(t, result); !errors.Is(err, ErrReentrantRun) {
		t.Errorf("expected ErrReentrantRun, got %v", err)
	}
}

func TestLoop_ShutdownBeforeRun(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := loop.Submit(func() { t.Error("should not run") }); err != nil {
		t.Fatal(err)
	}
	if err := loop.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if loop.State() != StateTerminated {
		t.Errorf("expected Terminated, got %v", loop.State())
	}
	if err := loop.Run(context.Background()); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("expected ErrLoopTerminated, got %v", err)
	}
	if err := loop.Close(); !errors.Is(err, ErrLoopTerminated) {
		t.Errorf("expected ErrLoopTerminated, got %v", err)
	}
}

func TestLoop_ShutdownDrains(t *testing.T) {
	loop, runErr := startLoop(t)

	started := make(chan struct{})
	release := make(chan struct{})
	if err := loop.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	waitChan(t, started)

	var macrotasks, microtasks atomic.Int32
	for range 10 {
		if err := loop.Submit(func() {
			macrotasks.Add(1)
			_ = loop.SubmitMicrotask(func() { microtasks.Add(1) })
		}); err != nil {
			t.Fatal(err)
		}
	}
	// discarded by shutdown
	if _, err := loop.ScheduleTimer(time.Hour, func() { t.Error("timer ran") }); err != nil {
		t.Fatal(err)
	}

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- loop.Shutdown(context.Background()) }()
	waitState(t, loop, StateTerminating)
	close(release)

	if err := waitChan(t, shutdownErr); err != nil {
		t.Fatal(err)
	}
	if err := waitChan(t, runErr); err != nil {
		t.Fatal(err)
	}
	if macrotasks.Load() != 10 || microtasks.Load() != 10 {
		t.Errorf("expected queued work to drain, got %d macrotasks, %d microtasks", macrotasks.Load(), microtasks.Load())
	}
}

func TestLoop_CloseDiscards(t *testing.T) {
	loop, runErr := startLoop(t)

	started := make(chan struct{})
	release := make(chan struct{})
	if err := loop.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	waitChan(t, started)

	var ran atomic.Int32
	for range 10 {
		if err := loop.Submit(func() { ran.Add(1) }); err != nil {
			t.Fatal(err)
		}
	}

	if err := loop.Close(); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := waitChan(t, runErr); err != nil {
		t.Fatal(err)
	}
	waitChan(t, loop.Done())
	if n := ran.Load(); n != 0 {
		t.Errorf("expected queued work to be discarded, %d ran", n)
	}
}

func TestLoop_CloseFromCallback(t *testing.T) {
	loop, runErr := startLoop(t)

	if err := loop.Submit(func() {
		if err := loop.Close(); err != nil {
			t.Error(err)
		}
	}); err != nil {
		t.Fatal(err)
	}

	if err := waitChan(t, runErr); err != nil {
		t.Fatal(err)
	}
	if loop.State() != StateTerminated {
		t.Errorf("expected Terminated, got %v", loop.State())
	}
}

func TestLoop_ShutdownContext(t *testing.T) {
	loop, _ := startLoop(t)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := loop.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatal(err)
	}
	waitChan(t, started)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := loop.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestLoop_ID(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatal(err)
	}
	b, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == 0 || a.ID() == b.ID() {
		t.Errorf("expected unique non-zero IDs, got %d and %d", a.ID(), b.ID())
	}
}

func TestGetGoroutineID(t *testing.T) {
	id := getGoroutineID()
	if id == 0 {
		t.Fatal("expected a non-zero goroutine ID")
	}
	other := make(chan uint64)
	go func() { other <- getGoroutineID() }()
	if v := <-other; v == id || v == 0 {
		t.Errorf("expected a distinct goroutine ID, got %d (ours %d)", v, id)
	}
}
