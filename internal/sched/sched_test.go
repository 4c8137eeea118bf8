package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeoutRearmAndQuit(t *testing.T) {
	l := NewLoop()

	var fired int
	l.AddTimeout(5*time.Millisecond, func() bool {
		fired++
		if fired >= 3 {
			l.Quit()
			return false
		}
		return true
	})

	var quitOrder []int
	l.AddQuitHandler(func() { quitOrder = append(quitOrder, 1) })
	l.AddQuitHandler(func() { quitOrder = append(quitOrder, 2) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := l.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if fired != 3 {
		t.Fatalf("timeout fired %d times, want 3", fired)
	}
	if len(quitOrder) != 2 || quitOrder[0] != 1 || quitOrder[1] != 2 {
		t.Fatalf("quit handlers ran out of order: %v", quitOrder)
	}
}

func TestCallRunsOnLoopGoroutineAndBlocksCaller(t *testing.T) {
	l := NewLoop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- l.Run(ctx) }()

	loopGoroutine := make(chan struct{})
	l.AddTimeout(time.Hour, func() bool { return true }) // keeps Run blocked in poll between Call wakeups

	var ran atomic.Bool
	l.Call(func() {
		ran.Store(true)
		close(loopGoroutine)
	})

	select {
	case <-loopGoroutine:
	case <-time.After(time.Second):
		t.Fatal("Call's closure never ran")
	}
	if !ran.Load() {
		t.Fatal("Call returned before its closure ran")
	}

	l.Quit()
	select {
	case err := <-runErrCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Quit did not wake a Run blocked in poll")
	}
}

func TestRemoveBySlotReuse(t *testing.T) {
	// Tags are slot indices: removing a source frees its slot for the
	// next Add call, which reuses the same tag, matching sys_source_add's
	// free-slot-then-grow behavior.
	l := NewLoop()

	tag := l.AddTimeout(time.Hour, func() bool { return true })
	l.Remove(tag)

	newTag := l.AddQuitHandler(func() {})
	if newTag != tag {
		t.Fatalf("expected the freed slot's tag %v to be reused, got %v", tag, newTag)
	}
}
