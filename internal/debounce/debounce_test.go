package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedule_RapidCalls_OnlyLastTaskRuns(t *testing.T) {
	c := NewCommitter(30 * time.Millisecond)
	defer c.Close()

	var count int64
	var mu sync.Mutex
	var lastValue string

	// 連続編集を模倣: 最後の値だけがコミットされる
	for _, v := range []string{"d", "dr", "dra", "draf", "draft"} {
		value := v
		c.Schedule(func() {
			atomic.AddInt64(&count, 1)
			mu.Lock()
			lastValue = value
			mu.Unlock()
		})
	}

	time.Sleep(150 * time.Millisecond)

	if got := atomic.LoadInt64(&count); got != 1 {
		t.Errorf("commit count = %d, want 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if lastValue != "draft" {
		t.Errorf("committed value = %q, want %q", lastValue, "draft")
	}
}

func TestSchedule_SpacedCalls_EachTaskRuns(t *testing.T) {
	c := NewCommitter(20 * time.Millisecond)
	defer c.Close()

	var count int64
	c.Schedule(func() { atomic.AddInt64(&count, 1) })
	time.Sleep(80 * time.Millisecond)
	c.Schedule(func() { atomic.AddInt64(&count, 1) })
	time.Sleep(80 * time.Millisecond)

	if got := atomic.LoadInt64(&count); got != 2 {
		t.Errorf("commit count = %d, want 2", got)
	}
}

func TestCancel_PendingTask_DoesNotRun(t *testing.T) {
	c := NewCommitter(30 * time.Millisecond)
	defer c.Close()

	var count int64
	c.Schedule(func() { atomic.AddInt64(&count, 1) })
	c.Cancel()

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt64(&count); got != 0 {
		t.Errorf("commit count = %d, want 0", got)
	}
	if c.Pending() {
		t.Error("expected no pending task after Cancel")
	}
}

func TestFlush_PendingTask_RunsImmediately(t *testing.T) {
	c := NewCommitter(10 * time.Second)
	defer c.Close()

	var count int64
	c.Schedule(func() { atomic.AddInt64(&count, 1) })

	c.Flush()

	if got := atomic.LoadInt64(&count); got != 1 {
		t.Errorf("commit count = %d, want 1", got)
	}

	// Flush後にタイマー発火で二重実行されないこと
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&count); got != 1 {
		t.Errorf("commit count after wait = %d, want 1", got)
	}
}

func TestFlush_NoPendingTask_DoesNothing(t *testing.T) {
	c := NewCommitter(10 * time.Millisecond)
	defer c.Close()

	c.Flush()

	if c.Pending() {
		t.Error("expected no pending task")
	}
}

func TestClose_PendingTask_IsDiscarded(t *testing.T) {
	c := NewCommitter(30 * time.Millisecond)

	var count int64
	c.Schedule(func() { atomic.AddInt64(&count, 1) })
	c.Close()

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt64(&count); got != 0 {
		t.Errorf("commit count = %d, want 0", got)
	}
}

func TestSchedule_AfterClose_IsIgnored(t *testing.T) {
	c := NewCommitter(10 * time.Millisecond)
	c.Close()

	var count int64
	c.Schedule(func() { atomic.AddInt64(&count, 1) })

	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt64(&count); got != 0 {
		t.Errorf("commit count = %d, want 0", got)
	}
	if c.Pending() {
		t.Error("expected no pending task after Close")
	}
}

func TestPending_ReflectsScheduleState(t *testing.T) {
	c := NewCommitter(50 * time.Millisecond)
	defer c.Close()

	if c.Pending() {
		t.Error("expected no pending task initially")
	}

	c.Schedule(func() {})
	if !c.Pending() {
		t.Error("expected pending task after Schedule")
	}

	time.Sleep(150 * time.Millisecond)
	if c.Pending() {
		t.Error("expected no pending task after fire")
	}
}
