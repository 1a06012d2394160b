package primitives_test

import (
	"sync"

	"github.com/joeycumines/go-vrtos/kernel/scheduler"
	"github.com/joeycumines/go-vrtos/kernel/status"
	"github.com/joeycumines/go-vrtos/kernel/task"
)

// testKernel is a minimal stand-in for the real kernel's Blocker
// implementation (kernel.go), trimmed to exactly what the primitives
// package needs to exercise real multi-goroutine blocking/waking against
// a real scheduler, without dragging in the whole Kernel (task creation,
// the port layer, config). The baton protocol — exactly one task
// goroutine holding the run token at a time, switches performed on the
// lock-holding goroutine — mirrors kernel.go's doSwitch/switchContext.
type testKernel struct {
	mu    sync.Mutex
	sched scheduler.Scheduler
	tick  uint32
	cur   *task.Task
	wg    sync.WaitGroup
}

func newTestKernel() *testKernel {
	return &testKernel{sched: scheduler.NewFixedPriority(16)}
}

func (k *testKernel) Lock() { k.mu.Lock() }
func (k *testKernel) Unlock() { k.mu.Unlock() }
func (k *testKernel) Now() uint32 { return k.tick }
func (k *testKernel) Current() *task.Task { return k.cur }
func (k *testKernel) Fault(category, msg string) {}

// SetEffPriority implements primitives.Blocker.
func (k *testKernel) SetEffPriority(t *task.Task, p int) {
	if t.State == task.Ready {
		k.sched.ReadyRemove(t)
		t.EffPriority = p
		k.sched.ReadyPush(t)
		return
	}
	t.EffPriority = p
}

// spawn creates a task goroutine parked on its Resume channel and places
// it on the ready list. Call run() once every task that should be
// eligible at start-of-test has been spawned.
func (k *testKernel) spawn(id task.Handle, name string, priority int, fn func()) *task.Task {
	t := task.New(id, name, func(any) { fn() }, nil, make([]byte, 64), priority)
	k.wg.Add(1)
	k.mu.Lock()
	t.State = task.Ready
	k.sched.ReadyPush(t)
	if k.cur != nil && k.sched.ShouldPreempt(k.cur, t) {
		k.switchLocked()
	}
	k.mu.Unlock()
	go func() {
		<-t.Resume
		fn()
		k.mu.Lock()
		t.State = task.Deleted
		close(t.Done)
		k.switchAwayLocked(t)
		k.mu.Unlock()
		k.wg.Done()
	}()
	return t
}

// run dispatches the highest-priority ready task and blocks until every
// spawned task has run to completion (directly, or transitively via
// Block/Wake hand-offs driven by the primitives under test).
func (k *testKernel) run() {
	k.mu.Lock()
	first := k.sched.PickNext()
	if first == nil {
		k.mu.Unlock()
		return
	}
	k.sched.ReadyRemove(first)
	first.State = task.Running
	k.cur = first
	k.mu.Unlock()

	first.Resume <- struct{}{}
	k.wg.Wait()
}

// Block implements primitives.Blocker.
func (k *testKernel) Block(t *task.Task, timeoutTicks uint32) status.Status {
	t.State = task.Blocked
	t.WakeStatus = status.Success
	if timeoutTicks != ^uint32(0) {
		k.sched.DelayedPush(t, k.tick, timeoutTicks)
	}
	k.switchLocked()
	return t.WakeStatus
}

// Wake implements primitives.Blocker.
func (k *testKernel) Wake(t *task.Task) {
	if t.State != task.Blocked {
		return
	}
	k.sched.DelayedRemove(t)
	t.State = task.Ready
	k.sched.ReadyPush(t)
	if k.sched.ShouldPreempt(k.cur, t) {
		k.switchLocked()
	}
}

// yield voluntarily gives up the run token, mirroring Kernel.YieldNow;
// used by idle-style filler tasks in tests that need to let a
// tick-driven timeout fire.
func (k *testKernel) yield() {
	k.mu.Lock()
	k.switchLocked()
	k.mu.Unlock()
}

// advanceTicks simulates n ticks of the kernel's tick path, waking any
// task whose delay has expired, without needing a real ticker. Must be
// called from outside any task's own goroutine (e.g. directly from the
// test, mirroring the port's own tick goroutine).
func (k *testKernel) advanceTicks(n uint32) {
	k.mu.Lock()
	for i := uint32(0); i < n; i++ {
		k.tick++
		for _, t := range k.sched.AdvanceDelayed(k.tick) {
			t.WakeStatus = status.Timeout
			t.State = task.Ready
			k.sched.ReadyPush(t)
		}
	}
	k.mu.Unlock()
}

// switchLocked is doSwitch's trimmed equivalent: called with the lock
// held, from the outgoing task's own goroutine.
func (k *testKernel) switchLocked() {
	out := k.cur
	if out != nil && out.State != task.Blocked && out.State != task.Deleted {
		out.State = task.Ready
		k.sched.ReadyPush(out)
	}
	k.sched.OnYield(out, out != nil && out.State == task.Ready)

	next := k.sched.PickNext()
	if next == nil {
		return
	}
	k.sched.ReadyRemove(next)
	next.State = task.Running
	k.cur = next
	if next == out {
		return
	}
	k.mu.Unlock()
	next.Resume <- struct{}{}
	if out != nil && out.State != task.Deleted {
		<-out.Resume
	}
	k.mu.Lock()
}

// switchAwayLocked is switchAway's trimmed equivalent: called with the
// lock held, for a task whose goroutine is retiring for good.
func (k *testKernel) switchAwayLocked(out *task.Task) {
	next := k.sched.PickNext()
	if next == nil {
		return
	}
	k.sched.ReadyRemove(next)
	next.State = task.Running
	k.cur = next
	if next != out {
		next.Resume <- struct{}{}
	}
}
