// Package scheduler implements the kernel's pluggable scheduling
// policies: fixed-priority preemptive, cooperative, and round-robin
// time-sliced. All three share one delayed-list discipline and expose a
// uniform vtable-style interface, captured by value at kernel init
// rather than resolved through any runtime plugin registry.
package scheduler

import "github.com/joeycumines/go-vrtos/kernel/task"

// Scheduler is the capability set every policy exposes. It is an explicit,
// closed interface rather than an inheritance hierarchy: the kernel core
// binds exactly one implementation for the lifetime of the process.
type Scheduler interface {
	// Init resets policy-private state (ready lists, delayed list,
	// per-policy counters).
	Init()

	// PickNext chooses the task that should run next, or nil if the
	// policy's ready list is empty.
	PickNext() *task.Task

	// ShouldPreempt reports whether current should be preempted. It is
	// called in two situations: immediately after a task becomes Ready
	// (candidate is that task), and once per tick from the tick path regardless
	// of any newly-ready task (candidate is nil). current may be nil only when
	// no task is yet running (kernel bring-up); implementations must treat that
	// as "no preemption".
	ShouldPreempt(current, candidate *task.Task) bool

	// OnYield is informed that completed just stopped running, either by
	// voluntary yield or because it was preempted. stillReady reports
	// whether completed was re-queued to a ready list by the caller
	// (false if it blocked, delayed, or suspended instead).
	OnYield(completed *task.Task, stillReady bool)

	// ReadyPush inserts t into the appropriate ready list, in the
	// policy's ordering.
	ReadyPush(t *task.Task)
	// ReadyRemove removes t from whichever ready list it is on. It is a
	// no-op if t is not on a ready list.
	ReadyRemove(t *task.Task)

	// DelayedPush places t on the shared time-sorted delayed list with an
	// absolute wake tick of now+ticks.
	DelayedPush(t *task.Task, now, ticks uint32)
	// DelayedRemove removes t from the delayed list. It is a no-op if t
	// is not on it.
	DelayedRemove(t *task.Task)
	// AdvanceDelayed removes every task whose wake tick has been reached
	// (wrap-safe comparison against now) from the delayed list and returns
	// them in wake-tick order. It does not push them to a ready list; the
	// caller makes them Ready.
	AdvanceDelayed(now uint32) []*task.Task

	// ReadyLen reports the number of tasks across all ready lists, used
	// by round-robin to decide whether preemption is meaningful ("at
	// least one other task is Ready").
	ReadyLen() int
}
