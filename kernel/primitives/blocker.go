package primitives

import (
	"github.com/joeycumines/go-vrtos/kernel/status"
	"github.com/joeycumines/go-vrtos/kernel/task"
)

// Blocker is the kernel-core seam every sync primitive blocks through.
// The kernel's top-level type implements this; primitives hold only a
// Blocker reference, so this package has no dependency on the kernel package
// itself. Calling convention: every method except Lock/Unlock/Fault/Now
// assumes the kernel critical section is already held on entry, and
// guarantees it is held again on return. Block is the one method that
// releases it for an interval (while the calling goroutine is actually
// suspended) and reacquires it before returning, mirroring "interrupts
// masked... released" around a context switch.
type Blocker interface {
	// Now returns the current tick count.
	Now() uint32
	// Lock acquires the kernel critical section.
	Lock()
	// Unlock releases the kernel critical section.
	Unlock()
	// Current returns the calling task, i.e. the kernel's current task.
	Current() *task.Task

	// Block transitions t to Blocked, optionally registers it on the
	// delayed list (timeoutTicks != MaxWait), performs the context switch
	// to hand the CPU to the next ready task, and waits for t to be
	// resumed. It returns t.WakeStatus as set by whichever path woke it:
	// status.Success for an ordinary signal/ownership transfer,
	// status.Timeout if the delayed-list wakeup fired first, or
	// status.Reset if a Queue.Reset released it.
	Block(t *task.Task, timeoutTicks uint32) status.Status

	// Wake transitions t from Blocked to Ready (removing it from the
	// delayed list if present) and requests a preemption check. Used when
	// a peer hands a resource or ownership directly to t.
	Wake(t *task.Task)

	// SetEffPriority sets t's effective priority to p, re-filing it within
	// its ready list if it is presently Ready (a Running or Blocked task
	// owns no ready-list slot, and will be filed correctly whenever it
	// next becomes Ready). Mutex priority inheritance and restoration both
	// go through this rather than assigning t.EffPriority directly,
	// because the scheduler's priority-indexed ready structure must be re-
	// bucketed the moment a Ready task's priority changes — the walk can land
	// on a preempted lock holder sitting on a ready list, not just a Blocked or
	// Running one.
	SetEffPriority(t *task.Task, p int)

	// Fault reports a "Fatal" condition (stack canary clobber, nil pick,
	// priority-inheritance overflow). The kernel core owns rate-limiting and
	// the actual log emission.
	Fault(category, msg string)
}
