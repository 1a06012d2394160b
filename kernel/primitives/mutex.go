package primitives

import (
	"github.com/joeycumines/go-vrtos/kernel/status"
	"github.com/joeycumines/go-vrtos/kernel/task"
)

// Mutex is a recursive, priority-inheriting lock: owner plus recursion
// count plus a priority-ordered wait list, with transitive priority
// inheritance.
type Mutex struct {
	b Blocker

	owner     *task.Task
	recursion uint8
	waiters   WaitList

	maxInheritDepth int
}

// NewMutex constructs an unlocked Mutex. maxInheritDepth bounds the
// transitive-inheritance walk.
func NewMutex(b Blocker, maxInheritDepth int) *Mutex {
	return &Mutex{b: b, maxInheritDepth: maxInheritDepth}
}

// Lock acquires the mutex, blocking the calling task for up to
// timeoutTicks if it is already held (0 == try-once, status.Timeout on
// contention; ^uint32(0) == wait forever).
func (m *Mutex) Lock(timeoutTicks uint32) status.Status {
	m.b.Lock()
	defer m.b.Unlock()

	caller := m.b.Current()

	if m.owner == nil {
		m.owner = caller
		m.recursion = 1
		return status.Success
	}

	if m.owner == caller {
		if m.recursion < 255 {
			m.recursion++
		}
		return status.Success
	}

	if timeoutTicks == 0 {
		return status.Timeout
	}

	m.waiters.insert(caller)
	caller.BlockedOn = m
	caller.BlockedOnTag = task.BlockedOnMutex

	m.inherit(caller.EffPriority)

	st := m.b.Block(caller, timeoutTicks)
	if st == status.Timeout {
		// Disambiguation: if the task is still blocked-on this mutex, the delayed
		// list woke it first; remove it from the waiters list ourselves. If
		// blockedOn has already been cleared, the unlocker transferred ownership
		// directly and Block's Success return already reflects that — this branch
		// is unreachable in that case because Block would have returned Success,
		// not Timeout.
		if caller.BlockedOn == m {
			m.waiters.remove(caller)
			caller.BlockedOn = nil
			caller.BlockedOnTag = task.BlockedOnNone
		}
	}
	return st
}

// TryLock is Lock(0): a non-blocking attempt.
func (m *Mutex) TryLock() status.Status { return m.Lock(0) }

// Unlock releases one level of recursion. status.InvalidState is returned
// if the caller does not own the mutex. On final release the owner's
// effective priority is restored to its base priority, and the
// highest-priority waiter (if any) becomes the new owner.
func (m *Mutex) Unlock() status.Status {
	m.b.Lock()
	defer m.b.Unlock()

	caller := m.b.Current()
	if m.owner != caller {
		return status.InvalidState
	}

	m.recursion--
	if m.recursion > 0 {
		return status.Success
	}

	m.b.SetEffPriority(m.owner, m.owner.BasePriority)
	m.owner = nil

	next := m.waiters.popHighest()
	if next == nil {
		return status.Success
	}

	next.BlockedOn = nil
	next.BlockedOnTag = task.BlockedOnNone
	m.owner = next
	m.recursion = 1
	m.b.Wake(next)

	return status.Success
}

// Owner reports the current owner, or nil if unlocked. Exposed for tests
// and diagnostics.
func (m *Mutex) Owner() *task.Task { return m.owner }

// inherit implements the transitive priority-inheritance walk. Must be
// called with the kernel lock held (Lock already holds it for the duration
// of this call).
func (m *Mutex) inherit(boost int) {
	target := m.owner
	depth := 0
	for target != nil && depth < m.maxInheritDepth {
		if target.EffPriority < boost {
			m.b.SetEffPriority(target, boost)
		} else {
			boost = target.EffPriority
		}

		if target.State == task.Blocked && target.BlockedOnTag == task.BlockedOnMutex {
			if owner, ok := target.BlockedOn.(*Mutex); ok {
				target = owner.owner
				depth++
				continue
			}
		}
		break
	}
	if depth >= m.maxInheritDepth {
		m.b.Fault("inheritance_depth", "priority-inheritance walk exceeded maximum chain depth")
	}
}
