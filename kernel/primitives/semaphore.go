package primitives

import (
	"github.com/joeycumines/go-vrtos/kernel/status"
	"github.com/joeycumines/go-vrtos/kernel/task"
)

// Semaphore is a counting semaphore, with an optional maximum count, and a
// priority-ordered wait list. No ownership, no priority inheritance — unlike Mutex, any task
// may Give regardless of which task last Took.
type Semaphore struct {
	b Blocker

	count   uint32
	max     uint32
	waiters WaitList
}

// NewSemaphore constructs a Semaphore with the given initial count and
// maximum count. max == 0 means unbounded.
func NewSemaphore(b Blocker, initial, max uint32) *Semaphore {
	if max != 0 && initial > max {
		initial = max
	}
	return &Semaphore{b: b, count: initial, max: max}
}

// Take decrements the count, blocking the caller for up to timeoutTicks
// if the count is already zero.
func (s *Semaphore) Take(timeoutTicks uint32) status.Status {
	s.b.Lock()
	defer s.b.Unlock()

	if s.count > 0 {
		s.count--
		return status.Success
	}

	if timeoutTicks == 0 {
		return status.Timeout
	}

	caller := s.b.Current()
	s.waiters.insert(caller)
	caller.BlockedOn = s
	caller.BlockedOnTag = task.BlockedOnSemaphore

	st := s.b.Block(caller, timeoutTicks)
	if st == status.Timeout && caller.BlockedOn == s {
		s.waiters.remove(caller)
		caller.BlockedOn = nil
		caller.BlockedOnTag = task.BlockedOnNone
	}
	return st
}

// TryTake is Take(0): a non-blocking attempt.
func (s *Semaphore) TryTake() status.Status { return s.Take(0) }

// Give increments the count, or directly transfers a unit of count to the
// highest-priority waiter if one exists. Returns status.Full if the count is
// already at a nonzero max and no task is waiting to receive the unit.
func (s *Semaphore) Give() status.Status {
	s.b.Lock()
	defer s.b.Unlock()

	if w := s.waiters.popHighest(); w != nil {
		w.BlockedOn = nil
		w.BlockedOnTag = task.BlockedOnNone
		s.b.Wake(w)
		return status.Success
	}

	if s.max != 0 && s.count >= s.max {
		return status.Full
	}
	s.count++
	return status.Success
}

// Count reports the current count. Exposed for tests and diagnostics.
func (s *Semaphore) Count() uint32 { return s.count }
