// Package timer implements the kernel's software timer service: a singly-
// linked list of timers sorted by absolute expiry, driven from the kernel's
// tick path. Timer callbacks run with the kernel critical section released,
// never holding it across user code, and may not call blocking APIs.
package timer

import "github.com/joeycumines/go-vrtos/kernel/task"

// Mode selects whether a timer re-arms itself on expiry.
type Mode int

const (
	OneShot Mode = iota
	AutoReload
)

// Callback is invoked with the timer and its opaque parameter each time it
// expires.
type Callback func(t *Timer, param any)

// Timer is a single software timer.
type Timer struct {
	Name     string
	Fn       Callback
	Param    any
	Period   uint32
	Mode     Mode
	active   bool
	expiry   uint32
	next     *Timer
	handle   task.Handle
}

// New constructs an inactive timer. It is not started until Service.Start
// is called.
func New(handle task.Handle, name string, fn Callback, param any, period uint32, mode Mode) *Timer {
	return &Timer{Name: name, Fn: fn, Param: param, Period: period, Mode: mode, handle: handle}
}

// Handle identifies the timer to the public API.
func (t *Timer) Handle() task.Handle { return t.handle }

// Active reports whether the timer is currently armed.
func (t *Timer) Active() bool { return t.active }

// tickBefore mirrors the scheduler's wrap-safe comparison; duplicated here
// rather than imported because the two packages must not depend on one
// another.
func tickBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Service owns the sorted active-timer list and the tick-driven expiry
// loop. It has no locking of its own: the kernel core calls every method
// with its ISR-safe critical section already held.
type Service struct {
	head *Timer
}

// Start arms t, computing expiry = now + period. If t is already active it
// is detached first, so restarting an armed timer always rearms it with a
// fresh expiry rather than stacking list entries.
func (s *Service) Start(t *Timer, now uint32) {
	if t.active {
		s.detach(t)
	}
	t.expiry = now + t.Period
	t.active = true
	s.insert(t)
}

// Stop disarms t. A no-op if it is not active.
func (s *Service) Stop(t *Timer) {
	if !t.active {
		return
	}
	s.detach(t)
	t.active = false
}

// ChangePeriod updates t's period. If t is active it is rearmed with a
// fresh expiry = now + p.
func (s *Service) ChangePeriod(t *Timer, p uint32, now uint32) {
	t.Period = p
	if t.active {
		s.detach(t)
		t.expiry = now + p
		s.insert(t)
	}
}

// Delete stops and forgets t. This implementation has no manual memory
// to free, so detachment is sufficient.
func (s *Service) Delete(t *Timer) {
	s.Stop(t)
}

// insert walks from head, inserting before the first timer whose expiry is
// after t's own, so equal expiries keep insertion order (O(N)).
func (s *Service) insert(t *Timer) {
	t.next = nil
	if s.head == nil || tickBefore(t.expiry, s.head.expiry) {
		t.next = s.head
		s.head = t
		return
	}
	n := s.head
	for n.next != nil && !tickBefore(t.expiry, n.next.expiry) {
		n = n.next
	}
	t.next = n.next
	n.next = t
}

func (s *Service) detach(t *Timer) {
	if s.head == t {
		s.head = t.next
		t.next = nil
		return
	}
	for n := s.head; n != nil; n = n.next {
		if n.next == t {
			n.next = t.next
			t.next = nil
			return
		}
	}
}

// Tick expires every timer whose expiry has reached now, invoking each
// callback with the critical section released (via release/acquire) and
// auto-reloading without drift. The caller supplies release/acquire so this
// package never talks to the kernel's lock directly.
func (s *Service) Tick(now uint32, release, acquire func()) {
	for s.head != nil && !tickBefore(now, s.head.expiry) {
		expired := s.head
		s.head = expired.next
		expired.next = nil

		release()
		if expired.Fn != nil {
			expired.Fn(expired, expired.Param)
		}
		acquire()

		if expired.Mode == AutoReload {
			period := expired.Period
			if period == 0 {
				period = 1
			}
			for !tickBefore(now, expired.expiry) {
				expired.expiry += period
			}
			s.insert(expired)
		} else {
			expired.active = false
		}
	}
}
