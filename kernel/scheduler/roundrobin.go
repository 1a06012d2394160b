package scheduler

import "github.com/joeycumines/go-vrtos/kernel/task"

// RoundRobin implements round-robin scheduling: one FIFO ready list, a
// single remaining-slice counter (not per task — only one task runs at
// a time), reset whenever a task starts running or voluntarily yields.
type RoundRobin struct {
	ready     fifoList
	delayed   delayedList
	slice     uint32 // configured slice length
	remaining uint32
}

// NewRoundRobin constructs a RoundRobin scheduler with the given slice
// length in ticks.
func NewRoundRobin(sliceTicks uint32) *RoundRobin {
	s := &RoundRobin{slice: sliceTicks}
	s.Init()
	return s
}

func (s *RoundRobin) Init() {
	s.ready = fifoList{}
	s.delayed = delayedList{}
	s.remaining = s.slice
}

func (s *RoundRobin) PickNext() *task.Task { return s.ready.head }

// ShouldPreempt only consumes the slice counter on the genuine once-per-tick
// call, identified by candidate == nil (the convention the kernel's tick
// path uses for its call; every other caller passes the task that just
// became Ready). Calls made from a Ready event — TaskCreate, TaskResume, or
// a Wake from a mutex/semaphore/queue handoff — must leave the counter
// untouched and never preempt on their own; requesting preemption only once
// the counter reaches zero AND at least one other task is Ready (preempting
// into an otherwise-idle system would be pointless churn).
func (s *RoundRobin) ShouldPreempt(current, candidate *task.Task) bool {
	if candidate != nil {
		return false
	}
	if current == nil {
		return false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	return s.remaining == 0 && s.ready.len > 0
}

// OnYield resets the slice counter, whether completed yielded voluntarily
// or was preempted at slice end.
func (s *RoundRobin) OnYield(*task.Task, bool) {
	s.remaining = s.slice
}

func (s *RoundRobin) ReadyPush(t *task.Task) {
	t.State = task.Ready
	s.ready.pushTail(t)
}

func (s *RoundRobin) ReadyRemove(t *task.Task) { s.ready.remove(t) }

func (s *RoundRobin) DelayedPush(t *task.Task, now, ticks uint32) {
	s.delayed.push(t, now, ticks)
}

func (s *RoundRobin) DelayedRemove(t *task.Task) { s.delayed.remove(t) }

func (s *RoundRobin) AdvanceDelayed(now uint32) []*task.Task {
	return s.delayed.advance(now)
}

func (s *RoundRobin) ReadyLen() int { return s.ready.len }
