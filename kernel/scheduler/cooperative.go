package scheduler

import "github.com/joeycumines/go-vrtos/kernel/task"

// Cooperative implements cooperative scheduling: a single FIFO ready
// list, never preempts, and rotates a task to the tail of the list
// whenever it yields (voluntarily or by waking from a wait) and is
// still Ready.
type Cooperative struct {
	ready   fifoList
	delayed delayedList
}

// NewCooperative constructs a Cooperative scheduler.
func NewCooperative() *Cooperative {
	return &Cooperative{}
}

func (s *Cooperative) Init() {
	s.ready = fifoList{}
	s.delayed = delayedList{}
}

func (s *Cooperative) PickNext() *task.Task { return s.ready.head }

// ShouldPreempt is always false: cooperative scheduling never preempts.
func (s *Cooperative) ShouldPreempt(_, _ *task.Task) bool { return false }

// OnYield rotates the ready list; in practice ReadyPush already inserts at
// the tail, so this is the documented no-op that makes the rotation
// explicit rather than implicit in insertion order.
func (s *Cooperative) OnYield(*task.Task, bool) {}

func (s *Cooperative) ReadyPush(t *task.Task) {
	t.State = task.Ready
	s.ready.pushTail(t)
}

func (s *Cooperative) ReadyRemove(t *task.Task) { s.ready.remove(t) }

func (s *Cooperative) DelayedPush(t *task.Task, now, ticks uint32) {
	s.delayed.push(t, now, ticks)
}

func (s *Cooperative) DelayedRemove(t *task.Task) { s.delayed.remove(t) }

func (s *Cooperative) AdvanceDelayed(now uint32) []*task.Task {
	return s.delayed.advance(now)
}

func (s *Cooperative) ReadyLen() int { return s.ready.len }
