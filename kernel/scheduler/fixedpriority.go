package scheduler

import (
	"math/bits"

	"github.com/joeycumines/go-vrtos/kernel/task"
)

// FixedPriority implements strict fixed-priority preemptive scheduling:
// one ready list per priority level, a bitmap over levels for O(1)
// selection of the highest non-empty one, FIFO tie-break within a level.
type FixedPriority struct {
	levels  []fifoList
	bitmap  []uint64 // one bit per priority level, 1 == non-empty
	delayed delayedList
	count   int
}

// NewFixedPriority constructs a FixedPriority scheduler with the given
// number of priority levels (0..levels-1).
func NewFixedPriority(levels int) *FixedPriority {
	s := &FixedPriority{}
	s.init(levels)
	return s
}

func (s *FixedPriority) init(levels int) {
	s.levels = make([]fifoList, levels)
	s.bitmap = make([]uint64, (levels+63)/64)
	s.delayed = delayedList{}
	s.count = 0
}

// Init resets policy-private state, keeping the configured level count.
func (s *FixedPriority) Init() {
	s.init(len(s.levels))
}

func (s *FixedPriority) setBit(p int) { s.bitmap[p/64] |= 1 << uint(p%64) }
func (s *FixedPriority) clrBit(p int) { s.bitmap[p/64] &^= 1 << uint(p%64) }

// highestReady returns the highest priority level with a non-empty ready
// list, or -1 if every level is empty. Uses bits.LeadingZeros64 for O(1)
// selection per word, falling back to scanning words only when the
// highest-order word with a set bit isn't the first.
func (s *FixedPriority) highestReady() int {
	for w := len(s.bitmap) - 1; w >= 0; w-- {
		word := s.bitmap[w]
		if word == 0 {
			continue
		}
		bit := 63 - bits.LeadingZeros64(word)
		return w*64 + bit
	}
	return -1
}

func (s *FixedPriority) PickNext() *task.Task {
	lvl := s.highestReady()
	if lvl < 0 {
		return nil
	}
	return s.levels[lvl].head
}

func (s *FixedPriority) ShouldPreempt(current, candidate *task.Task) bool {
	if candidate == nil || current == nil {
		return false
	}
	return candidate.EffPriority > current.EffPriority
}

// OnYield performs no reordering for fixed-priority: placement within a
// level is always FIFO, established by ReadyPush.
func (s *FixedPriority) OnYield(*task.Task, bool) {}

func (s *FixedPriority) ReadyPush(t *task.Task) {
	t.State = task.Ready
	s.levels[t.EffPriority].pushTail(t)
	s.setBit(t.EffPriority)
	s.count++
}

func (s *FixedPriority) ReadyRemove(t *task.Task) {
	lvl := &s.levels[t.EffPriority]
	before := lvl.len
	lvl.remove(t)
	if lvl.len != before {
		s.count--
	}
	if lvl.empty() {
		s.clrBit(t.EffPriority)
	}
}

func (s *FixedPriority) DelayedPush(t *task.Task, now, ticks uint32) {
	s.delayed.push(t, now, ticks)
}

func (s *FixedPriority) DelayedRemove(t *task.Task) {
	s.delayed.remove(t)
}

func (s *FixedPriority) AdvanceDelayed(now uint32) []*task.Task {
	return s.delayed.advance(now)
}

func (s *FixedPriority) ReadyLen() int { return s.count }
