package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-vrtos/kernel/task"
)

func newTask(id task.Handle, name string, priority int) *task.Task {
	return task.New(id, name, func(any) {}, nil, make([]byte, 64), priority)
}

func TestFixedPriority_HighestPriorityWins(t *testing.T) {
	s := NewFixedPriority(8)

	low := newTask(1, "low", 1)
	high := newTask(2, "high", 5)
	mid := newTask(3, "mid", 3)

	s.ReadyPush(low)
	s.ReadyPush(high)
	s.ReadyPush(mid)

	require.Equal(t, 3, s.ReadyLen())
	assert.Same(t, high, s.PickNext())
}

func TestFixedPriority_FIFOWithinLevel(t *testing.T) {
	s := NewFixedPriority(4)
	a := newTask(1, "a", 2)
	b := newTask(2, "b", 2)

	s.ReadyPush(a)
	s.ReadyPush(b)

	assert.Same(t, a, s.PickNext())
	s.ReadyRemove(a)
	assert.Same(t, b, s.PickNext())
}

func TestFixedPriority_ShouldPreempt(t *testing.T) {
	s := NewFixedPriority(4)
	cur := newTask(1, "cur", 2)
	higher := newTask(2, "higher", 3)
	lower := newTask(3, "lower", 1)

	assert.True(t, s.ShouldPreempt(cur, higher))
	assert.False(t, s.ShouldPreempt(cur, lower))
	assert.False(t, s.ShouldPreempt(nil, higher))
	assert.False(t, s.ShouldPreempt(cur, nil))
}

func TestFixedPriority_DelayedWrapSafe(t *testing.T) {
	s := NewFixedPriority(4)
	t1 := newTask(1, "t1", 1)
	t2 := newTask(2, "t2", 1)

	// now is near the uint32 wraparound boundary; wake ticks must still
	// sort correctly across the wrap.
	now := ^uint32(0) - 2
	s.DelayedPush(t1, now, 1) // wakes at now+1, just before wrap
	s.DelayedPush(t2, now, 5) // wakes at now+5, just after wrap

	expired := s.AdvanceDelayed(now + 1)
	require.Len(t, expired, 1)
	assert.Same(t, t1, expired[0])

	expired = s.AdvanceDelayed(now + 5)
	require.Len(t, expired, 1)
	assert.Same(t, t2, expired[0])
}

func TestCooperative_NeverPreempts(t *testing.T) {
	s := NewCooperative()
	cur := newTask(1, "cur", 1)
	other := newTask(2, "other", 9)
	assert.False(t, s.ShouldPreempt(cur, other))
}

func TestCooperative_FIFO(t *testing.T) {
	s := NewCooperative()
	a := newTask(1, "a", 0)
	b := newTask(2, "b", 0)
	s.ReadyPush(a)
	s.ReadyPush(b)
	assert.Same(t, a, s.PickNext())
}

func TestRoundRobin_PreemptsAfterSlice(t *testing.T) {
	s := NewRoundRobin(3)
	cur := newTask(1, "cur", 0)
	other := newTask(2, "other", 0)
	s.ReadyPush(other)

	assert.False(t, s.ShouldPreempt(cur, nil))
	assert.False(t, s.ShouldPreempt(cur, nil))
	assert.True(t, s.ShouldPreempt(cur, nil))
}

func TestRoundRobin_NoPreemptWhenAlone(t *testing.T) {
	s := NewRoundRobin(1)
	cur := newTask(1, "cur", 0)
	assert.False(t, s.ShouldPreempt(cur, nil))
}

// TestRoundRobin_ReadyEventCallDoesNotConsumeSlice: a call with a non-nil
// candidate models a Ready event outside the tick path (TaskCreate,
// TaskResume, Wake) — it must never decrement the slice counter or request
// preemption, only the once-per-tick call (candidate == nil) may do either.
func TestRoundRobin_ReadyEventCallDoesNotConsumeSlice(t *testing.T) {
	s := NewRoundRobin(1)
	cur := newTask(1, "cur", 0)
	candidate := newTask(2, "candidate", 0)
	s.ReadyPush(candidate)

	assert.False(t, s.ShouldPreempt(cur, candidate))
	assert.False(t, s.ShouldPreempt(cur, candidate))
	assert.False(t, s.ShouldPreempt(cur, candidate))

	// The slice is still untouched: the first genuine tick call still
	// consumes the full configured length before preempting.
	assert.True(t, s.ShouldPreempt(cur, nil))
}

func TestRoundRobin_OnYieldResetsSlice(t *testing.T) {
	s := NewRoundRobin(2)
	cur := newTask(1, "cur", 0)
	other := newTask(2, "other", 0)
	s.ReadyPush(other)

	assert.False(t, s.ShouldPreempt(cur, nil))
	assert.True(t, s.ShouldPreempt(cur, nil))
	s.OnYield(cur, true)
	assert.False(t, s.ShouldPreempt(cur, nil))
}
