package scheduler

import "github.com/joeycumines/go-vrtos/kernel/task"

// delayedList is the one time-sorted doubly-linked delayed list shared by
// all three policies. Sort order is ascending absolute wake tick, compared
// with wrap-safe signed arithmetic so the list stays correctly ordered
// across a tick-counter wrap.
type delayedList struct {
	head, tail *task.Task
}

// tickBefore reports whether a is strictly before b, tolerating wraparound
// by comparing the signed difference rather than the raw unsigned values.
func tickBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

func (d *delayedList) push(t *task.Task, now, ticks uint32) {
	t.WakeTick = now + ticks
	t.DelayedNext, t.DelayedPrev = nil, nil

	if d.head == nil {
		d.head, d.tail = t, t
		return
	}

	// Walk from head; stop at the first entry whose wake tick is after
	// t's, inserting before it (stable: equal wake ticks keep
	// insertion order, i.e. FIFO).
	for n := d.head; n != nil; n = n.DelayedNext {
		if tickBefore(t.WakeTick, n.WakeTick) {
			t.DelayedNext = n
			t.DelayedPrev = n.DelayedPrev
			if n.DelayedPrev != nil {
				n.DelayedPrev.DelayedNext = t
			} else {
				d.head = t
			}
			n.DelayedPrev = t
			return
		}
	}

	// Append at tail: every existing entry wakes no later than t.
	t.DelayedPrev = d.tail
	d.tail.DelayedNext = t
	d.tail = t
}

func (d *delayedList) remove(t *task.Task) {
	if t.DelayedNext == nil && t.DelayedPrev == nil && d.head != t {
		// not on this list
		return
	}
	if t.DelayedPrev != nil {
		t.DelayedPrev.DelayedNext = t.DelayedNext
	} else if d.head == t {
		d.head = t.DelayedNext
	}
	if t.DelayedNext != nil {
		t.DelayedNext.DelayedPrev = t.DelayedPrev
	} else if d.tail == t {
		d.tail = t.DelayedPrev
	}
	t.DelayedNext, t.DelayedPrev = nil, nil
}

// advance walks from the head, which the sort property guarantees is
// sufficient: the first unexpired entry means every later entry is also
// unexpired, so there is never a need to inspect the tail.
func (d *delayedList) advance(now uint32) []*task.Task {
	var expired []*task.Task
	for n := d.head; n != nil; {
		if tickBefore(now, n.WakeTick) {
			break
		}
		next := n.DelayedNext
		d.remove(n)
		expired = append(expired, n)
		n = next
	}
	return expired
}
