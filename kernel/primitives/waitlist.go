// Package primitives implements the kernel's synchronization objects
// the recursive priority-inheriting mutex, the counting semaphore, and the
// bounded message queue. All three block on the scheduler through the
// Blocker seam rather than owning any scheduling logic themselves.
package primitives

import "github.com/joeycumines/go-vrtos/kernel/task"

// WaitList is the priority-ordered wait list shared by every sync
// primitive.
type WaitList struct {
	head, tail *task.Task
	len        int
}

// insert places t after every existing waiter whose effective priority is
// still >= t's, so ties resolve FIFO.
func (w *WaitList) insert(t *task.Task) {
	t.WaitNext, t.WaitPrev = nil, nil
	if w.head == nil {
		w.head, w.tail = t, t
		w.len++
		return
	}
	for n := w.head; n != nil; n = n.WaitNext {
		if t.EffPriority > n.EffPriority {
			t.WaitNext = n
			t.WaitPrev = n.WaitPrev
			if n.WaitPrev != nil {
				n.WaitPrev.WaitNext = t
			} else {
				w.head = t
			}
			n.WaitPrev = t
			w.len++
			return
		}
	}
	t.WaitPrev = w.tail
	w.tail.WaitNext = t
	w.tail = t
	w.len++
}

func (w *WaitList) remove(t *task.Task) {
	if w.head != t && t.WaitPrev == nil && t.WaitNext == nil {
		return // not on this list
	}
	if t.WaitPrev != nil {
		t.WaitPrev.WaitNext = t.WaitNext
	} else if w.head == t {
		w.head = t.WaitNext
	}
	if t.WaitNext != nil {
		t.WaitNext.WaitPrev = t.WaitPrev
	} else if w.tail == t {
		w.tail = t.WaitPrev
	}
	t.WaitNext, t.WaitPrev = nil, nil
	if w.len > 0 {
		w.len--
	}
}

// popHighest removes and returns the head (highest priority, oldest among
// ties) waiter, or nil if the list is empty.
func (w *WaitList) popHighest() *task.Task {
	t := w.head
	if t == nil {
		return nil
	}
	w.remove(t)
	return t
}

func (w *WaitList) empty() bool { return w.head == nil }

func (w *WaitList) Len() int { return w.len }
