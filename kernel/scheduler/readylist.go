package scheduler

import "github.com/joeycumines/go-vrtos/kernel/task"

// fifoList is an intrusive head/tail FIFO over task.Task's scheduling
// link, shared by the cooperative and round-robin policies for their
// single ready list, and by fixed-priority for each per-level list.
type fifoList struct {
	head, tail *task.Task
	len        int
}

func (l *fifoList) pushTail(t *task.Task) {
	t.SchedNext, t.SchedPrev = nil, nil
	if l.tail == nil {
		l.head, l.tail = t, t
	} else {
		t.SchedPrev = l.tail
		l.tail.SchedNext = t
		l.tail = t
	}
	l.len++
}

func (l *fifoList) popHead() *task.Task {
	t := l.head
	if t == nil {
		return nil
	}
	l.remove(t)
	return t
}

func (l *fifoList) remove(t *task.Task) {
	if l.head != t && t.SchedPrev == nil && t.SchedNext == nil {
		return // not on this list
	}
	if t.SchedPrev != nil {
		t.SchedPrev.SchedNext = t.SchedNext
	} else if l.head == t {
		l.head = t.SchedNext
	}
	if t.SchedNext != nil {
		t.SchedNext.SchedPrev = t.SchedPrev
	} else if l.tail == t {
		l.tail = t.SchedPrev
	}
	t.SchedNext, t.SchedPrev = nil, nil
	if l.len > 0 {
		l.len--
	}
}

func (l *fifoList) empty() bool { return l.head == nil }
