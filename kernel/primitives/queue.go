package primitives

import (
	"github.com/joeycumines/go-vrtos/kernel/status"
	"github.com/joeycumines/go-vrtos/kernel/task"
)

// Queue is a fixed-capacity circular buffer of fixed-size items, with
// independent sender and receiver wait lists. Items are copied by value
// in and out (here, by assignment of the element type E); the queue never
// allocates per-item.
type Queue[E any] struct {
	b Blocker

	buf        []E
	head, tail int // head: next to read; tail: next to write
	count      int

	senders   WaitList // tasks blocked in Send, waiting for room
	receivers WaitList // tasks blocked in Receive, waiting for an item

	// pendingSend/pendingRecv stage the item a blocked Send/Receive call is
	// carrying, so whichever call completes the handoff (Receive for a
	// blocked sender, Send for a blocked receiver) can deposit or deliver it
	// itself, under the same lock acquisition that pops the waiter. The
	// woken task then only has to read the staged value back out — it never
	// re-touches the buffer or re-checks fullness/emptiness, so no third
	// task can race in between the wake and the waiter's actual resumption.
	pendingSend map[*task.Task]E
	pendingRecv map[*task.Task]E
}

// NewQueue constructs a Queue of the given item capacity.
func NewQueue[E any](b Blocker, capacity int) *Queue[E] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[E]{b: b, buf: make([]E, capacity)}
}

// Send enqueues item, blocking the caller for up to timeoutTicks if the
// queue is full.
func (q *Queue[E]) Send(item E, timeoutTicks uint32) status.Status {
	q.b.Lock()
	defer q.b.Unlock()

	// A receiver can only be waiting if the buffer is currently empty:
	// every Send that adds an item also completes any pending handoff in
	// the same call, below. So when one is waiting, hand the item straight
	// across without ever writing it into the buffer.
	if w := q.receivers.popHighest(); w != nil {
		w.BlockedOn = nil
		w.BlockedOnTag = task.BlockedOnNone
		q.stagePendingRecv(w, item)
		q.b.Wake(w)
		return status.Success
	}

	if q.count == len(q.buf) {
		if timeoutTicks == 0 {
			return status.Timeout
		}
		caller := q.b.Current()
		q.senders.insert(caller)
		caller.BlockedOn = q
		caller.BlockedOnTag = task.BlockedOnQueue
		q.stagePendingSend(caller, item)

		st := q.b.Block(caller, timeoutTicks)
		if st != status.Success {
			if caller.BlockedOn == q {
				q.senders.remove(caller)
				caller.BlockedOn = nil
				caller.BlockedOnTag = task.BlockedOnNone
			}
			q.clearPendingSend(caller)
			return st
		}
		// Woken: whichever Receive call freed our slot already deposited
		// our item into the buffer on our behalf.
		return status.Success
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	return status.Success
}

// TrySend is Send(item, 0): a non-blocking attempt.
func (q *Queue[E]) TrySend(item E) status.Status { return q.Send(item, 0) }

// Receive dequeues an item, blocking the caller for up to timeoutTicks if
// the queue is empty.
func (q *Queue[E]) Receive(timeoutTicks uint32) (E, status.Status) {
	q.b.Lock()
	defer q.b.Unlock()

	// A sender can only be waiting if the buffer is currently full: free
	// its reserved slot and hand its pending item straight to whoever
	// dequeues next, in the same call that makes room for it.
	if w := q.senders.popHighest(); w != nil {
		item := q.buf[q.head]
		q.head = (q.head + 1) % len(q.buf)
		q.count--

		pending := q.takePendingSend(w)
		q.buf[q.tail] = pending
		q.tail = (q.tail + 1) % len(q.buf)
		q.count++

		w.BlockedOn = nil
		w.BlockedOnTag = task.BlockedOnNone
		q.b.Wake(w)
		return item, status.Success
	}

	if q.count == 0 {
		var zero E
		if timeoutTicks == 0 {
			return zero, status.Timeout
		}
		caller := q.b.Current()
		q.receivers.insert(caller)
		caller.BlockedOn = q
		caller.BlockedOnTag = task.BlockedOnQueue

		st := q.b.Block(caller, timeoutTicks)
		if st != status.Success {
			if caller.BlockedOn == q {
				q.receivers.remove(caller)
				caller.BlockedOn = nil
				caller.BlockedOnTag = task.BlockedOnNone
			}
			return zero, st
		}
		// Woken: whichever Send call completed the handoff already staged
		// our item; it was never written to the buffer.
		return q.takePendingRecv(caller), status.Success
	}

	item := q.buf[q.head]
	var zero E
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return item, status.Success
}

// TryReceive is Receive(0): a non-blocking attempt.
func (q *Queue[E]) TryReceive() (E, status.Status) { return q.Receive(0) }

// Reset empties the queue and releases every blocked sender and receiver
// with status.Reset.
func (q *Queue[E]) Reset() {
	q.b.Lock()
	defer q.b.Unlock()

	var zero E
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head, q.tail, q.count = 0, 0, 0

	for {
		w := q.senders.popHighest()
		if w == nil {
			break
		}
		w.BlockedOn = nil
		w.BlockedOnTag = task.BlockedOnNone
		w.WakeStatus = status.Reset
		q.b.Wake(w)
	}
	for {
		w := q.receivers.popHighest()
		if w == nil {
			break
		}
		w.BlockedOn = nil
		w.BlockedOnTag = task.BlockedOnNone
		w.WakeStatus = status.Reset
		q.b.Wake(w)
	}

	// Every waiter was just force-released without ever reading back a
	// staged value, so the whole stage can be dropped rather than picked
	// clean entry by entry.
	q.pendingSend = nil
	q.pendingRecv = nil
}

// Len reports the number of items currently queued.
func (q *Queue[E]) Len() int { return q.count }

// Cap reports the queue's fixed capacity.
func (q *Queue[E]) Cap() int { return len(q.buf) }

// IsFull reports whether the queue is at capacity.
func (q *Queue[E]) IsFull() bool { return q.count == len(q.buf) }

// IsEmpty reports whether the queue holds no items.
func (q *Queue[E]) IsEmpty() bool { return q.count == 0 }

// SpacesAvailable reports how many more items can be sent before the queue
// is full.
func (q *Queue[E]) SpacesAvailable() int { return len(q.buf) - q.count }

func (q *Queue[E]) stagePendingSend(t *task.Task, item E) {
	if q.pendingSend == nil {
		q.pendingSend = make(map[*task.Task]E, 1)
	}
	q.pendingSend[t] = item
}

func (q *Queue[E]) takePendingSend(t *task.Task) E {
	item := q.pendingSend[t]
	delete(q.pendingSend, t)
	return item
}

func (q *Queue[E]) clearPendingSend(t *task.Task) {
	delete(q.pendingSend, t)
}

func (q *Queue[E]) stagePendingRecv(t *task.Task, item E) {
	if q.pendingRecv == nil {
		q.pendingRecv = make(map[*task.Task]E, 1)
	}
	q.pendingRecv[t] = item
}

func (q *Queue[E]) takePendingRecv(t *task.Task) E {
	item := q.pendingRecv[t]
	delete(q.pendingRecv, t)
	return item
}
