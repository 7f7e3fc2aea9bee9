package device

import (
	"context"
	"sync"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// control is an out-of-band instruction that travels through the inbox
// alongside protocol commands.
type control int

const (
	ctlNone control = iota
	ctlFault
	ctlClearFault
	ctlComplete
	ctlBarrier
)

func (c control) String() string {
	switch c {
	case ctlFault:
		return "fault"
	case ctlClearFault:
		return "clear-fault"
	case ctlComplete:
		return "complete"
	case ctlBarrier:
		return "barrier"
	default:
		return "none"
	}
}

// item is one unit of actor work: either a protocol command or a control.
type item struct {
	cmd rcp.Command
	ctl control

	codes  []int         // ctlFault
	expect int64         // ctlComplete: EventSeq the trigger was armed at, -1 for any
	done   chan struct{} // ctlBarrier
}

func (it item) name() string {
	if it.cmd != nil {
		return it.cmd.Name()
	}
	return it.ctl.String()
}

// inbox is an unbounded multi-producer, single-consumer FIFO.
//
// Producers never block. The signal channel holds at most one pending
// wake-up; the consumer re-checks the slice after every wake.
type inbox struct {
	mu     sync.Mutex
	items  []item
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{signal: make(chan struct{}, 1)}
}

// push appends an item. It returns false once the inbox is closed.
func (q *inbox) push(it item) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.wake()
	return true
}

// pushFront jumps the queue. Used for faults, which must overtake work that
// is still waiting.
func (q *inbox) pushFront(it item) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append([]item{it}, q.items...)
	q.mu.Unlock()
	q.wake()
	return true
}

func (q *inbox) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// next blocks until an item is available, the inbox is closed and empty,
// or ctx is done.
func (q *inbox) next(ctx context.Context) (item, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items[0] = item{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return it, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return item{}, false
		}

		select {
		case <-q.signal:
		case <-ctx.Done():
			return item{}, false
		}
	}
}

// close rejects further pushes. Items already queued are still delivered.
func (q *inbox) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// len returns the number of waiting items.
func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
