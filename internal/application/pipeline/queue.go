package pipeline

import (
	"errors"
	"sync"

	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
)

// ErrQueueClosed is returned to producers once shutdown has been requested.
var ErrQueueClosed = errors.New("pipeline: queue closed")

// Queue is a bounded FIFO hand-off between producers and workers. It is a
// classic monitor: one mutex, two predicate-guarded condition variables.
// Dequeue transfers exclusive ownership of the order to the calling worker,
// which is what keeps per-order processing single-writer.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf      []*domorder.Order
	capacity int
	closed   bool
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{
		buf:      make([]*domorder.Order, 0, capacity),
		capacity: capacity,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends the order, blocking while the queue is at capacity. A
// producer blocked here is woken by each dequeue or by Close; once the queue
// is closed the attempt fails with ErrQueueClosed instead of enqueuing.
func (q *Queue) Enqueue(o *domorder.Order) error {
	if o == nil {
		return errors.New("pipeline: nil order")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.buf) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.buf = append(q.buf, o)
	q.notEmpty.Signal()
	return nil
}

// Dequeue removes the oldest order, blocking while the queue is empty. When
// the queue is empty and closed it returns (nil, false): the end-of-work
// sentinel workers use to exit their loop.
func (q *Queue) Dequeue() (*domorder.Order, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.buf) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.buf) == 0 {
		return nil, false
	}

	o := q.buf[0]
	q.buf[0] = nil
	q.buf = q.buf[1:]
	q.notFull.Signal()
	return o, true
}

// Close is idempotent. It wakes every blocked producer and consumer so each
// re-evaluates the closed state instead of hanging. Orders already buffered
// remain dequeueable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *Queue) Empty() bool {
	return q.Len() == 0
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
