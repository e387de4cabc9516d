package pipeline

import (
	"fmt"
	"sync"
	"testing"
	"time"

	domorder "github.com/Zhima-Mochi/orderflow/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOrder(t *testing.T, id string) *domorder.Order {
	t.Helper()
	o, err := domorder.New(id, "customer-1", "sku-1", 1, 100)
	require.NoError(t, err)
	return o
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(16)

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(makeOrder(t, fmt.Sprintf("order-%d", i))))
	}

	for i := 0; i < 10; i++ {
		o, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("order-%d", i), o.ID)
	}
	assert.True(t, q.Empty())
}

func TestQueue_NoDoubleDequeue(t *testing.T) {
	const (
		producers = 4
		consumers = 4
		perProd   = 50
	)
	q := NewQueue(8)

	var prodWG sync.WaitGroup
	for p := 0; p < producers; p++ {
		prodWG.Add(1)
		go func(p int) {
			defer prodWG.Done()
			for i := 0; i < perProd; i++ {
				assert.NoError(t, q.Enqueue(makeOrder(t, fmt.Sprintf("p%d-o%d", p, i))))
			}
		}(p)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	var consWG sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consWG.Add(1)
		go func() {
			defer consWG.Done()
			for {
				o, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[o.ID]++
				mu.Unlock()
			}
		}()
	}

	prodWG.Wait()
	q.Close()
	consWG.Wait()

	// Union of per-consumer work equals the enqueued set, each exactly once.
	assert.Len(t, seen, producers*perProd)
	for id, n := range seen {
		assert.Equal(t, 1, n, "order %s dequeued %d times", id, n)
	}
}

func TestQueue_BackpressureBlocksProducer(t *testing.T) {
	const capacity = 3
	q := NewQueue(capacity)

	for i := 0; i < capacity; i++ {
		require.NoError(t, q.Enqueue(makeOrder(t, fmt.Sprintf("fill-%d", i))))
	}

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- q.Enqueue(makeOrder(t, "overflow"))
	}()

	select {
	case <-unblocked:
		t.Fatal("enqueue over capacity should block")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, capacity, q.Len())

	// One dequeue frees exactly one slot and wakes the blocked producer.
	_, ok := q.Dequeue()
	require.True(t, ok)

	select {
	case err := <-unblocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked producer was not woken by dequeue")
	}
	assert.Equal(t, capacity, q.Len())
}

func TestQueue_CloseFailsPendingAndFutureEnqueues(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Enqueue(makeOrder(t, "held")))

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Enqueue(makeOrder(t, "stuck"))
	}()
	time.Sleep(20 * time.Millisecond)

	q.Close()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked producer not woken by Close")
	}

	assert.ErrorIs(t, q.Enqueue(makeOrder(t, "late")), ErrQueueClosed)
	assert.True(t, q.Closed())
}

func TestQueue_DrainsThenSentinel(t *testing.T) {
	q := NewQueue(8)
	require.NoError(t, q.Enqueue(makeOrder(t, "a")))
	require.NoError(t, q.Enqueue(makeOrder(t, "b")))

	q.Close()

	// Buffered orders stay dequeueable after Close.
	o, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "a", o.ID)
	o, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "b", o.ID)

	// Then the end-of-work sentinel, immediately and repeatedly.
	o, ok = q.Dequeue()
	assert.Nil(t, o)
	assert.False(t, ok)
	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueue_CloseWakesBlockedConsumers(t *testing.T) {
	q := NewQueue(4)

	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, ok := q.Dequeue()
			results <- ok
		}()
	}
	time.Sleep(20 * time.Millisecond)

	q.Close()

	for i := 0; i < 3; i++ {
		select {
		case ok := <-results:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("blocked consumer not woken by Close")
		}
	}
}

func TestQueue_CloseIsIdempotent(t *testing.T) {
	q := NewQueue(2)
	q.Close()
	q.Close()
	assert.True(t, q.Closed())
}
