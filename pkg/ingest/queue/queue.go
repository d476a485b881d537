package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"resultdb/pkg/models"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("ingest queue full")

// ErrQueueClosed is returned when enqueue is attempted after Close.
var ErrQueueClosed = errors.New("ingest queue closed")

// Item carries one accepted record through the pipeline plus a pooled copy
// of the raw payload it was parsed from, kept so a failed flush can log the
// exact accepted bytes. Consumers MUST call Done() when finished; extra
// calls are no-ops.
type Item struct {
	Record *models.ResultRecord

	buf  *bytebufferpool.ByteBuffer
	raw  []byte
	done int32
	q    *Queue
}

// Raw returns the payload bytes the record was parsed from. Valid until
// Done is called.
func (it *Item) Raw() []byte { return it.raw }

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	if !atomic.CompareAndSwapInt32(&it.done, 0, 1) {
		return
	}
	if it.q != nil {
		atomic.AddInt64(&it.q.inFlight, -1)
	}
	it.release()
}

func (it *Item) release() {
	if it.buf != nil {
		// avoid retaining huge buffers in the pool
		if cap(it.buf.B) <= maxPooledBuffer {
			bytebufferpool.Put(it.buf)
		}
		it.buf = nil
	}
	it.raw = nil
	it.Record = nil
	it.q = nil
	itemPool.Put(it)
}

var itemPool = sync.Pool{New: func() any { return &Item{} }}

// maxPooledBuffer is the largest payload buffer returned to the pool.
// Larger ones are dropped so resident memory stays bounded.
const maxPooledBuffer = 256 * 1024

// Queue is the bounded first stage of the write pipeline: many request
// handlers produce into the channel, one dispatcher consumes it.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
	closed   int32
	inFlight int64

	enqWg     sync.WaitGroup
	closeOnce sync.Once
}

const fallbackCapacity = 1024

// New creates a bounded queue of the given capacity (>0).
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = fallbackCapacity
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out exposes items for the dispatcher. Consumers must not close it.
func (q *Queue) Out() <-chan *Item { return q.ch }

// newItem copies raw into a pooled buffer and wraps rec for the channel.
func (q *Queue) newItem(rec *models.ResultRecord, raw []byte) *Item {
	it := itemPool.Get().(*Item)
	it.Record = rec
	it.q = q
	atomic.StoreInt32(&it.done, 0)
	if len(raw) > 0 {
		bb := bytebufferpool.Get()
		bb.B = append(bb.B[:0], raw...)
		it.buf = bb
		it.raw = bb.B[:len(raw)]
	}
	return it
}

// TryEnqueue accepts rec without blocking; ErrQueueFull when at capacity.
func (q *Queue) TryEnqueue(rec *models.ResultRecord, raw []byte) error {
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}

	// The re-check under enqWg pairs with Close: either Close sees this
	// enqueue and waits for it, or this enqueue sees closed and backs out.
	q.enqWg.Add(1)
	defer q.enqWg.Done()
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}

	it := q.newItem(rec, raw)
	select {
	case q.ch <- it:
		atomic.AddInt64(&q.inFlight, 1)
		return nil
	default:
		it.release()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Enqueue blocks until rec is accepted or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, rec *models.ResultRecord, raw []byte) error {
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}

	q.enqWg.Add(1)
	defer q.enqWg.Done()
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}

	it := q.newItem(rec, raw)
	select {
	case q.ch <- it:
		atomic.AddInt64(&q.inFlight, 1)
		return nil
	case <-ctx.Done():
		it.release()
		atomic.AddUint64(&q.dropped, 1)
		return ctx.Err()
	}
}

// Close rejects further enqueues, waits out in-flight ones and closes the
// channel so the dispatcher can finish draining.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		atomic.StoreInt32(&q.closed, 1)
		q.enqWg.Wait()
		close(q.ch)
	})
}

// Len returns the number of buffered items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped counts enqueues refused for capacity or cancellation.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

// InFlight returns items accepted but not yet released via Done.
func (q *Queue) InFlight() int64 { return atomic.LoadInt64(&q.inFlight) }
