package ingest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"resultdb/pkg/config"
	"resultdb/pkg/ingest/queue"
	"resultdb/pkg/logger"
	"resultdb/pkg/models"
	"resultdb/pkg/store"
)

// idleSleep is the writer's pause between empty iterations so the pop loop
// does not spin.
const idleSleep = 10 * time.Millisecond

// loggedDropLimit bounds how many items of a failed batch get logged with
// their payload.
const loggedDropLimit = 16

// ResultWriter is one write pipeline: request handlers produce into a
// bounded channel, a dispatcher drains it into a larger ring, and a single
// writer goroutine pops the ring and commits batches on the store's
// dedicated writer connection. The split keeps commit latency from
// stalling producers holding channel slots.
type ResultWriter struct {
	name          string
	st            *store.Store
	q             *queue.Queue
	ring          *queue.Ring
	batchSize     int
	flushInterval time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewResultWriter builds the pipeline and starts the dispatcher and writer
// goroutines. The channel holds batch_size*8 items, the ring
// max(batch_size*16, 1024).
func NewResultWriter(name string, st *store.Store, cfg config.WriterConfig) *ResultWriter {
	ringCap := cfg.BatchSize * 16
	if ringCap < 1024 {
		ringCap = 1024
	}
	w := &ResultWriter{
		name:          name,
		st:            st,
		q:             queue.New(cfg.BatchSize * 8),
		ring:          queue.NewRing(ringCap),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval(),
		done:          make(chan struct{}),
	}
	go w.dispatch()
	go w.run()
	logger.Info("writer_started",
		"writer", name,
		"batch_size", cfg.BatchSize,
		"flush_interval_ms", cfg.FlushIntervalMS,
		"queue_cap", w.q.Cap(),
		"ring_cap", w.ring.Cap())
	return w
}

// Name returns the registry key this writer serves.
func (w *ResultWriter) Name() string { return w.name }

// Enqueue blocks until rec is accepted, the queue closes or ctx is done.
func (w *ResultWriter) Enqueue(ctx context.Context, rec *models.ResultRecord, raw []byte) error {
	if err := w.q.Enqueue(ctx, rec, raw); err != nil {
		droppedTotal.WithLabelValues(w.name).Inc()
		return err
	}
	enqueuedTotal.WithLabelValues(w.name).Inc()
	return nil
}

// TryEnqueue accepts rec without blocking.
func (w *ResultWriter) TryEnqueue(rec *models.ResultRecord, raw []byte) error {
	if err := w.q.TryEnqueue(rec, raw); err != nil {
		droppedTotal.WithLabelValues(w.name).Inc()
		return err
	}
	enqueuedTotal.WithLabelValues(w.name).Inc()
	return nil
}

// EnqueueAny implements the type-erased registry contract.
func (w *ResultWriter) EnqueueAny(ctx context.Context, msg any, raw []byte) error {
	rec, ok := msg.(*models.ResultRecord)
	if !ok {
		return ErrTypeMismatch
	}
	return w.Enqueue(ctx, rec, raw)
}

// Alive reports whether the writer goroutine is still running.
func (w *ResultWriter) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Close stops intake and waits for the pipeline to drain. Items still
// buffered when ctx expires are dropped; the queue keeps a dropped counter
// and the loss is deliberate.
func (w *ResultWriter) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		// Close waits for in-flight enqueues, so run it off this goroutine
		// and bound the whole drain by ctx instead.
		go w.q.Close()
	})
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		logger.Warn("writer_drain_deadline",
			"writer", w.name,
			"queued", w.q.Len(),
			"ringed", w.ring.Len())
		return ctx.Err()
	}
}

// dispatch transfers the channel into the ring as fast as it can, yielding
// when the ring is momentarily full. It closes the ring only after the
// channel is closed and fully transferred, so closed-and-empty is terminal
// for the writer.
func (w *ResultWriter) dispatch() {
	for it := range w.q.Out() {
		for !w.ring.Push(it) {
			runtime.Gosched()
		}
	}
	w.ring.Close()
}

// run is the single consumer: fill the buffer from the ring, flush on size
// or interval, drain fully once the ring closes, then exit.
func (w *ResultWriter) run() {
	defer close(w.done)

	buf := make([]*queue.Item, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		for len(buf) < w.batchSize {
			it, ok := w.ring.Pop()
			if !ok {
				break
			}
			buf = append(buf, it)
		}

		if len(buf) >= w.batchSize || (len(buf) > 0 && time.Since(lastFlush) >= w.flushInterval) {
			w.flush(buf)
			buf = buf[:0]
			lastFlush = time.Now()
		}

		if w.ring.Closed() {
			for {
				it, ok := w.ring.Pop()
				if !ok {
					break
				}
				buf = append(buf, it)
				if len(buf) >= w.batchSize {
					w.flush(buf)
					buf = buf[:0]
				}
			}
			if len(buf) > 0 {
				w.flush(buf)
			}
			logger.Info("writer_drained", "writer", w.name)
			return
		}

		time.Sleep(idleSleep)
	}
}

// flush commits one batch in a single transaction. A failed commit drops
// the batch: the error and the accepted payloads are logged, nothing is
// retried, and the ring keeps absorbing new arrivals meanwhile.
func (w *ResultWriter) flush(items []*queue.Item) {
	start := time.Now()
	recs := make([]*models.ResultRecord, len(items))
	for i, it := range items {
		recs[i] = it.Record
	}

	err := w.st.UpsertResults(context.Background(), recs)
	flushDuration.WithLabelValues(w.name).Observe(time.Since(start).Seconds())
	if err != nil {
		flushFailures.WithLabelValues(w.name).Inc()
		logger.Error("flush_failed", "writer", w.name, "items", len(items), "error", err)
		for i, it := range items {
			if i == loggedDropLimit {
				logger.Error("flush_dropped_more", "writer", w.name, "omitted", len(items)-loggedDropLimit)
				break
			}
			logger.Error("flush_dropped_item",
				"writer", w.name,
				"execution_id", it.Record.ExecutionID,
				"name", it.Record.Name,
				"payload", string(it.Raw()))
		}
	} else {
		flushTotal.WithLabelValues(w.name).Inc()
		flushBatchSize.WithLabelValues(w.name).Observe(float64(len(items)))
		logger.Debug("flush_committed", "writer", w.name, "items", len(items), "elapsed_ms", time.Since(start).Milliseconds())
	}

	for _, it := range items {
		it.Done()
	}
}
