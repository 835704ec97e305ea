package pool

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// creationRequest is the "please create" message sent from CheckOut-side
// code to the creation loop.
type creationRequest struct {
	enqueuedAt time.Time
}

// requestQueue is an unbounded MPSC queue (spec.md §5 "the creation-request
// channel is a standard MPSC unbounded queue"). Go channels are bounded by
// construction, so push grows a slice under a mutex instead of ever
// blocking; pop waits on a 1-buffered signal channel when the queue is
// momentarily empty.
type requestQueue struct {
	mu     sync.Mutex
	items  []creationRequest
	signal chan struct{}
	closed bool
}

func newRequestQueue() *requestQueue {
	return &requestQueue{signal: make(chan struct{}, 1)}
}

func (q *requestQueue) push(r creationRequest) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.notify()
}

func (q *requestQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *requestQueue) pop(ctx context.Context) (creationRequest, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			r := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return r, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return creationRequest{}, false
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return creationRequest{}, false
		}
	}
}

func (q *requestQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// CreationLoop is the single long-lived task (C5) that drives a factory
// with backoff and inserts fresh handles. There is at most one per inner
// pool; it processes requests serially off the queue, but RequestNewConn
// sends may queue up faster than it drains them.
type CreationLoop[T Poolable] struct {
	Pool     *InnerPool[T]
	Factory  ConnectionFactory[T]
	Backoff  BackoffStrategy
	Observer Observer
	Logger   zerolog.Logger
}

// Run drains the pool's request queue until ctx is cancelled, which is
// this inner pool's Shutdown.
func (c *CreationLoop[T]) Run(ctx context.Context) {
	for {
		_, ok := c.Pool.newConnQueue.pop(ctx)
		if !ok {
			return
		}
		c.createUntilSuccess(ctx)
	}
}

// createUntilSuccess drives the factory with backoff until it either
// succeeds or ctx is cancelled. Per spec.md §4.4 step 3, a strategy that
// returns ok=false is treated as "retry immediately" — giving up forever
// is not modelled at this level.
func (c *CreationLoop[T]) createUntilSuccess(ctx context.Context) {
	start := time.Now()
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dialStart := time.Now()
		conn, err := c.Factory.CreateConnection(ctx)
		if err == nil {
			h := newManagedHandle(conn, c.Pool)
			c.Pool.checkIn(parcel[T]{kind: parcelFresh, handle: h})
			c.Observer.ConnectionCreated(time.Since(dialStart), time.Since(start))
			return
		}

		c.Observer.ConnectionFactoryFailed()
		c.Logger.Warn().
			Err(err).
			Strs("targets", c.Factory.Targets()).
			Int("attempt", attempt).
			Msg("connection factory failed")

		delay, ok := c.Backoff.NextDelay(attempt)
		if !ok {
			attempt = 0
			continue
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		attempt++
	}
}
