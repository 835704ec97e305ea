package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ActivationOrder selects how the idle stack is drained. LIFO maximises
// cache warmth and lets cold connections age out; FIFO equalises usage
// across connections.
type ActivationOrder int

const (
	LIFO ActivationOrder = iota
	FIFO
)

// InnerPoolConfig is the immutable configuration carried by one InnerPool.
type InnerPoolConfig struct {
	DesiredPoolSize int
	// ReservationLimit is spec.md's `RESERVATION_LIMIT: int or NONE`: nil
	// means unbounded, a pointer to zero means zero waiter capacity (every
	// checkout that can't be satisfied from idle is rejected outright).
	// Must stay a pointer — collapsing "unset" and "set to zero" onto a
	// bare int with 0-as-sentinel breaks spec.md's mandatory scenario S1.
	ReservationLimit *int
	ActivationOrder  ActivationOrder
	Backoff          BackoffStrategy
	StatsInterval    time.Duration
}

// InnerPool is the arbitration core for one node: idle stack, waiter
// queue, counters, invariants (spec.md §3, §4.2). Every field but the
// atomics is protected by mu; the atomics exist so stats reads never need
// the lock.
type InnerPool[T Poolable] struct {
	mu      sync.Mutex
	idle    []*ManagedHandle[T]
	waiters []*waiter[T]

	poolSize     atomic.Int64
	inFlight     atomic.Int64
	idleCount    atomic.Int64
	waitingCount atomic.Int64

	newConnQueue *requestQueue

	cfg      InnerPoolConfig
	observer Observer
	targets  []string
}

func newInnerPool[T Poolable](targets []string, cfg InnerPoolConfig, observer Observer) *InnerPool[T] {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &InnerPool[T]{
		targets:      targets,
		cfg:          cfg,
		observer:     observer,
		newConnQueue: newRequestQueue(),
	}
}

// Targets reports the URI(s) this inner pool's factory dials.
func (p *InnerPool[T]) Targets() []string { return p.targets }

// Stats takes a lock-free atomic snapshot. Per spec.md §5 it is
// "eventually consistent with the locked state" — a sampled view, not a
// point-in-time transaction.
func (p *InnerPool[T]) Stats() Stats {
	return Stats{
		PoolSize: p.poolSize.Load(),
		Idle:     p.idleCount.Load(),
		InFlight: p.inFlight.Load(),
		Waiting:  p.waitingCount.Load(),
	}
}

func (p *InnerPool[T]) popIdleLocked() *ManagedHandle[T] {
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	var h *ManagedHandle[T]
	if p.cfg.ActivationOrder == LIFO {
		h = p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
	} else {
		h = p.idle[0]
		p.idle[0] = nil
		p.idle = p.idle[1:]
	}
	return h
}

// CheckOut implements spec.md §4.2 check_out. The timeout, if any, is
// carried by ctx's deadline — callers that want "Some(0): only if an idle
// handle is immediately available" should pass a context whose deadline
// has already elapsed; CheckOut special-cases that to avoid enqueuing (and
// thus emitting reservation_added) for a reservation the caller never
// intended to wait for.
func (p *InnerPool[T]) CheckOut(ctx context.Context) (*ManagedHandle[T], error) {
	p.mu.Lock()
	if h := p.popIdleLocked(); h != nil {
		p.idleCount.Add(-1)
		p.inFlight.Add(1)
		h.checkedOutAt = time.Now()
		p.mu.Unlock()
		watchForLeak(h)
		p.observer.CheckedOut()
		return h, nil
	}

	if p.cfg.ReservationLimit != nil && len(p.waiters) >= *p.cfg.ReservationLimit {
		p.mu.Unlock()
		p.observer.ReservationLimitReached()
		return nil, ErrReservationLimitReached
	}

	select {
	case <-ctx.Done():
		p.mu.Unlock()
		return nil, ErrCheckoutTimeout
	default:
	}

	w := newCheckoutWaiter[T]()
	p.waiters = append(p.waiters, w)
	p.waitingCount.Add(1)
	p.mu.Unlock()
	p.observer.ReservationAdded()

	select {
	case res := <-w.ch:
		if res.err != nil {
			return nil, res.err
		}
		p.observer.ReservationFulfilled(time.Since(w.waitingSince))
		watchForLeak(res.handle)
		return res.handle, nil
	case <-ctx.Done():
		if w.claimed.CompareAndSwap(false, true) {
			return nil, ErrCheckoutTimeout
		}
		// Lost the race: check_in already claimed this waiter and is
		// about to send — the channel is buffered, so this never blocks
		// for long.
		res := <-w.ch
		if res.err != nil {
			return nil, res.err
		}
		p.observer.ReservationFulfilled(time.Since(w.waitingSince))
		watchForLeak(res.handle)
		return res.handle, nil
	}
}

// RemoveConn voluntarily shrinks the pool by one. If an idle handle is
// available it is killed immediately; otherwise a ReducePoolSize sentinel
// is queued so the next handle to check in is killed instead of returned,
// never racing a live checkout.
func (p *InnerPool[T]) RemoveConn() {
	p.mu.Lock()
	if h := p.popIdleLocked(); h != nil {
		p.idleCount.Add(-1)
		p.mu.Unlock()
		p.kill(h)
		return
	}
	p.waiters = append(p.waiters, newReducePoolSizeWaiter[T]())
	p.waitingCount.Add(1)
	p.mu.Unlock()
}

// requestNewConn sends a non-blocking "please create" message. The queue
// is unbounded so this never fails or blocks.
func (p *InnerPool[T]) requestNewConn() {
	p.newConnQueue.push(creationRequest{enqueuedAt: time.Now()})
}

func (p *InnerPool[T]) kill(h *ManagedHandle[T]) {
	h.markedForKill = true
	h.closeUnderlying()
	p.checkIn(parcel[T]{kind: parcelKilled, lifetime: time.Since(h.createdAt)})
}

// parcelKind tags the check_in sum type (spec.md §4.2).
type parcelKind int

const (
	parcelFresh parcelKind = iota
	parcelAlive
	parcelKilled
	parcelDropped
)

type parcel[T Poolable] struct {
	kind       parcelKind
	handle     *ManagedHandle[T]
	flightTime *time.Duration
	lifetime   time.Duration
}

// checkIn is invoked by ManagedHandle.Close — never directly by callers —
// plus by the creation loop for Fresh handles and by kill for voluntary
// shrinks. It is the single point where pool-size and idle/in-flight
// accounting are reconciled (spec.md §4.2 check_in).
func (p *InnerPool[T]) checkIn(prc parcel[T]) {
	switch prc.kind {
	case parcelFresh:
		p.poolSize.Add(1)
		p.foldAlive(prc.handle, false)
		p.observer.CheckedInNew()
	case parcelAlive:
		flight := time.Since(prc.handle.checkedOutAt)
		p.foldAlive(prc.handle, true)
		p.observer.CheckedInReturned(flight)
	case parcelKilled:
		p.poolSize.Add(-1)
		p.observer.KilledConnection(prc.lifetime)
	case parcelDropped:
		p.poolSize.Add(-1)
		if prc.flightTime != nil {
			p.inFlight.Add(-1)
		}
		p.observer.ConnectionDropped(prc.flightTime, prc.lifetime)
		p.requestNewConn()
	}
}

// foldAlive implements spec.md §4.2's Alive/Fresh folding: offer the
// handle to the oldest waiter that is still willing to receive it, and
// only fall back to idle once every waiter has been tried or the queue is
// empty. wasCheckedOut distinguishes a returning (previously in-flight)
// handle from a brand-new one that never counted against in_flight.
func (p *InnerPool[T]) foldAlive(h *ManagedHandle[T], wasCheckedOut bool) {
	h.checkedOutAt = time.Time{}

	// Abandoned waiters are reported only after the lock is released.
	var abandoned []time.Duration
	reportAbandoned := func() {
		for _, d := range abandoned {
			p.observer.ReservationNotFulfilled(d)
		}
	}

	p.mu.Lock()
	if wasCheckedOut {
		p.inFlight.Add(-1)
	}

	for len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.waitingCount.Add(-1)

		switch w.kind {
		case waiterReducePoolSize:
			h.markedForKill = true
			p.mu.Unlock()
			reportAbandoned()
			h.closeUnderlying()
			p.checkIn(parcel[T]{kind: parcelKilled, lifetime: time.Since(h.createdAt)})
			return

		case waiterCheckout:
			if !w.claimed.CompareAndSwap(false, true) {
				// Abandoned: the caller's deadline already fired. Offer
				// the handle to the next waiter instead.
				abandoned = append(abandoned, time.Since(w.waitingSince))
				continue
			}
			p.inFlight.Add(1)
			h.checkedOutAt = time.Now()
			p.mu.Unlock()
			reportAbandoned()
			w.ch <- checkoutResult[T]{handle: h}
			return
		}
	}

	p.idle = append(p.idle, h)
	p.idleCount.Add(1)
	p.mu.Unlock()
	reportAbandoned()
}

// Stats is a point-in-time sampled snapshot of one pool's counters.
type Stats struct {
	PoolSize int64
	Idle     int64
	InFlight int64
	Waiting  int64
}
