package pool

import (
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ManagedHandle wraps a live connection with lifecycle metadata. Routing a
// handle back into the pool happens at exactly one place — Close — since
// Go has no destructor hook equivalent to a RAII drop. Close is mandatory:
// callers that forget to call it leak a slot forever, so a finalizer is
// installed as a last-resort safety net that force-returns the handle, the
// same belt-and-suspenders pattern *os.File uses.
type ManagedHandle[T Poolable] struct {
	ID        uuid.UUID
	value     *T
	createdAt time.Time

	checkedOutAt time.Time
	markedForKill bool

	// pool is a plain pointer, so a handle keeps its InnerPool reachable.
	// Close returns the handle to that InnerPool even after the owning
	// SinglePool or MultiPool has been closed; the connection is dropped
	// instead only when pool is nil.
	pool *InnerPool[T]

	closed atomic.Bool
}

func newManagedHandle[T Poolable](conn T, p *InnerPool[T]) *ManagedHandle[T] {
	return &ManagedHandle[T]{
		ID:        uuid.New(),
		value:     &conn,
		createdAt: time.Now(),
		pool:      p,
	}
}

func finalizeLeakedHandle[T Poolable](h *ManagedHandle[T]) {
	h.Close()
}

// watchForLeak re-arms Close for the new holder and arms the safety-net
// finalizer. Called each time the handle is handed to a caller (idle
// handles sitting in the pool are never at risk of being silently dropped
// by a caller, so there is nothing to watch).
func watchForLeak[T Poolable](h *ManagedHandle[T]) {
	h.closed.Store(false)
	runtime.SetFinalizer(h, finalizeLeakedHandle[T])
}

// Value returns the wrapped connection. A nil return means the connection
// is defective and must not be used.
func (h *ManagedHandle[T]) Value() *T { return h.value }

// MarkDefective clears the connection value. Close on a defective handle
// routes a Dropped parcel back to the pool instead of returning it to
// idle (spec.md §3 invariant 5).
func (h *ManagedHandle[T]) MarkDefective() { h.value = nil }

// CreatedAt reports when the underlying connection was established.
func (h *ManagedHandle[T]) CreatedAt() time.Time { return h.createdAt }

// Close is the single point where a handle re-enters the pool. It is safe
// to call more than once; only the first call has any effect. Callers
// must call it exactly once when done with the connection — there is no
// implicit return.
func (h *ManagedHandle[T]) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	runtime.SetFinalizer(h, nil)

	p := h.pool
	if p == nil {
		h.closeUnderlying()
		return
	}

	if h.value == nil {
		lifetime := time.Since(h.createdAt)
		var flight *time.Duration
		if !h.checkedOutAt.IsZero() {
			d := time.Since(h.checkedOutAt)
			flight = &d
		}
		p.checkIn(parcel[T]{kind: parcelDropped, flightTime: flight, lifetime: lifetime})
		return
	}

	p.checkIn(parcel[T]{kind: parcelAlive, handle: h})
}

func (h *ManagedHandle[T]) closeUnderlying() {
	if h.value == nil {
		return
	}
	if c, ok := any(*h.value).(io.Closer); ok {
		_ = c.Close()
	}
}
