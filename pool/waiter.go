package pool

import (
	"sync/atomic"
	"time"
)

// waiterKind tags the Waiter sum type (spec.md §9 "no polymorphic dispatch
// needed").
type waiterKind int

const (
	waiterCheckout waiterKind = iota
	waiterReducePoolSize
)

// checkoutResult is the value carried over a waiter's one-shot channel.
type checkoutResult[T Poolable] struct {
	handle *ManagedHandle[T]
	err    error
}

// waiter is a FIFO-queued reservation. Checkout waiters carry a
// single-producer-single-consumer channel; ReducePoolSize waiters carry
// none — they just consume the next returned handle and kill it.
//
// Go has no destructor-driven "receiver dropped" signal for a channel the
// way a oneshot channel does in other runtimes, so late-arrival handling
// (spec.md §4.3) is implemented with claimed: whichever side — the
// deadline firing, or check_in's fulfillment loop — wins the
// compare-and-swap owns the waiter. The loser treats it as already
// resolved and moves on (check_in offers the handle to the next waiter;
// the deadline path falls through to the channel, which the winning
// fulfiller is about to fill).
type waiter[T Poolable] struct {
	kind         waiterKind
	ch           chan checkoutResult[T]
	waitingSince time.Time
	claimed      atomic.Bool
}

func newCheckoutWaiter[T Poolable]() *waiter[T] {
	return &waiter[T]{
		kind:         waiterCheckout,
		ch:           make(chan checkoutResult[T], 1),
		waitingSince: time.Now(),
	}
}

func newReducePoolSizeWaiter[T Poolable]() *waiter[T] {
	return &waiter[T]{kind: waiterReducePoolSize, waitingSince: time.Now()}
}
