package pool

import "time"

// Observer is the narrow event sink the pool emits to. It is a single
// value held by the pool — no dynamic registration, no lock required at
// the call site beyond what the observer imposes internally. Methods are
// fire-and-forget; the pool never blocks on them and never holds its own
// mutex while calling one (spec.md §5 deadlock-freedom).
//
// For multi-node pools the same Observer instance is shared by every
// sibling inner pool, so the *Changed(min, max) methods see calls from all
// of them — aggregation across siblings is the observer's job.
type Observer interface {
	CheckedOut()
	CheckedInReturned(flightTime time.Duration)
	CheckedInNew()
	ConnectionDropped(flightTime *time.Duration, lifetime time.Duration)
	IdleConnectionsChanged(min, max int64)
	ConnectionCreated(connectedAfter, totalTime time.Duration)
	KilledConnection(lifetime time.Duration)
	ReservationsChanged(min, max int64, limit *int)
	ReservationAdded()
	ReservationFulfilled(after time.Duration)
	ReservationNotFulfilled(after time.Duration)
	ReservationLimitReached()
	ConnectionFactoryFailed()
	UsableConnectionsChanged(min, max int64)
	InFlightConnectionsChanged(min, max int64)
}

// NoopObserver discards every event. It is the zero-value default so a
// pool can always be constructed without an observer.
type NoopObserver struct{}

func (NoopObserver) CheckedOut()                                            {}
func (NoopObserver) CheckedInReturned(time.Duration)                        {}
func (NoopObserver) CheckedInNew()                                          {}
func (NoopObserver) ConnectionDropped(*time.Duration, time.Duration)        {}
func (NoopObserver) IdleConnectionsChanged(int64, int64)                    {}
func (NoopObserver) ConnectionCreated(time.Duration, time.Duration)         {}
func (NoopObserver) KilledConnection(time.Duration)                         {}
func (NoopObserver) ReservationsChanged(int64, int64, *int)                 {}
func (NoopObserver) ReservationAdded()                                      {}
func (NoopObserver) ReservationFulfilled(time.Duration)                     {}
func (NoopObserver) ReservationNotFulfilled(time.Duration)                  {}
func (NoopObserver) ReservationLimitReached()                               {}
func (NoopObserver) ConnectionFactoryFailed()                               {}
func (NoopObserver) UsableConnectionsChanged(int64, int64)                  {}
func (NoopObserver) InFlightConnectionsChanged(int64, int64)                {}

var _ Observer = NoopObserver{}
