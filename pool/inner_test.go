package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// smallCfg builds a test InnerPoolConfig. reservationLimit is nil for
// unbounded, or a pointer to the exact bound — distinguishing "unset" from
// "set to zero" matters: RESERVATION_LIMIT=0 means zero waiter capacity,
// not unlimited (spec.md scenario S1).
func smallCfg(size int, reservationLimit *int) InnerPoolConfig {
	return InnerPoolConfig{
		DesiredPoolSize:  size,
		ReservationLimit: reservationLimit,
		ActivationOrder:  LIFO,
		Backoff:          ConstantBackoff{Delay: time.Millisecond},
	}
}

func limitPtr(n int) *int { return &n }

// S1 Warm path: two sequential checkouts succeed immediately; a third
// fails with ReservationLimitReached once the idle stack is settled.
func TestWarmPathExhaustsIdleThenRejects(t *testing.T) {
	f := newFakeFactory("redis://node-a:6379")
	p, stop := newSinglePoolForTest(f, smallCfg(2, limitPtr(0)), nil)
	defer stop()

	require.True(t, waitFor(time.Second, func() bool { return p.Stats().Idle == 2 }))

	ctx := context.Background()
	h1, err := p.CheckOut(ctx)
	require.NoError(t, err)
	h2, err := p.CheckOut(ctx)
	require.NoError(t, err)

	_, err = p.CheckOut(ctx)
	require.ErrorIs(t, err, ErrReservationLimitReached)

	h1.Close()
	h2.Close()
}

// S2 Queued path: one checkout resolves immediately, the rest queue and
// all eventually resolve in enqueue order as handles are returned.
func TestQueuedPathResolvesInFIFOOrder(t *testing.T) {
	f := newFakeFactory("redis://node-a:6379")
	p, stop := newSinglePoolForTest(f, smallCfg(1, limitPtr(4)), nil)
	defer stop()

	require.True(t, waitFor(time.Second, func() bool { return p.Stats().Idle == 1 }))

	first, err := p.CheckOut(context.Background())
	require.NoError(t, err)

	type result struct {
		order int
		recv  time.Time
	}
	results := make(chan result, 4)
	for i := 0; i < 4; i++ {
		i := i
		go func() {
			h, err := p.CheckOut(context.Background())
			require.NoError(t, err)
			results <- result{order: i, recv: time.Now()}
			time.Sleep(2 * time.Millisecond)
			h.Close()
		}()
		time.Sleep(2 * time.Millisecond) // stagger enqueue order deterministically
	}

	require.True(t, waitFor(500*time.Millisecond, func() bool { return p.Stats().Waiting == 4 }))
	first.Close()

	var times []time.Time
	for i := 0; i < 4; i++ {
		r := <-results
		times = append(times, r.recv)
	}
	for i := 1; i < len(times); i++ {
		require.False(t, times[i].Before(times[i-1]), "waiter %d resolved before waiter %d", i, i-1)
	}
}

// S3 Timeout: holding the sole connection, concurrent checkouts with a
// short deadline all fail with CheckoutTimeout; releasing afterwards
// leaves the connection idle.
func TestCheckoutTimeout(t *testing.T) {
	f := newFakeFactory("redis://node-a:6379")
	p, stop := newSinglePoolForTest(f, smallCfg(1, limitPtr(4)), nil)
	defer stop()

	require.True(t, waitFor(time.Second, func() bool { return p.Stats().Idle == 1 }))

	held, err := p.CheckOut(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := p.CheckOut(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.ErrorIs(t, err, ErrCheckoutTimeout)
	}

	held.Close()
	require.True(t, waitFor(time.Second, func() bool { return p.Stats().Idle == 1 }))
	require.Equal(t, int64(0), p.Stats().Waiting)
}

// S4 Defective return: marking a checked-out connection defective and
// closing it drops the slot and triggers a replacement.
func TestDefectiveReturnTriggersReplacement(t *testing.T) {
	f := newFakeFactory("redis://node-a:6379")
	p, stop := newSinglePoolForTest(f, smallCfg(1, nil), nil)
	defer stop()

	require.True(t, waitFor(time.Second, func() bool { return p.Stats().Idle == 1 }))

	h, err := p.CheckOut(context.Background())
	require.NoError(t, err)
	h.MarkDefective()
	h.Close()

	require.True(t, waitFor(time.Second, func() bool { return p.Stats().PoolSize == 1 && p.Stats().Idle == 1 }))
	require.GreaterOrEqual(t, f.Calls(), 2)
}

// S5-style node failover at the InnerPool level: a factory that always
// fails keeps retrying with backoff and never satisfies a checkout;
// ConnectionFactoryFailed fires on the observer for every attempt.
func TestAlwaysFailingFactoryNeverSatisfiesCheckout(t *testing.T) {
	wantErr := errors.New("connection refused")
	f := &fakeFactory{uri: "redis://node-b:6379", fail: func(int) error { return wantErr }}

	obs := &countingObserver{}
	p, stop := newSinglePoolForTest(f, smallCfg(1, nil), obs)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := p.CheckOut(ctx)
	require.ErrorIs(t, err, ErrCheckoutTimeout)
	require.Greater(t, obs.factoryFailed.Load(), int64(0))
}

// S6 Shrink: calling RemoveConn while every handle is checked out kills
// exactly one connection per returned handle, converging pool_size to
// zero.
func TestShrinkKillsOneConnectionPerReturn(t *testing.T) {
	f := newFakeFactory("redis://node-a:6379")
	p, stop := newSinglePoolForTest(f, smallCfg(4, nil), nil)
	defer stop()

	require.True(t, waitFor(time.Second, func() bool { return p.Stats().Idle == 4 }))

	var handles []*ManagedHandle[*fakeConn]
	for i := 0; i < 4; i++ {
		h, err := p.CheckOut(context.Background())
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.Equal(t, int64(0), p.Stats().Idle)

	for i := 0; i < 4; i++ {
		p.RemoveConn()
	}
	for _, h := range handles {
		h.Close()
	}

	require.True(t, waitFor(time.Second, func() bool { return p.Stats().PoolSize == 0 }))
	require.Equal(t, int64(0), p.Stats().Idle)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.CheckOut(ctx)
	require.ErrorIs(t, err, ErrCheckoutTimeout)
}

// Conservation invariant: idle + in_flight always equals pool_size once
// the creation loop has settled.
func TestConservationInvariant(t *testing.T) {
	f := newFakeFactory("redis://node-a:6379")
	p, stop := newSinglePoolForTest(f, smallCfg(3, nil), nil)
	defer stop()

	require.True(t, waitFor(time.Second, func() bool {
		s := p.Stats()
		return s.Idle+s.InFlight == s.PoolSize && s.PoolSize == 3
	}))

	h, err := p.CheckOut(context.Background())
	require.NoError(t, err)
	s := p.Stats()
	require.Equal(t, s.PoolSize, s.Idle+s.InFlight)
	h.Close()
}

type countingObserver struct {
	factoryFailed atomic.Int64
}

func (c *countingObserver) CheckedOut()                                     {}
func (c *countingObserver) CheckedInReturned(time.Duration)                 {}
func (c *countingObserver) CheckedInNew()                                   {}
func (c *countingObserver) ConnectionDropped(*time.Duration, time.Duration) {}
func (c *countingObserver) IdleConnectionsChanged(int64, int64)             {}
func (c *countingObserver) ConnectionCreated(time.Duration, time.Duration)  {}
func (c *countingObserver) KilledConnection(time.Duration)                  {}
func (c *countingObserver) ReservationsChanged(int64, int64, *int)          {}
func (c *countingObserver) ReservationAdded()                               {}
func (c *countingObserver) ReservationFulfilled(time.Duration)              {}
func (c *countingObserver) ReservationNotFulfilled(time.Duration)           {}
func (c *countingObserver) ReservationLimitReached()                        {}
func (c *countingObserver) ConnectionFactoryFailed()                        { c.factoryFailed.Add(1) }
func (c *countingObserver) UsableConnectionsChanged(int64, int64)           {}
func (c *countingObserver) InFlightConnectionsChanged(int64, int64)         {}

var _ Observer = &countingObserver{}
