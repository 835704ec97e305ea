package pool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MultiPool holds N inner pools — one per node URI, optionally multiplied
// — and dispatches checkouts round-robin with failover across siblings
// (spec.md §4.5 C7).
type MultiPool[T Poolable] struct {
	pools          []*InnerPool[T]
	counter        atomic.Uint64
	defaultTimeout *time.Duration
	cancel         context.CancelFunc
}

// NewMultiPool constructs one inner pool per (factory, multiplier) pair.
// When multiplier > 1, each factory's URI is represented by multiplier
// independent inner pools; DesiredPoolSize and ReservationLimit (when set)
// are divided by multiplier, rounded up, per node.
func NewMultiPool[T Poolable](
	ctx context.Context,
	factories []ConnectionFactory[T],
	cfg InnerPoolConfig,
	multiplier int,
	observer Observer,
	logger zerolog.Logger,
	defaultTimeout *time.Duration,
) (*MultiPool[T], error) {
	if len(factories) == 0 {
		return nil, ErrNoPool
	}
	if multiplier < 1 {
		return nil, fmt.Errorf("reool: pool_per_node_multiplier must be >= 1, got %d", multiplier)
	}

	perNode := cfg
	perNode.DesiredPoolSize = ceilDiv(cfg.DesiredPoolSize, multiplier)
	if cfg.ReservationLimit != nil {
		l := ceilDiv(*cfg.ReservationLimit, multiplier)
		perNode.ReservationLimit = &l
	}

	loopCtx, cancel := context.WithCancel(ctx)

	var pools []*InnerPool[T]
	for _, f := range factories {
		for i := 0; i < multiplier; i++ {
			inner := newInnerPool[T](f.Targets(), perNode, observer)
			loop := &CreationLoop[T]{Pool: inner, Factory: f, Backoff: perNode.Backoff, Observer: inner.observer, Logger: logger}
			go loop.Run(loopCtx)
			if perNode.StatsInterval > 0 {
				go runStatsLoop(loopCtx, inner)
			}
			for j := 0; j < perNode.DesiredPoolSize; j++ {
				inner.requestNewConn()
			}
			pools = append(pools, inner)
		}
	}

	return &MultiPool[T]{pools: pools, defaultTimeout: defaultTimeout, cancel: cancel}, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// CheckOut uses the pool's configured default deadline.
func (m *MultiPool[T]) CheckOut(ctx context.Context) (*ManagedHandle[T], error) {
	return m.CheckOutTimeout(ctx, m.defaultTimeout)
}

// CheckOutTimeout implements spec.md §4.5 check_out: round-robin starting
// point, trying every sibling once before giving up with NoConnection.
func (m *MultiPool[T]) CheckOutTimeout(ctx context.Context, timeout *time.Duration) (*ManagedHandle[T], error) {
	n := len(m.pools)
	if n == 0 {
		return nil, ErrNoPool
	}
	if timeout != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	k := m.counter.Add(1)
	for attempt := 0; attempt < n; attempt++ {
		idx := (k + uint64(attempt)) % uint64(n)
		if h, err := m.pools[idx].CheckOut(ctx); err == nil {
			return h, nil
		}
	}
	return nil, ErrNoConnection
}

// Ping fans out one diagnostic round-trip per inner pool, in parallel.
func (m *MultiPool[T]) Ping(perNodeTimeout time.Duration) []Ping {
	results := make([]Ping, len(m.pools))
	g := new(errgroup.Group)
	for i, p := range m.pools {
		i, p := i, p
		g.Go(func() error {
			results[i] = pingOne(p, perNodeTimeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Stats sums counters across all sibling pools.
func (m *MultiPool[T]) Stats() Stats {
	var total Stats
	for _, p := range m.pools {
		s := p.Stats()
		total.PoolSize += s.PoolSize
		total.Idle += s.Idle
		total.InFlight += s.InFlight
		total.Waiting += s.Waiting
	}
	return total
}

// ConnectedTo reports the URI(s) of every distinct node.
func (m *MultiPool[T]) ConnectedTo() []string {
	seen := make(map[string]struct{})
	var uris []string
	for _, p := range m.pools {
		for _, t := range p.Targets() {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				uris = append(uris, t)
			}
		}
	}
	return uris
}

// Close stops every sibling's creation loop and stats sampler.
func (m *MultiPool[T]) Close() { m.cancel() }
