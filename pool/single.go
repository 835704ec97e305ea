package pool

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// SinglePool is a thin façade over one InnerPool plus a default checkout
// deadline (spec.md §4.6 C6).
type SinglePool[T Poolable] struct {
	inner          *InnerPool[T]
	defaultTimeout *time.Duration
	statsInterval  time.Duration
	cancel         context.CancelFunc
}

// NewSinglePool wires an InnerPool to a dedicated creation loop and starts
// both it and the request-new-connection burst needed to reach
// DesiredPoolSize.
func NewSinglePool[T Poolable](
	ctx context.Context,
	factory ConnectionFactory[T],
	cfg InnerPoolConfig,
	observer Observer,
	logger zerolog.Logger,
	defaultTimeout *time.Duration,
) *SinglePool[T] {
	inner := newInnerPool[T](factory.Targets(), cfg, observer)
	loopCtx, cancel := context.WithCancel(ctx)

	loop := &CreationLoop[T]{Pool: inner, Factory: factory, Backoff: cfg.Backoff, Observer: inner.observer, Logger: logger}
	go loop.Run(loopCtx)
	if cfg.StatsInterval > 0 {
		go runStatsLoop(loopCtx, inner)
	}

	for i := 0; i < cfg.DesiredPoolSize; i++ {
		inner.requestNewConn()
	}

	return &SinglePool[T]{inner: inner, defaultTimeout: defaultTimeout, statsInterval: cfg.StatsInterval, cancel: cancel}
}

// CheckOut uses the pool's configured default deadline.
func (s *SinglePool[T]) CheckOut(ctx context.Context) (*ManagedHandle[T], error) {
	return s.CheckOutTimeout(ctx, s.defaultTimeout)
}

// CheckOutTimeout implements the facade's check_out_explicit_timeout: nil
// means wait indefinitely; a pointer to zero means "only if an idle handle
// is immediately available".
func (s *SinglePool[T]) CheckOutTimeout(ctx context.Context, timeout *time.Duration) (*ManagedHandle[T], error) {
	if timeout != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	h, err := s.inner.CheckOut(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrCheckoutTimeout
		}
		return nil, err
	}
	return h, nil
}

// Ping performs one diagnostic round-trip against this node.
func (s *SinglePool[T]) Ping(perNodeTimeout time.Duration) Ping {
	return pingOne(s.inner, perNodeTimeout)
}

// Stats returns a sampled snapshot of this pool's counters.
func (s *SinglePool[T]) Stats() Stats { return s.inner.Stats() }

// ConnectedTo reports the URI(s) this pool dials.
func (s *SinglePool[T]) ConnectedTo() []string { return s.inner.Targets() }

// RemoveConn voluntarily shrinks the pool by one connection.
func (s *SinglePool[T]) RemoveConn() { s.inner.RemoveConn() }

// Close stops the creation loop and stats sampler. In-flight handles are
// unaffected — their eventual Close still runs the normal check_in path
// against an InnerPool that is simply no longer being replenished.
func (s *SinglePool[T]) Close() { s.cancel() }
