package pool

import (
	"context"
	"time"
)

// runStatsLoop samples one InnerPool's atomic counters every
// cfg.StatsInterval and reports the min/max observed over that window to
// the observer, then resets the window. Counters are eventually
// consistent with the locked state (spec.md §5); this is intentionally a
// sampled view, not a precise snapshot (spec.md §9 "Stats sampling").
func runStatsLoop[T Poolable](ctx context.Context, p *InnerPool[T]) {
	ticker := time.NewTicker(p.cfg.StatsInterval)
	defer ticker.Stop()

	minIdle, maxIdle := p.idleCount.Load(), p.idleCount.Load()
	minFlight, maxFlight := p.inFlight.Load(), p.inFlight.Load()
	minWait, maxWait := p.waitingCount.Load(), p.waitingCount.Load()

	limit := p.cfg.ReservationLimit

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := p.idleCount.Load()
			flight := p.inFlight.Load()
			wait := p.waitingCount.Load()

			if idle < minIdle {
				minIdle = idle
			}
			if idle > maxIdle {
				maxIdle = idle
			}
			if flight < minFlight {
				minFlight = flight
			}
			if flight > maxFlight {
				maxFlight = flight
			}
			if wait < minWait {
				minWait = wait
			}
			if wait > maxWait {
				maxWait = wait
			}

			p.observer.IdleConnectionsChanged(minIdle, maxIdle)
			p.observer.UsableConnectionsChanged(minIdle, maxIdle)
			p.observer.InFlightConnectionsChanged(minFlight, maxFlight)
			p.observer.ReservationsChanged(minWait, maxWait, limit)

			minIdle, maxIdle = idle, idle
			minFlight, maxFlight = flight, flight
			minWait, maxWait = wait, wait
		}
	}
}
