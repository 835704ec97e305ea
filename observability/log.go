package observability

import (
	"time"

	"github.com/AlfredDev/reool/pool"
	"github.com/rs/zerolog"
)

// LogObserver emits one structured log line per event, at debug level for
// high-frequency events (checkouts) and info/warn for state changes and
// failures. Intended for local development; production deployments should
// prefer PrometheusObserver.
type LogObserver struct {
	log zerolog.Logger
}

// NewLogObserver returns an Observer tagged with component=pool, matching
// the sub-logger pattern used elsewhere in this codebase.
func NewLogObserver(base zerolog.Logger) *LogObserver {
	return &LogObserver{log: base.With().Str("component", "pool").Logger()}
}

func (o *LogObserver) CheckedOut() { o.log.Debug().Msg("checked out") }

func (o *LogObserver) CheckedInReturned(flightTime time.Duration) {
	o.log.Debug().Dur("flight_time", flightTime).Msg("checked in")
}

func (o *LogObserver) CheckedInNew() { o.log.Debug().Msg("checked in new connection") }

func (o *LogObserver) ConnectionDropped(flightTime *time.Duration, lifetime time.Duration) {
	ev := o.log.Warn().Dur("lifetime", lifetime)
	if flightTime != nil {
		ev = ev.Dur("flight_time", *flightTime)
	}
	ev.Msg("connection dropped")
}

func (o *LogObserver) IdleConnectionsChanged(min, max int64) {
	o.log.Debug().Int64("min", min).Int64("max", max).Msg("idle connections sampled")
}

func (o *LogObserver) ConnectionCreated(connectedAfter, totalTime time.Duration) {
	o.log.Info().Dur("connected_after", connectedAfter).Dur("total_time", totalTime).Msg("connection created")
}

func (o *LogObserver) KilledConnection(lifetime time.Duration) {
	o.log.Debug().Dur("lifetime", lifetime).Msg("connection killed")
}

func (o *LogObserver) ReservationsChanged(min, max int64, limit *int) {
	ev := o.log.Debug().Int64("min", min).Int64("max", max)
	if limit != nil {
		ev = ev.Int("limit", *limit)
	}
	ev.Msg("reservations sampled")
}

func (o *LogObserver) ReservationAdded() { o.log.Debug().Msg("reservation added") }

func (o *LogObserver) ReservationFulfilled(after time.Duration) {
	o.log.Debug().Dur("waited", after).Msg("reservation fulfilled")
}

func (o *LogObserver) ReservationNotFulfilled(after time.Duration) {
	o.log.Debug().Dur("waited", after).Msg("reservation abandoned")
}

func (o *LogObserver) ReservationLimitReached() { o.log.Warn().Msg("reservation limit reached") }

func (o *LogObserver) ConnectionFactoryFailed() { o.log.Warn().Msg("connection factory failed") }

func (o *LogObserver) UsableConnectionsChanged(min, max int64) {
	o.log.Debug().Int64("min", min).Int64("max", max).Msg("usable connections sampled")
}

func (o *LogObserver) InFlightConnectionsChanged(min, max int64) {
	o.log.Debug().Int64("min", min).Int64("max", max).Msg("in-flight connections sampled")
}

var _ pool.Observer = (*LogObserver)(nil)
