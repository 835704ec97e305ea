package observability

import (
	"time"

	"github.com/AlfredDev/reool/pool"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver implements pool.Observer by feeding every event into a
// set of counters, gauges, and histograms registered against a single
// prometheus.Registerer. One instance is shared across every inner pool of
// a façade. The *_min/*_max gauges hold the values from the most recent
// *Changed call, so with several sibling pools each report overwrites the
// previous one; values are not combined across siblings.
type PrometheusObserver struct {
	checkedOut      prometheus.Counter
	checkedInReturned prometheus.Histogram
	checkedInNew    prometheus.Counter
	connectionDropped prometheus.Counter
	idleMin         prometheus.Gauge
	idleMax         prometheus.Gauge
	connectionCreated prometheus.Histogram
	killedConnection prometheus.Histogram
	reservationsMin prometheus.Gauge
	reservationsMax prometheus.Gauge
	reservationLimit prometheus.Gauge
	reservationAdded prometheus.Counter
	reservationFulfilled prometheus.Histogram
	reservationNotFulfilled prometheus.Histogram
	reservationLimitReached prometheus.Counter
	factoryFailed   prometheus.Counter
	usableMin       prometheus.Gauge
	usableMax       prometheus.Gauge
	inFlightMin     prometheus.Gauge
	inFlightMax     prometheus.Gauge
}

// NewPrometheusObserver creates and registers every metric under the
// "reool" namespace. Call once per process and pass the result into every
// pool façade that should be observed.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		checkedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reool", Name: "checkouts_total", Help: "Connections handed out to callers.",
		}),
		checkedInReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reool", Name: "checkout_flight_seconds", Help: "Time a connection spent checked out before being returned.",
			Buckets: prometheus.DefBuckets,
		}),
		checkedInNew: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reool", Name: "checkins_new_total", Help: "Freshly created connections entering the idle pool.",
		}),
		connectionDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reool", Name: "connections_dropped_total", Help: "Connections returned defective and discarded.",
		}),
		idleMin: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "idle_connections_min", Help: "Minimum idle connection count sampled this interval.",
		}),
		idleMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "idle_connections_max", Help: "Maximum idle connection count sampled this interval.",
		}),
		connectionCreated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reool", Name: "connection_created_seconds", Help: "Wall-clock time to establish a new connection, including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		killedConnection: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reool", Name: "connection_lifetime_seconds", Help: "Lifetime of a connection at the moment it was killed.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		reservationsMin: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "reservations_min", Help: "Minimum outstanding reservation count sampled this interval.",
		}),
		reservationsMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "reservations_max", Help: "Maximum outstanding reservation count sampled this interval.",
		}),
		reservationLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "reservation_limit", Help: "Configured reservation limit, or -1 when unbounded.",
		}),
		reservationAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reool", Name: "reservations_added_total", Help: "Checkout requests that could not be satisfied immediately and were queued.",
		}),
		reservationFulfilled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reool", Name: "reservation_wait_seconds", Help: "Time a queued checkout waited before a connection became available.",
			Buckets: prometheus.DefBuckets,
		}),
		reservationNotFulfilled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reool", Name: "reservation_abandoned_wait_seconds", Help: "Time from enqueue until an abandoned (timed-out or cancelled) checkout was skipped by a returning connection.",
			Buckets: prometheus.DefBuckets,
		}),
		reservationLimitReached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reool", Name: "reservation_limit_reached_total", Help: "Checkouts rejected outright because the reservation limit was already met.",
		}),
		factoryFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reool", Name: "factory_failures_total", Help: "Connection factory attempts that returned an error.",
		}),
		usableMin: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "usable_connections_min", Help: "Minimum usable (idle + in-flight) connection count sampled this interval.",
		}),
		usableMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "usable_connections_max", Help: "Maximum usable connection count sampled this interval.",
		}),
		inFlightMin: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "in_flight_connections_min", Help: "Minimum checked-out connection count sampled this interval.",
		}),
		inFlightMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reool", Name: "in_flight_connections_max", Help: "Maximum checked-out connection count sampled this interval.",
		}),
	}

	reg.MustRegister(
		o.checkedOut, o.checkedInReturned, o.checkedInNew, o.connectionDropped,
		o.idleMin, o.idleMax, o.connectionCreated, o.killedConnection,
		o.reservationsMin, o.reservationsMax, o.reservationLimit, o.reservationAdded,
		o.reservationFulfilled, o.reservationNotFulfilled, o.reservationLimitReached,
		o.factoryFailed, o.usableMin, o.usableMax, o.inFlightMin, o.inFlightMax,
	)
	return o
}

func (o *PrometheusObserver) CheckedOut() { o.checkedOut.Inc() }

func (o *PrometheusObserver) CheckedInReturned(flightTime time.Duration) {
	o.checkedInReturned.Observe(flightTime.Seconds())
}

func (o *PrometheusObserver) CheckedInNew() { o.checkedInNew.Inc() }

func (o *PrometheusObserver) ConnectionDropped(flightTime *time.Duration, lifetime time.Duration) {
	o.connectionDropped.Inc()
}

func (o *PrometheusObserver) IdleConnectionsChanged(min, max int64) {
	o.idleMin.Set(float64(min))
	o.idleMax.Set(float64(max))
}

func (o *PrometheusObserver) ConnectionCreated(connectedAfter, totalTime time.Duration) {
	o.connectionCreated.Observe(totalTime.Seconds())
}

func (o *PrometheusObserver) KilledConnection(lifetime time.Duration) {
	o.killedConnection.Observe(lifetime.Seconds())
}

func (o *PrometheusObserver) ReservationsChanged(min, max int64, limit *int) {
	o.reservationsMin.Set(float64(min))
	o.reservationsMax.Set(float64(max))
	if limit != nil {
		o.reservationLimit.Set(float64(*limit))
	} else {
		o.reservationLimit.Set(-1)
	}
}

func (o *PrometheusObserver) ReservationAdded() { o.reservationAdded.Inc() }

func (o *PrometheusObserver) ReservationFulfilled(after time.Duration) {
	o.reservationFulfilled.Observe(after.Seconds())
}

func (o *PrometheusObserver) ReservationNotFulfilled(after time.Duration) {
	o.reservationNotFulfilled.Observe(after.Seconds())
}

func (o *PrometheusObserver) ReservationLimitReached() { o.reservationLimitReached.Inc() }

func (o *PrometheusObserver) ConnectionFactoryFailed() { o.factoryFailed.Inc() }

func (o *PrometheusObserver) UsableConnectionsChanged(min, max int64) {
	o.usableMin.Set(float64(min))
	o.usableMax.Set(float64(max))
}

func (o *PrometheusObserver) InFlightConnectionsChanged(min, max int64) {
	o.inFlightMin.Set(float64(min))
	o.inFlightMax.Set(float64(max))
}

var _ pool.Observer = (*PrometheusObserver)(nil)
