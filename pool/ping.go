package pool

import (
	"context"
	"time"
)

// PingState is the outcome of a diagnostic round-trip.
type PingState int

const (
	PingOK PingState = iota
	PingFailed
)

// Ping is a diagnostic round-trip result: {latency, uri, Ok | Failed(cause)}.
type Ping struct {
	Latency time.Duration
	URI     string
	State   PingState
	Cause   error
}

func pingOne[T Poolable](p *InnerPool[T], timeout time.Duration) Ping {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	h, err := p.CheckOut(ctx)
	latency := time.Since(start)
	if err != nil {
		return Ping{Latency: latency, State: PingFailed, Cause: err}
	}
	uri := (*h.Value()).URI()
	h.Close()
	return Ping{Latency: latency, URI: uri, State: PingOK}
}
