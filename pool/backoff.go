package pool

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffStrategy maps a retry attempt number (0-indexed) to an optional
// delay. Returning ok=false means "give up waiting, retry immediately" —
// per spec.md §4.4 step 3, a give-up-forever policy is not modelled at this
// level; a strategy that wants a ceiling returns its largest delay forever
// instead of ok=false.
type BackoffStrategy interface {
	NextDelay(attempt int) (delay time.Duration, ok bool)
}

// ExponentialBackoff is attempt-indexed (a pure function of attempt),
// unlike cenkalti/backoff's stateful ExponentialBackOff.NextBackOff(). It
// borrows that package's default multiplier and randomization factor so
// the two compose in spirit, but computes delay directly from the attempt
// number rather than mutating internal state — the creation loop (C5)
// calls it concurrently from at most one goroutine per inner pool, but
// instances are shared across retry sequences for distinct requests, so
// NextDelay must stay a pure function.
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Randomization float64
}

// NewExponentialBackoff builds a strategy using cenkalti/backoff's default
// randomization factor, capped at max.
func NewExponentialBackoff(initial, max time.Duration, multiplier float64) *ExponentialBackoff {
	if multiplier <= 1 {
		multiplier = backoff.DefaultMultiplier
	}
	return &ExponentialBackoff{
		Initial:       initial,
		Max:           max,
		Multiplier:    multiplier,
		Randomization: backoff.DefaultRandomizationFactor,
	}
}

func (b *ExponentialBackoff) NextDelay(attempt int) (time.Duration, bool) {
	raw := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if raw > float64(b.Max) || raw <= 0 {
		raw = float64(b.Max)
	}
	if b.Randomization > 0 {
		delta := raw * b.Randomization
		raw = raw - delta + rand.Float64()*2*delta
	}
	if raw < 0 {
		raw = 0
	}
	return time.Duration(raw), true
}

// ConstantBackoff retries after the same fixed delay every time.
type ConstantBackoff struct {
	Delay time.Duration
}

func (b ConstantBackoff) NextDelay(int) (time.Duration, bool) { return b.Delay, true }

// NoBackoff always reports "no delay" — the creation loop retries
// immediately. Used by tests exercising spec.md's Open Question 3
// resolution (retry immediately when the strategy gives up).
type NoBackoff struct{}

func (NoBackoff) NextDelay(int) (time.Duration, bool) { return 0, false }
