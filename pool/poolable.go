package pool

import "context"

// Poolable is an opaque connection value. The pool never inspects its
// internal state; it only ever asks which URI it is connected to.
type Poolable interface {
	URI() string
}

// ConnectionFactory asynchronously produces connections on demand. It is
// assumed re-entrant and safe to call concurrently — the core never calls
// it from within a locked section.
type ConnectionFactory[T Poolable] interface {
	// CreateConnection dials one new connection. A non-nil error is always
	// a *NewConnectionError (or wraps one) and is only ever delivered to
	// an Observer, never to a checkout caller.
	CreateConnection(ctx context.Context) (T, error)

	// Targets reports the URI(s) this factory dials.
	Targets() []string
}
