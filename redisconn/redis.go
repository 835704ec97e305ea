// Package redisconn adapts go-redis into the pool.Poolable /
// pool.ConnectionFactory contracts: each slot in the pool owns a single
// dedicated *redis.Client dialing exactly one connection, so borrowing a
// handle from the pool borrows an entire Redis connection, not a shared
// client-side connection pool on top of another one.
package redisconn

import (
	"context"
	"fmt"
	"time"

	"github.com/AlfredDev/reool/pool"
	"github.com/redis/go-redis/v9"
)

// Conn wraps one dedicated go-redis client. It satisfies pool.Poolable and
// io.Closer so ManagedHandle.closeUnderlying can tear it down.
type Conn struct {
	uri    string
	client *redis.Client
}

func (c *Conn) URI() string { return c.uri }

func (c *Conn) Close() error { return c.client.Close() }

// Client exposes the underlying go-redis client for issuing commands
// through a checked-out handle.
func (c *Conn) Client() *redis.Client { return c.client }

// Factory dials one Redis node, verifying liveness with a PING before
// handing the connection back to the pool's creation loop.
type Factory struct {
	uri        string
	options    *redis.Options
	dialTimeout time.Duration
}

// NewFactory parses uri (a redis:// or rediss:// URL) once at construction
// time so a malformed node address fails fast instead of on every dial.
func NewFactory(uri string, dialTimeout time.Duration) (*Factory, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("redisconn: invalid node uri %q: %w", uri, err)
	}
	opt.PoolSize = 1
	opt.MinIdleConns = 0
	return &Factory{uri: uri, options: opt, dialTimeout: dialTimeout}, nil
}

// CreateConnection dials a fresh client and confirms it is reachable with
// PING before returning it; a failed PING is reported the same as a failed
// dial, wrapped here into a *pool.NewConnectionError.
func (f *Factory) CreateConnection(ctx context.Context) (*Conn, error) {
	client := redis.NewClient(f.options)

	pingCtx := ctx
	if f.dialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, f.dialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &pool.NewConnectionError{URI: f.uri, Err: err}
	}
	return &Conn{uri: f.uri, client: client}, nil
}

// Targets reports the single node URI this factory dials.
func (f *Factory) Targets() []string { return []string{f.uri} }
