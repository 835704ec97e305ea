package pool

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeConn struct {
	uri    string
	closed bool
}

func (f *fakeConn) URI() string { return f.uri }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

// fakeFactory is a ConnectionFactory[*fakeConn] whose failure schedule is
// controlled by fail, a predicate over the 1-indexed attempt number.
type fakeFactory struct {
	uri  string
	fail func(attempt int) error

	mu    sync.Mutex
	calls int
}

func newFakeFactory(uri string) *fakeFactory { return &fakeFactory{uri: uri} }

func (f *fakeFactory) CreateConnection(ctx context.Context) (*fakeConn, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(n); err != nil {
			return nil, &NewConnectionError{URI: f.uri, Err: err}
		}
	}
	return &fakeConn{uri: f.uri}, nil
}

func (f *fakeFactory) Targets() []string { return []string{f.uri} }

func (f *fakeFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newSinglePoolForTest(factory ConnectionFactory[*fakeConn], cfg InnerPoolConfig, observer Observer) (*SinglePool[*fakeConn], func()) {
	if observer == nil {
		observer = NoopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := NewSinglePool[*fakeConn](ctx, factory, cfg, observer, testLogger(), nil)
	return p, func() {
		cancel()
		p.Close()
	}
}

func waitFor(d time.Duration, until func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if until() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return until()
}
