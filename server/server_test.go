package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlfredDev/reool/pool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeFacade struct {
	stats pool.Stats
	pings []pool.Ping
	err   error
	uris  []string
}

func (f *fakeFacade) Stats() pool.Stats { return f.stats }
func (f *fakeFacade) Ping(time.Duration) ([]pool.Ping, error) { return f.pings, f.err }
func (f *fakeFacade) ConnectedTo() []string { return f.uris }

func testServer(f Facade) http.Handler {
	return NewRouter(f, zerolog.New(io.Discard))
}

func TestHealthzAlwaysOK(t *testing.T) {
	srv := testServer(&fakeFacade{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestReadyReflectsPoolSize(t *testing.T) {
	srv := testServer(&fakeFacade{stats: pool.Stats{PoolSize: 0}})
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	srv = testServer(&fakeFacade{stats: pool.Stats{PoolSize: 3, Idle: 3}})
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestStatsReturnsJSONSnapshot(t *testing.T) {
	srv := testServer(&fakeFacade{stats: pool.Stats{PoolSize: 5, Idle: 4, InFlight: 1}})
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got pool.Stats
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Equal(t, int64(5), got.PoolSize)
}

func TestPingReturnsServiceUnavailableOnError(t *testing.T) {
	srv := testServer(&fakeFacade{err: pool.ErrNoPool})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPingReturnsResultsOnSuccess(t *testing.T) {
	srv := testServer(&fakeFacade{pings: []pool.Ping{{URI: "redis://a:6379", State: pool.PingOK}}})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []pool.Ping
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
}
