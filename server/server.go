// Package server exposes the admin HTTP surface: health, readiness,
// pool statistics, and on-demand ping, all backed by a pool.Facade.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AlfredDev/reool/pool"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Facade is the subset of pool.Facade[T] the admin surface depends on,
// parameterized away so the router doesn't need to carry the pool's
// connection type generic.
type Facade interface {
	Stats() pool.Stats
	Ping(perNodeTimeout time.Duration) ([]pool.Ping, error)
	ConnectedTo() []string
}

// NewRouter returns a chi Router exposing /healthz, /ready, /stats, /ping,
// and /metrics. appLogger follows the request-logger middleware pattern
// used throughout this codebase.
func NewRouter(f Facade, appLogger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "reool"})
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		stats := f.Stats()
		if stats.PoolSize == 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, f.Stats())
	})

	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		timeout := 2 * time.Second
		if v := req.URL.Query().Get("timeout_ms"); v != "" {
			if ms, err := time.ParseDuration(v + "ms"); err == nil {
				timeout = ms
			}
		}
		results, err := f.Ping(timeout)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", chimw.GetReqID(r.Context())).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("admin request completed")
		})
	}
}
