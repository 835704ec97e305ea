// Command reoolctl runs a standalone reool connection pool against one or
// more Redis nodes and exposes its admin surface (health, stats, ping,
// Prometheus metrics) over HTTP. Library consumers that want a pool.Facade
// embedded in their own process should call pool.NewSingleFacade /
// pool.NewMultiFacade directly instead of shelling out to this binary.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlfredDev/reool/config"
	"github.com/AlfredDev/reool/logger"
	"github.com/AlfredDev/reool/observability"
	"github.com/AlfredDev/reool/pool"
	"github.com/AlfredDev/reool/redisconn"
	"github.com/AlfredDev/reool/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("reoolctl: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg)
	log.Info().Str("env", cfg.Env).Strs("nodes", cfg.ConnectTo).Msg("reool starting")

	observer := observability.NewPrometheusObserver(prometheus.DefaultRegisterer)

	checkoutTimeout := cfg.CheckoutTimeout
	innerCfg := pool.InnerPoolConfig{
		DesiredPoolSize:  cfg.DesiredPoolSize,
		ReservationLimit: cfg.ReservationLimit,
		ActivationOrder:  activationOrder(cfg.ActivationOrder),
		Backoff:          pool.NewExponentialBackoff(cfg.BackoffInitial, cfg.BackoffMax, cfg.BackoffMultiplier),
		StatsInterval:    cfg.StatsInterval,
	}

	ctx, cancel := context.WithCancel(context.Background())
	facade, err := buildFacade(ctx, cfg, innerCfg, checkoutTimeout, observer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build connection pool")
	}

	adminRouter := server.NewRouter(facade, log)
	adminSrv := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      adminRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin surface listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	cancel()
	facade.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("reool stopped gracefully")
	}
}

// buildFacade dials every configured node via redisconn and wires a
// pool.Facade of the shape the configured node-pool strategy calls for.
func buildFacade(
	ctx context.Context,
	cfg *config.Config,
	innerCfg pool.InnerPoolConfig,
	checkoutTimeout time.Duration,
	observer pool.Observer,
	log zerolog.Logger,
) (*pool.Facade[*redisconn.Conn], error) {
	factories := make([]pool.ConnectionFactory[*redisconn.Conn], 0, len(cfg.ConnectTo))
	for _, uri := range cfg.ConnectTo {
		f, err := redisconn.NewFactory(uri, checkoutTimeout)
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}

	if cfg.NodePoolStrategy == config.StrategyMulti {
		mp, err := pool.NewMultiPool[*redisconn.Conn](ctx, factories, innerCfg, 1, observer, log, &checkoutTimeout)
		if err != nil {
			return nil, err
		}
		return pool.NewMultiFacade[*redisconn.Conn](mp), nil
	}

	sp := pool.NewSinglePool[*redisconn.Conn](ctx, factories[0], innerCfg, observer, log, &checkoutTimeout)
	return pool.NewSingleFacade[*redisconn.Conn](sp), nil
}

func activationOrder(a config.ActivationOrder) pool.ActivationOrder {
	if a == config.FIFO {
		return pool.FIFO
	}
	return pool.LIFO
}
