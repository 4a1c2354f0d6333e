package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/velatrade/vela/client/hyperliquid"
	"github.com/velatrade/vela/client/oracle"
	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/audit"
	"github.com/velatrade/vela/internal/concurrent"
	"github.com/velatrade/vela/internal/engine"
	"github.com/velatrade/vela/internal/indicator"
	"github.com/velatrade/vela/internal/ledger"
	"github.com/velatrade/vela/internal/metrics"
	"github.com/velatrade/vela/internal/risk"
	"github.com/velatrade/vela/internal/server"
	"github.com/velatrade/vela/internal/storage"
	jsonstore "github.com/velatrade/vela/internal/storage/file/json"
	redisstore "github.com/velatrade/vela/internal/storage/redis"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the trading engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := newStore(cfg.Storage)
	if err != nil {
		return err
	}

	recent := audit.NewRecent(512)
	publisher := newPublisher(cfg.Audit, recent)

	book := risk.NewBook(cfg.Risk)
	if err := book.Attach(store); err != nil {
		return err
	}

	ldg, err := ledger.New(cfg.Risk, store, publisher)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, engine.Deps{
		Market:     hyperliquid.NewMarket(cfg.Market),
		Indicators: indicator.New(14),
		Oracle:     oracle.New(cfg.Oracle),
		Exchange:   hyperliquid.NewExchange(cfg.Market),
		Book:       book,
		Ledger:     ldg,
		Publisher:  publisher,
	})

	srv := newServer(cfg, eng, book, recent)
	concurrent.Async(func() {
		if err := srv.Run(); err != nil {
			log.Error().Err(err).Msg("admin server failed")
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if srvErr := srv.Shutdown(shutdownCtx); srvErr != nil {
		log.Error().Err(srvErr).Msg("admin server shutdown failed")
	}
	if err == context.Canceled {
		return nil
	}
	return err
}

func newStore(cfg config.Storage) (storage.Persistence, error) {
	if cfg.RedisAddr != "" {
		return redisstore.NewStore(cfg.RedisAddr, 0, "vela")
	}
	if cfg.Dir != "" {
		return jsonstore.NewBlob(cfg.Dir), nil
	}
	return storage.NewLocalStorage(), nil
}

func newPublisher(cfg config.Audit, recent *audit.Recent) audit.Publisher {
	publishers := audit.Multi{audit.NewLogger(), recent}
	if len(cfg.Brokers) > 0 {
		publishers = append(publishers, audit.NewWriter(cfg.Brokers, cfg.Topic))
	}
	return publishers
}

func newServer(cfg *config.Config, eng *engine.Engine, book *risk.Book, recent *audit.Recent) *server.Server {
	return server.NewServer("vela", cfg.Server.Port).
		AddRoute(server.GET, "/status", func(r *http.Request) ([]byte, int, error) {
			return server.Reply(eng.Status())
		}).
		AddRoute(server.GET, "/positions", func(r *http.Request) ([]byte, int, error) {
			return server.Reply(eng.Status().Positions)
		}).
		AddRoute(server.GET, "/events", func(r *http.Request) ([]byte, int, error) {
			return server.Reply(recent.Events())
		}).
		AddRoute(server.POST, "/emergency/reset", func(r *http.Request) ([]byte, int, error) {
			book.EmergencyReset()
			log.Warn().Msg("emergency stop reset by operator")
			return server.Reply(map[string]string{"band": book.Band().String()})
		}).
		Handle("/metrics", metrics.Handler())
}
