// Package main runs the trading engine as a long-lived service: feeds are
// pumped into the engine and the command surface is served over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/config"
	"solana-sniper/internal/engine"
	"solana-sniper/internal/feed"
	"solana-sniper/internal/feed/dexscreener"
	"solana-sniper/internal/feed/pumpportal"
	"solana-sniper/internal/feed/sim"
	"solana-sniper/internal/logger"
	"solana-sniper/internal/settlement"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
	chstore "solana-sniper/internal/storage/clickhouse"
	"solana-sniper/internal/storage/migrations"
	pgstore "solana-sniper/internal/storage/postgres"
	sqlitestore "solana-sniper/internal/storage/sqlite"
	"solana-sniper/internal/transport/httpapi"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	envFile := flag.String("env-file", ".env", "dotenv file (missing is fine)")
	autostart := flag.Bool("autostart", false, "start trading immediately instead of waiting for POST /engine/start")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *autostart, log); err != nil {
		log.Error("sniper stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, autostart bool, log *zap.Logger) error {
	st, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	fd, err := openFeeds(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer fd.close()

	e, err := engine.New(engine.Options{
		Config:        cfg.Trading,
		Receipts:      settlement.NewSimulated(cfg.Feed.Seed),
		SettleTimeout: cfg.Engine.SettleTimeout,
		Trades:        st.trades,
		Positions:     st.positions,
		Discoveries:   st.discoveries,
		Ticks:         st.ticks,
		RecentLimit:   cfg.Engine.RecentLimit,
		Logger:        log.Named("engine"),
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if err := e.Restore(ctx); err != nil {
		return fmt.Errorf("restore engine: %w", err)
	}
	if autostart {
		if _, err := e.Start(); err != nil {
			return err
		}
	}

	driver := engine.NewDriver(e, engine.DriverOptions{
		Discovery:         fd.discovery,
		Prices:            fd.prices,
		DiscoveryInterval: cfg.Engine.DiscoveryInterval,
		PollInterval:      cfg.Engine.PollInterval,
		Logger:            log.Named("driver"),
	})

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.New(e, httpapi.Options{Logger: log.Named("http")}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driver.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if e.Status() == engine.StatusRunning {
			_ = e.Stop()
		}
		return e.Flush(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// stores holds the optional write-through persistence. Nil fields disable
// the matching store.
type stores struct {
	trades      storage.TradeStore
	positions   storage.PositionStore
	discoveries storage.DiscoveryStore
	ticks       storage.TickStore
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (*stores, func(), error) {
	s := &stores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, err
		}
		s.trades = pgstore.NewTradeStore(pool)
		s.positions = pgstore.NewPositionStore(pool)
		s.discoveries = pgstore.NewDiscoveryStore(pool)

	case config.StorageSQLite:
		db, err := sqlitestore.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := migrations.RunSQLiteMigrations(ctx, db.DB); err != nil {
			cleanup()
			return nil, nil, err
		}
		s.trades = sqlitestore.NewTradeStore(db)
		s.positions = sqlitestore.NewPositionStore(db)
		s.discoveries = sqlitestore.NewDiscoveryStore(db)
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = conn.Close() })
		s.ticks = chstore.NewTickStore(conn)
	}

	log.Info("storage ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("ticks", s.ticks != nil),
	)
	return s, cleanup, nil
}

type feeds struct {
	discovery feed.DiscoveryFeed
	prices    feed.PriceFeed
	close     func()
}

func openFeeds(ctx context.Context, cfg config.Config, log *zap.Logger) (*feeds, error) {
	f := &feeds{close: func() {}}

	var portal *pumpportal.Feed
	if cfg.Feed.Discovery == config.FeedPumpPortal || cfg.Feed.Prices == config.FeedPumpPortal {
		pcfg := pumpportal.DefaultConfig()
		pcfg.Endpoint = cfg.Feed.PumpPortalURL
		pcfg.FetchMetadata = cfg.Feed.FetchMetadata

		// Without an RPC endpoint mints are only checked to be on-curve keys.
		var rpc solana.RPCClient
		if cfg.Feed.RPCEndpoint != "" {
			rpc = solana.NewHTTPClient(cfg.Feed.RPCEndpoint, solana.WithLogger(log.Named("rpc")))
		}
		opts := pumpportal.Options{
			Logger:   log.Named("pumpportal"),
			Verifier: solana.NewMintVerifier(rpc),
		}

		var err error
		portal, err = pumpportal.New(ctx, pcfg, opts)
		if err != nil {
			return nil, fmt.Errorf("connect pumpportal: %w", err)
		}
		f.close = func() { _ = portal.Close() }
	}

	switch cfg.Feed.Discovery {
	case config.FeedSim:
		simCfg := sim.DefaultConfig()
		simCfg.Seed = cfg.Feed.Seed
		market := sim.NewMarket(simCfg)
		f.discovery = market
		if cfg.Feed.Prices == config.FeedSim {
			f.prices = market
		}
	case config.FeedPumpPortal:
		f.discovery = portal
	}

	switch cfg.Feed.Prices {
	case config.FeedPumpPortal:
		f.prices = portal
	case config.FeedDexScreener:
		dcfg := dexscreener.DefaultConfig()
		dcfg.BaseURL = cfg.Feed.DexScreenerURL
		f.prices = dexscreener.New(dcfg, log.Named("dexscreener"))
	}

	log.Info("feeds ready",
		zap.String("discovery", cfg.Feed.Discovery),
		zap.String("prices", cfg.Feed.Prices),
		zap.Bool("rpc_mint_lookup", cfg.Feed.RPCEndpoint != ""),
	)
	return f, nil
}
