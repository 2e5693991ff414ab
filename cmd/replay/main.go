// Package main replays a JSON-lines event script through the engine offline
// and prints the resulting positions, trades and stats.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"solana-sniper/internal/config"
	"solana-sniper/internal/engine"
	"solana-sniper/internal/logger"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/replay"
	"solana-sniper/internal/reporting"
	"solana-sniper/internal/settlement"
	"solana-sniper/internal/storage/memory"
)

func main() {
	scriptPath := flag.String("script", "", "JSON-lines event script, - for stdin (required)")
	configPath := flag.String("config", "", "TOML configuration file for trading parameters")
	format := flag.String("format", "table", "Output format: table, markdown or csv")
	start := flag.String("start", "", "Clock start (RFC3339); defaults to the first event time")
	seed := flag.Int64("seed", 1, "Receipt generator seed")
	strict := flag.Bool("strict", false, "Stop at the first rejected event")
	verify := flag.Bool("verify", false, "Replay twice and fail if the trade histories differ")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	log, err := logger.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *scriptPath == "" {
		log.Fatal("--script is required")
	}
	outFormat, err := reporting.ParseFormat(*format)
	if err != nil {
		log.Fatal("invalid format", zap.Error(err))
	}

	cfg, err := config.Load(*configPath, "")
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	events, err := readScript(*scriptPath)
	if err != nil {
		log.Fatal("read script", zap.Error(err))
	}

	startAt, err := clockStart(*start, events)
	if err != nil {
		log.Fatal("invalid --start", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	first, err := replayOnce(ctx, cfg, events, startAt, *seed, *strict, log)
	if err != nil {
		log.Fatal("replay failed", zap.Error(err))
	}
	log.Info("replay complete",
		zap.Int("events", len(events)),
		zap.Int("applied", first.result.Applied),
		zap.Int("skipped", first.result.Skipped),
		zap.Int("opened", len(first.result.Opened)),
		zap.Int("closed", len(first.result.Closed)),
	)

	if *verify {
		second, err := replayOnce(ctx, cfg, events, startAt, *seed, *strict, log)
		if err != nil {
			log.Fatal("verification replay failed", zap.Error(err))
		}
		vr := replay.CompareTrades(first.engine.Trades(), second.engine.Trades())
		if !vr.Match() {
			for _, res := range vr.Results {
				for _, d := range res.Divergences {
					log.Error("divergence",
						zap.Int64("seq", res.Seq),
						zap.String("field", d.Field),
						zap.String("expected", d.Expected),
						zap.String("actual", d.Actual),
					)
				}
			}
			log.Fatal("replay is not deterministic",
				zap.Int("divergent", vr.DivergentTrades),
				zap.Int("missing", vr.Missing),
				zap.Int("extra", vr.Extra),
			)
		}
		log.Info("replay verified", zap.Int("trades", vr.TotalTrades))
	}

	report, err := reporting.NewGenerator(first.trades, first.positions).WithClock(first.clock.Now).Generate(ctx)
	if err != nil {
		log.Fatal("generate report", zap.Error(err))
	}
	if err := reporting.Render(os.Stdout, report, outFormat); err != nil {
		log.Fatal("render report", zap.Error(err))
	}
}

// run is one replay on a fresh engine backed by memory stores.
type run struct {
	engine    *engine.Engine
	clock     *replay.Clock
	trades    *memory.TradeStore
	positions *memory.PositionStore
	result    replay.Result
}

func replayOnce(ctx context.Context, cfg config.Config, events []replay.Event, start time.Time, seed int64, strict bool, log *zap.Logger) (*run, error) {
	r := &run{
		clock:     replay.NewClock(start),
		trades:    memory.NewTradeStore(),
		positions: memory.NewPositionStore(),
	}
	sessions := 0

	e, err := engine.New(engine.Options{
		Config:      cfg.Trading,
		Receipts:    settlement.NewSimulated(seed),
		Trades:      r.trades,
		Positions:   r.positions,
		Discoveries: memory.NewDiscoveryStore(),
		RecentLimit: cfg.Engine.RecentLimit,
		Clock:       r.clock.Now,
		NewSessionID: func() string {
			sessions++
			return fmt.Sprintf("replay-%d", sessions)
		},
		Metrics: observability.NewMetrics("replay", prometheus.NewRegistry()),
		Logger:  log.Named("engine"),
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	r.engine = e

	r.result, err = replay.NewRunner(e, r.clock, replay.Options{Strict: strict, Logger: log}).Run(ctx, events)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func readScript(path string) ([]replay.Event, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return replay.Decode(r)
}

// clockStart picks the replay clock origin: the flag, else the first
// timestamped event, else the Unix epoch.
func clockStart(flagValue string, events []replay.Event) (time.Time, error) {
	if flagValue != "" {
		return time.Parse(time.RFC3339, flagValue)
	}
	for _, ev := range events {
		if !ev.At.IsZero() {
			return ev.At, nil
		}
	}
	return time.Unix(0, 0).UTC(), nil
}
