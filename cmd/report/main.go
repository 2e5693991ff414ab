// Package main renders a trading report from persisted trades and open
// positions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"solana-sniper/internal/config"
	"solana-sniper/internal/reporting"
	"solana-sniper/internal/storage"
	pgstore "solana-sniper/internal/storage/postgres"
	sqlitestore "solana-sniper/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	envFile := flag.String("env-file", ".env", "dotenv file (missing is fine)")
	format := flag.String("format", "table", "Output format: table, markdown or csv")
	output := flag.String("output", "", "Write to this file instead of stdout")
	flag.Parse()

	if err := run(*configPath, *envFile, *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile, format, output string) error {
	ctx := context.Background()

	outFormat, err := reporting.ParseFormat(format)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	var (
		trades    storage.TradeStore
		positions storage.PositionStore
	)
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		trades = pgstore.NewTradeStore(pool)
		positions = pgstore.NewPositionStore(pool)
	case config.StorageSQLite:
		db, err := sqlitestore.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		trades = sqlitestore.NewTradeStore(db)
		positions = sqlitestore.NewPositionStore(db)
	default:
		return fmt.Errorf("storage backend %q keeps nothing to report on; use postgres or sqlite", cfg.Storage.Backend)
	}

	report, err := reporting.NewGenerator(trades, positions).Generate(ctx)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}
	return reporting.Render(w, report, outFormat)
}
