// Package config loads service configuration from defaults, a TOML file,
// a .env file and SNIPER_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// ErrInvalid is returned when the merged configuration is unusable.
var ErrInvalid = errors.New("invalid configuration")

// Feed modes.
const (
	FeedSim         = "sim"
	FeedPumpPortal  = "pumpportal"
	FeedDexScreener = "dexscreener" // prices only
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config is the merged service configuration.
type Config struct {
	Trading domain.TradingConfig

	Engine struct {
		PollInterval      time.Duration
		DiscoveryInterval time.Duration
		SettleTimeout     time.Duration
		RecentLimit       int
	}

	Feed struct {
		Discovery      string // sim | pumpportal
		Prices         string // sim | pumpportal | dexscreener
		Seed           int64
		PumpPortalURL  string
		DexScreenerURL string
		RPCEndpoint    string // enables mint verification when set
		FetchMetadata  bool
	}

	Storage struct {
		Backend       string // memory | postgres | sqlite
		PostgresDSN   string
		SQLitePath    string
		ClickHouseDSN string // optional tick store
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string // json | console
	}
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.Trading = domain.DefaultTradingConfig()
	c.Engine.PollInterval = 5 * time.Second
	c.Engine.DiscoveryInterval = 5 * time.Second
	c.Engine.SettleTimeout = 5 * time.Second
	c.Engine.RecentLimit = 10
	c.Feed.Discovery = FeedSim
	c.Feed.Prices = FeedSim
	c.Feed.Seed = 1
	c.Feed.PumpPortalURL = "wss://pumpportal.fun/api/data"
	c.Feed.DexScreenerURL = "https://api.dexscreener.com"
	c.Feed.FetchMetadata = true
	c.Storage.Backend = StorageMemory
	c.Storage.SQLitePath = "sniper.db"
	c.HTTP.Addr = ":8080"
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}

// Load merges defaults, the TOML file at path and the .env file at envFile.
// Either path may be empty; a missing .env file is not an error.
// Process environment variables win over .env entries.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var f fileConfig
		if err := toml.Unmarshal(data, &f); err != nil {
			return Config{}, fmt.Errorf("parse toml %s: %w", path, err)
		}
		if err := f.apply(&cfg); err != nil {
			return Config{}, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if err := c.Trading.Validate(); err != nil {
		return err
	}
	switch c.Feed.Discovery {
	case FeedSim, FeedPumpPortal:
	default:
		return fmt.Errorf("%w: discovery feed %q", ErrInvalid, c.Feed.Discovery)
	}
	switch c.Feed.Prices {
	case FeedSim, FeedPumpPortal, FeedDexScreener:
	default:
		return fmt.Errorf("%w: price feed %q", ErrInvalid, c.Feed.Prices)
	}
	if c.Feed.Prices == FeedSim && c.Feed.Discovery != FeedSim {
		return fmt.Errorf("%w: sim prices need sim discovery", ErrInvalid)
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres backend needs a dsn", ErrInvalid)
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite backend needs a path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: storage backend %q", ErrInvalid, c.Storage.Backend)
	}
	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be > 0", ErrInvalid)
	}
	if c.Engine.DiscoveryInterval < 0 {
		return fmt.Errorf("%w: discovery interval must be >= 0", ErrInvalid)
	}
	if c.Engine.RecentLimit < 1 {
		return fmt.Errorf("%w: recent limit must be >= 1", ErrInvalid)
	}
	return nil
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dec := func(key string, dst *decimal.Decimal) {
		if v, ok := lookup(key); ok {
			d, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	t := &c.Trading
	dec("SNIPER_ENTRY_SIZE", &t.EntrySize)
	integer("SNIPER_MAX_POSITIONS", &t.MaxConcurrentPositions)
	dec("SNIPER_MIN_BUY_VALUATION", &t.MinBuyValuation)
	dec("SNIPER_PROFIT_TARGET", &t.ProfitTargetOffset)
	dec("SNIPER_STOP_LOSS", &t.StopLossOffset)
	dec("SNIPER_SLIPPAGE_PCT", &t.SlippagePct)
	boolean("SNIPER_REQUIRE_TWITTER", &t.Socials.Twitter)
	boolean("SNIPER_REQUIRE_TELEGRAM", &t.Socials.Telegram)
	boolean("SNIPER_REQUIRE_WEBSITE", &t.Socials.Website)
	integer("SNIPER_PAGE_SIZE", &t.HistoryPageSize)

	duration("SNIPER_POLL_INTERVAL", &c.Engine.PollInterval)
	duration("SNIPER_DISCOVERY_INTERVAL", &c.Engine.DiscoveryInterval)
	duration("SNIPER_SETTLE_TIMEOUT", &c.Engine.SettleTimeout)
	integer("SNIPER_RECENT_LIMIT", &c.Engine.RecentLimit)

	str("SNIPER_DISCOVERY_FEED", &c.Feed.Discovery)
	str("SNIPER_PRICE_FEED", &c.Feed.Prices)
	if v, ok := lookup("SNIPER_SEED"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SNIPER_SEED: %w", err))
		} else {
			c.Feed.Seed = n
		}
	}
	str("SNIPER_PUMPPORTAL_URL", &c.Feed.PumpPortalURL)
	str("SNIPER_DEXSCREENER_URL", &c.Feed.DexScreenerURL)
	str("SNIPER_RPC_ENDPOINT", &c.Feed.RPCEndpoint)
	boolean("SNIPER_FETCH_METADATA", &c.Feed.FetchMetadata)

	str("SNIPER_STORAGE", &c.Storage.Backend)
	str("SNIPER_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("SNIPER_SQLITE_PATH", &c.Storage.SQLitePath)
	str("SNIPER_CLICKHOUSE_DSN", &c.Storage.ClickHouseDSN)

	str("SNIPER_HTTP_ADDR", &c.HTTP.Addr)
	str("SNIPER_LOG_LEVEL", &c.Log.Level)
	str("SNIPER_LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
