package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// fileConfig mirrors the TOML layout. Unset keys keep their defaults, so
// every scalar is a pointer. Decimals and durations are strings
// ("1.5", "5s").
type fileConfig struct {
	Trading struct {
		EntrySize       *string                    `toml:"entry_size"`
		MaxPositions    *int                       `toml:"max_positions"`
		MinBuyValuation *string                    `toml:"min_buy_valuation"`
		ProfitTarget    *string                    `toml:"profit_target"`
		StopLoss        *string                    `toml:"stop_loss"`
		SlippagePct     *string                    `toml:"slippage_pct"`
		PageSize        *int                       `toml:"page_size"`
		Socials         *domain.SocialRequirements `toml:"socials"`
	} `toml:"trading"`

	Engine struct {
		PollInterval      *string `toml:"poll_interval"`
		DiscoveryInterval *string `toml:"discovery_interval"`
		SettleTimeout     *string `toml:"settle_timeout"`
		RecentLimit       *int    `toml:"recent_limit"`
	} `toml:"engine"`

	Feed struct {
		Discovery      *string `toml:"discovery"`
		Prices         *string `toml:"prices"`
		Seed           *int64  `toml:"seed"`
		PumpPortalURL  *string `toml:"pumpportal_url"`
		DexScreenerURL *string `toml:"dexscreener_url"`
		RPCEndpoint    *string `toml:"rpc_endpoint"`
		FetchMetadata  *bool   `toml:"fetch_metadata"`
	} `toml:"feed"`

	Storage struct {
		Backend       *string `toml:"backend"`
		PostgresDSN   *string `toml:"postgres_dsn"`
		SQLitePath    *string `toml:"sqlite_path"`
		ClickHouseDSN *string `toml:"clickhouse_dsn"`
	} `toml:"storage"`

	HTTP struct {
		Addr *string `toml:"addr"`
	} `toml:"http"`

	Log struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
}

func (f *fileConfig) apply(c *Config) error {
	var errs []error

	dec := func(key string, src *string, dst *decimal.Decimal) {
		if src == nil {
			return
		}
		d, err := decimal.NewFromString(*src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	dur := func(key string, src *string, dst *time.Duration) {
		if src == nil {
			return
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	t := &c.Trading
	dec("trading.entry_size", f.Trading.EntrySize, &t.EntrySize)
	setIf(f.Trading.MaxPositions, &t.MaxConcurrentPositions)
	dec("trading.min_buy_valuation", f.Trading.MinBuyValuation, &t.MinBuyValuation)
	dec("trading.profit_target", f.Trading.ProfitTarget, &t.ProfitTargetOffset)
	dec("trading.stop_loss", f.Trading.StopLoss, &t.StopLossOffset)
	dec("trading.slippage_pct", f.Trading.SlippagePct, &t.SlippagePct)
	setIf(f.Trading.PageSize, &t.HistoryPageSize)
	setIf(f.Trading.Socials, &t.Socials)

	dur("engine.poll_interval", f.Engine.PollInterval, &c.Engine.PollInterval)
	dur("engine.discovery_interval", f.Engine.DiscoveryInterval, &c.Engine.DiscoveryInterval)
	dur("engine.settle_timeout", f.Engine.SettleTimeout, &c.Engine.SettleTimeout)
	setIf(f.Engine.RecentLimit, &c.Engine.RecentLimit)

	setIf(f.Feed.Discovery, &c.Feed.Discovery)
	setIf(f.Feed.Prices, &c.Feed.Prices)
	setIf(f.Feed.Seed, &c.Feed.Seed)
	setIf(f.Feed.PumpPortalURL, &c.Feed.PumpPortalURL)
	setIf(f.Feed.DexScreenerURL, &c.Feed.DexScreenerURL)
	setIf(f.Feed.RPCEndpoint, &c.Feed.RPCEndpoint)
	setIf(f.Feed.FetchMetadata, &c.Feed.FetchMetadata)

	setIf(f.Storage.Backend, &c.Storage.Backend)
	setIf(f.Storage.PostgresDSN, &c.Storage.PostgresDSN)
	setIf(f.Storage.SQLitePath, &c.Storage.SQLitePath)
	setIf(f.Storage.ClickHouseDSN, &c.Storage.ClickHouseDSN)

	setIf(f.HTTP.Addr, &c.HTTP.Addr)
	setIf(f.Log.Level, &c.Log.Level)
	setIf(f.Log.Format, &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func setIf[T any](src *T, dst *T) {
	if src != nil {
		*dst = *src
	}
}
