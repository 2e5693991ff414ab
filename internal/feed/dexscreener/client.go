// Package dexscreener polls token market caps from the DexScreener HTTP API.
package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-sniper/internal/feed"
	"solana-sniper/internal/observability"
)

// DefaultBaseURL is the public DexScreener API.
const DefaultBaseURL = "https://api.dexscreener.com"

// ErrRateLimited is returned when retries are exhausted on HTTP 429.
var ErrRateLimited = errors.New("dexscreener rate limited")

// Config configures the client.
type Config struct {
	BaseURL    string
	ChainID    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		ChainID:    "solana",
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Client implements feed.PriceFeed. Valuations are market caps converted
// from USD to SOL through the pair's native price.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChainID == "" {
		cfg.ChainID = "solana"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type tokensResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	ChainID     string  `json:"chainId"`
	DexID       string  `json:"dexId"`
	PairAddress string  `json:"pairAddress"`
	BaseToken   token   `json:"baseToken"`
	PriceNative string  `json:"priceNative"`
	PriceUSD    string  `json:"priceUsd"`
	MarketCap   float64 `json:"marketCap"`
	FDV         float64 `json:"fdv"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type token struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// Update returns the SOL market cap of mint taken from its most liquid pair.
func (c *Client) Update(ctx context.Context, mint string) (decimal.Decimal, error) {
	start := time.Now()
	resp, err := c.fetch(ctx, mint)
	observability.RecordFeedLatency("dexscreener", time.Since(start).Seconds())
	if err != nil {
		observability.RecordFeedError("dexscreener", "http")
		return decimal.Zero, err
	}

	best, ok := selectPair(resp.Pairs, c.cfg.ChainID, mint)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", mint, feed.ErrNoQuote)
	}

	v, err := marketCapSol(best)
	if err != nil {
		observability.RecordFeedError("dexscreener", "decode")
		return decimal.Zero, fmt.Errorf("%s pair %s: %w", mint, best.PairAddress, err)
	}
	return v, nil
}

// selectPair picks the pair with the highest USD liquidity whose base token
// is mint.
func selectPair(pairs []pair, chainID, mint string) (pair, bool) {
	var (
		best  pair
		found bool
	)
	for _, p := range pairs {
		if p.ChainID != chainID || p.BaseToken.Address != mint {
			continue
		}
		if !found || p.Liquidity.USD > best.Liquidity.USD {
			best = p
			found = true
		}
	}
	return best, found
}

func marketCapSol(p pair) (decimal.Decimal, error) {
	native, err := decimal.NewFromString(p.PriceNative)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse priceNative: %w", err)
	}
	usd, err := decimal.NewFromString(p.PriceUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse priceUsd: %w", err)
	}
	if usd.IsZero() {
		return decimal.Zero, fmt.Errorf("zero usd price")
	}

	capUSD := p.MarketCap
	if capUSD <= 0 {
		capUSD = p.FDV
	}
	if capUSD <= 0 {
		return decimal.Zero, fmt.Errorf("no market cap")
	}

	return decimal.NewFromFloat(capUSD).Mul(native).Div(usd).Round(9), nil
}

func (c *Client) fetch(ctx context.Context, mint string) (*tokensResponse, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/latest/dex/tokens/" + mint

	var lastErr error
	delay := c.cfg.RetryDelay
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, retry, err := c.doRequest(ctx, url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		c.logger.Debug("dexscreener retry", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, url string) (*tokensResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var out tokensResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, false, nil
}

var _ feed.PriceFeed = (*Client)(nil)
