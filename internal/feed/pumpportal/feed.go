// Package pumpportal streams newly created pump.fun tokens and their trades
// from the PumpPortal WebSocket API.
package pumpportal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/feed"
	"solana-sniper/internal/observability"
)

// DefaultEndpoint is the public PumpPortal data stream.
const DefaultEndpoint = "wss://pumpportal.fun/api/data"

// MintChecker rejects addresses that are not token mints.
type MintChecker interface {
	Verify(ctx context.Context, mint string) error
}

// Config configures the feed.
type Config struct {
	Endpoint string

	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration

	// FetchMetadata resolves social links from the token metadata URI.
	FetchMetadata   bool
	MetadataTimeout time.Duration
	// MetadataWorkers bounds concurrent metadata fetches.
	MetadataWorkers int
	// Buffer is the number of candidates held for Next, and of create
	// events waiting for a metadata worker.
	Buffer int
	// QuoteCache bounds the creation-time market caps kept for mints that
	// have no open position yet.
	QuoteCache int
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:          DefaultEndpoint,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		FetchMetadata:     true,
		MetadataTimeout:   5 * time.Second,
		MetadataWorkers:   8,
		Buffer:            1024,
		QuoteCache:        4096,
	}
}

// Options carries the feed's collaborators.
type Options struct {
	HTTPClient *http.Client // metadata fetches
	Verifier   MintChecker  // optional
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Feed implements feed.DiscoveryFeed from create events and feed.PriceFeed
// from trade events. Market caps are reported in SOL.
type Feed struct {
	cfg        Config
	httpClient *http.Client
	verifier   MintChecker
	clock      func() time.Time
	logger     *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	closed       atomic.Bool
	reconnecting atomic.Bool
	done         chan struct{}
	wg           sync.WaitGroup

	candidates chan *domain.TokenCandidate
	jobs       chan event // create events awaiting verification or metadata

	mu      sync.RWMutex
	tracked map[string]struct{}        // mints subscribed for trades
	quotes  map[string]decimal.Decimal // tracked mint -> last market cap
	created map[string]decimal.Decimal // untracked mint -> market cap at creation
	order   []string                   // created keys, oldest first
}

// New connects to the endpoint and subscribes to token creation events.
func New(ctx context.Context, cfg Config, opts Options) (*Feed, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.MetadataWorkers <= 0 {
		cfg.MetadataWorkers = 8
	}
	if cfg.QuoteCache <= 0 {
		cfg.QuoteCache = 4096
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: cfg.MetadataTimeout}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	f := &Feed{
		cfg:        cfg,
		httpClient: opts.HTTPClient,
		verifier:   opts.Verifier,
		clock:      opts.Clock,
		logger:     opts.Logger,
		done:       make(chan struct{}),
		candidates: make(chan *domain.TokenCandidate, cfg.Buffer),
		jobs:       make(chan event, cfg.Buffer),
		tracked:    make(map[string]struct{}),
		quotes:     make(map[string]decimal.Decimal),
		created:    make(map[string]decimal.Decimal),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}
	if err := f.send(subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
		f.Close()
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	if cfg.FetchMetadata || opts.Verifier != nil {
		for i := 0; i < cfg.MetadataWorkers; i++ {
			f.wg.Add(1)
			go f.worker()
		}
	}

	return f, nil
}

// Next returns the next created token.
func (f *Feed) Next(ctx context.Context) (*domain.TokenCandidate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-f.candidates:
		if !ok {
			return nil, feed.ErrFeedClosed
		}
		return c, nil
	case <-f.done:
		return nil, feed.ErrFeedClosed
	}
}

// Update returns the last traded market cap of mint. The first call for a
// mint subscribes to its trades; until a trade or the create event has been
// seen it returns ErrNoQuote.
func (f *Feed) Update(_ context.Context, mint string) (decimal.Decimal, error) {
	if f.closed.Load() {
		return decimal.Zero, feed.ErrFeedClosed
	}

	f.mu.Lock()
	_, tracked := f.tracked[mint]
	if !tracked {
		f.tracked[mint] = struct{}{}
		if v, ok := f.created[mint]; ok {
			f.quotes[mint] = v
			delete(f.created, mint)
		}
	}
	v, ok := f.quotes[mint]
	f.mu.Unlock()

	if !tracked {
		if err := f.send(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: []string{mint}}); err != nil {
			f.mu.Lock()
			delete(f.tracked, mint)
			f.mu.Unlock()
			return decimal.Zero, fmt.Errorf("subscribe trades %s: %w", mint, err)
		}
	}

	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", mint, feed.ErrNoQuote)
	}
	return v, nil
}

// Retain unsubscribes from trades of every tracked mint not in open and
// drops its quote.
func (f *Feed) Retain(_ context.Context, open []string) error {
	keep := make(map[string]struct{}, len(open))
	for _, id := range open {
		keep[id] = struct{}{}
	}

	f.mu.Lock()
	var stale []string
	for mint := range f.tracked {
		if _, ok := keep[mint]; !ok {
			stale = append(stale, mint)
			delete(f.tracked, mint)
			delete(f.quotes, mint)
		}
	}
	f.mu.Unlock()

	if len(stale) == 0 {
		return nil
	}
	if err := f.send(subscribeRequest{Method: methodUnsubscribeTokenTrade, Keys: stale}); err != nil {
		// The connection is gone; reconnect only resubscribes tracked mints.
		return fmt.Errorf("unsubscribe trades: %w", err)
	}
	return nil
}

// Close closes the WebSocket connection.
func (f *Feed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

func (f *Feed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

func (f *Feed) send(req subscribeRequest) error {
	if f.closed.Load() {
		return feed.ErrFeedClosed
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	if err := f.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// readLoop reads messages and reconnects with exponential backoff on errors.
func (f *Feed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.cfg.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			observability.RecordFeedError("pumpportal", "read")
			f.logger.Warn("pumpportal read failed, reconnecting",
				zap.Duration("delay", reconnectDelay),
				zap.Error(err),
			)

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.cfg.MaxReconnectDelay {
				reconnectDelay = f.cfg.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = f.cfg.ReconnectDelay
		f.handleMessage(message)
	}
}

// reconnect redials and restores every subscription.
func (f *Feed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		// Retried on the next read error.
		return
	}

	if err := f.send(subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
		f.logger.Warn("resubscribe new tokens failed", zap.Error(err))
	}

	f.mu.RLock()
	keys := make([]string, 0, len(f.tracked))
	for mint := range f.tracked {
		keys = append(keys, mint)
	}
	f.mu.RUnlock()

	if len(keys) > 0 {
		if err := f.send(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: keys}); err != nil {
			f.logger.Warn("resubscribe trades failed", zap.Int("mints", len(keys)), zap.Error(err))
		}
	}
	f.logger.Info("pumpportal reconnected", zap.Int("tracked_mints", len(keys)))
}

func (f *Feed) handleMessage(raw []byte) {
	var msg event
	if err := json.Unmarshal(raw, &msg); err != nil {
		observability.RecordFeedError("pumpportal", "decode")
		return
	}

	switch {
	case msg.Errors != "":
		f.logger.Warn("pumpportal error", zap.String("errors", msg.Errors))
	case msg.Message != "":
		f.logger.Debug("pumpportal", zap.String("message", msg.Message))
	case msg.Mint == "":
		return
	case msg.TxType == txCreate:
		f.setCreated(msg.Mint, msg.MarketCapSol)
		f.handleCreate(msg)
	case msg.TxType == txBuy || msg.TxType == txSell:
		f.setTraded(msg.Mint, msg.MarketCapSol)
	}
}

// setCreated keeps the creation market cap so the first Update after a buy
// has a quote. Untracked entries are evicted oldest first.
func (f *Feed) setCreated(mint string, marketCapSol float64) {
	if marketCapSol <= 0 {
		return
	}
	v := decimal.NewFromFloat(marketCapSol)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tracked[mint]; ok {
		f.quotes[mint] = v
		return
	}
	if _, ok := f.created[mint]; !ok {
		f.order = append(f.order, mint)
	}
	f.created[mint] = v
	for len(f.order) > f.cfg.QuoteCache {
		delete(f.created, f.order[0])
		f.order = f.order[1:]
	}
}

// setTraded records a trade quote. Trades for mints no longer tracked can
// arrive until the unsubscribe lands and are ignored.
func (f *Feed) setTraded(mint string, marketCapSol float64) {
	if marketCapSol <= 0 {
		return
	}

	f.mu.Lock()
	if _, ok := f.tracked[mint]; ok {
		f.quotes[mint] = decimal.NewFromFloat(marketCapSol)
	}
	f.mu.Unlock()
}

// handleCreate hands the event to the worker pool when it needs
// verification or metadata. It never blocks the read loop: with every
// worker busy and the backlog full the candidate is dropped.
func (f *Feed) handleCreate(msg event) {
	if !f.cfg.FetchMetadata && f.verifier == nil {
		f.enqueue(f.candidate(msg))
		return
	}

	select {
	case f.jobs <- msg:
	default:
		observability.RecordFeedError("pumpportal", "backlog_full")
		f.logger.Warn("create event dropped, metadata backlog full", zap.String("mint", msg.Mint))
	}
}

func (f *Feed) candidate(msg event) *domain.TokenCandidate {
	return &domain.TokenCandidate{
		Mint:         msg.Mint,
		Name:         msg.Name,
		Symbol:       msg.Symbol,
		Valuation:    decimal.NewFromFloat(msg.MarketCapSol),
		Source:       domain.SourcePumpPortal,
		DiscoveredAt: f.clock(),
	}
}

// worker verifies mints and resolves socials for queued create events.
func (f *Feed) worker() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return
		case msg := <-f.jobs:
			if c := f.resolve(msg); c != nil {
				f.enqueue(c)
			}
		}
	}
}

// resolve returns nil when the mint fails verification.
func (f *Feed) resolve(msg event) *domain.TokenCandidate {
	c := f.candidate(msg)

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.MetadataTimeout)
	defer cancel()

	if f.verifier != nil {
		if err := f.verifier.Verify(ctx, c.Mint); err != nil {
			observability.RecordFeedError("pumpportal", "verify")
			f.logger.Debug("mint rejected", zap.String("mint", c.Mint), zap.Error(err))
			return nil
		}
	}
	if f.cfg.FetchMetadata && msg.URI != "" {
		socials, err := fetchSocials(ctx, f.httpClient, msg.URI)
		if err != nil {
			observability.RecordFeedError("pumpportal", "metadata")
			f.logger.Debug("metadata fetch failed", zap.String("mint", c.Mint), zap.Error(err))
		}
		c.Socials = socials
	}
	return c
}

func (f *Feed) enqueue(c *domain.TokenCandidate) {
	select {
	case f.candidates <- c:
	case <-f.done:
	default:
		observability.RecordFeedError("pumpportal", "queue_full")
		f.logger.Warn("candidate dropped, queue full", zap.String("mint", c.Mint))
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
				// A dead connection surfaces in readLoop.
				_ = f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}

var (
	_ feed.DiscoveryFeed = (*Feed)(nil)
	_ feed.PriceFeed     = (*Feed)(nil)
	_ feed.Retainer      = (*Feed)(nil)
)
