// Package engine drives the trading loop: discoveries open positions, price
// ticks update and close them, and closes become trade records.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/eligibility"
	"solana-sniper/internal/feed"
	"solana-sniper/internal/idhash"
	"solana-sniper/internal/ledger"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/recorder"
	"solana-sniper/internal/storage"
	"solana-sniper/internal/strategy"
)

// Rejection reasons recorded for candidates the ledger refused.
const (
	reasonCapacity         = "capacity_exceeded"
	reasonInvalidValuation = "invalid_valuation"
)

// Options configures an Engine.
type Options struct {
	Config domain.TradingConfig

	// Receipts settles closes. Nil leaves receipts empty.
	Receipts      feed.ReceiptProvider
	SettleTimeout time.Duration // default 5s

	// Optional write-through persistence. Memory stays authoritative.
	Trades      storage.TradeStore
	Positions   storage.PositionStore
	Discoveries storage.DiscoveryStore
	Ticks       storage.TickStore

	RecentLimit  int // default DefaultRecentLimit
	Clock        func() time.Time
	NewSessionID func() string
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// HistoryPage is one page of trade history.
type HistoryPage struct {
	Trades     []domain.TradeRecord `json:"trades"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
	Total      int                  `json:"total"`
}

// Engine serializes every event through one lock so that
// update, evaluate, close and record run as a unit per position. Receipts are
// obtained after the lock is released and attached to the recorded trade.
type Engine struct {
	mu        sync.RWMutex
	status    Status
	sessionID string
	state     *State

	receipts      feed.ReceiptProvider
	settleTimeout time.Duration
	trades        storage.TradeStore
	positions     storage.PositionStore
	discoveries   storage.DiscoveryStore
	ticks         storage.TickStore
	recentLimit   int
	clock         func() time.Time
	newSessionID  func() string
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// New creates an IDLE engine. The configuration must be valid.
func New(opts Options) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 5 * time.Second
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{
		status:        StatusIdle,
		state:         newState(opts.Config, opts.RecentLimit, opts.Clock),
		receipts:      opts.Receipts,
		settleTimeout: opts.SettleTimeout,
		trades:        opts.Trades,
		positions:     opts.Positions,
		discoveries:   opts.Discoveries,
		ticks:         opts.Ticks,
		recentLimit:   opts.RecentLimit,
		clock:         opts.Clock,
		newSessionID:  opts.NewSessionID,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
	}, nil
}

// Start moves IDLE to RUNNING under a new session ID.
func (e *Engine) Start() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusRunning {
		return "", ErrAlreadyRunning
	}
	e.status = StatusRunning
	e.sessionID = e.newSessionID()
	e.metrics.EngineRunning.Set(1)
	e.logger.Info("engine started", zap.String("session_id", e.sessionID))

	return e.sessionID, nil
}

// Stop moves RUNNING to IDLE. An event already being processed finishes
// first; open positions stay open.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return ErrNotRunning
	}
	e.status = StatusIdle
	e.metrics.EngineRunning.Set(0)
	e.logger.Info("engine stopped",
		zap.String("session_id", e.sessionID),
		zap.Int("open_positions", e.state.ledger.Len()),
	)

	return nil
}

// Status returns the lifecycle state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.status
}

// SessionID returns the ID allocated by the last Start.
func (e *Engine) SessionID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sessionID
}

// Config returns the active trading configuration.
func (e *Engine) Config() domain.TradingConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.config
}

// UpdateConfig applies a partial update. An invalid result is rejected and
// the previous configuration is kept.
func (e *Engine) UpdateConfig(p domain.ConfigPatch) (domain.TradingConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.config.Apply(p)
	if err := next.Validate(); err != nil {
		return e.state.config, err
	}
	e.state.config = next
	e.logger.Info("config updated",
		zap.String("entry_size", next.EntrySize.String()),
		zap.Int("max_concurrent_positions", next.MaxConcurrentPositions),
		zap.String("min_buy_valuation", next.MinBuyValuation.String()),
		zap.String("profit_target_offset", next.ProfitTargetOffset.String()),
		zap.String("stop_loss_offset", next.StopLossOffset.String()),
	)

	return next, nil
}

// HandleDiscovery runs c through the eligibility filter and opens a position
// when the ledger has room. It returns the opened position, or nil when the
// candidate was discarded.
func (e *Engine) HandleDiscovery(ctx context.Context, c *domain.TokenCandidate) (*domain.Position, error) {
	if c == nil || c.Mint == "" {
		return nil, ErrInvalidCandidate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return nil, ErrNotRunning
	}

	cand := *c
	if cand.DiscoveredAt.IsZero() {
		cand.DiscoveredAt = e.clock()
	}
	e.metrics.CandidatesDiscovered.WithLabelValues(cand.Source.String()).Inc()

	rec := domain.DiscoveryRecord{
		ID:        idhash.ComputeDiscoveryID(cand.Mint, cand.Source.String(), cand.DiscoveredAt.UnixMilli()),
		Candidate: cand,
	}

	var opened *domain.Position
	cfg := e.state.config
	if reason := eligibility.Check(&cand, e.state.ledger, cfg); reason != eligibility.ReasonNone {
		rec.Reason = string(reason)
		e.metrics.CandidatesRejected.WithLabelValues(rec.Reason).Inc()
		e.logger.Debug("candidate rejected",
			zap.String("mint", cand.Mint),
			zap.String("valuation", cand.Valuation.String()),
			zap.String("reason", rec.Reason),
		)
	} else {
		p, err := e.state.ledger.Open(&cand, cfg)
		switch {
		case err == nil:
			opened = &p
			rec.Accepted = true
			e.metrics.PositionsOpened.Inc()
			e.logger.Info("position opened",
				zap.String("session_id", e.sessionID),
				zap.String("position_id", p.ID),
				zap.String("name", p.Name),
				zap.String("entry_valuation", p.EntryValuation.String()),
				zap.String("entry_size", p.EntrySize.String()),
			)
		case errors.Is(err, ledger.ErrCapacityExceeded):
			rec.Reason = reasonCapacity
			e.metrics.CapacityRejections.Inc()
			e.logger.Debug("candidate discarded at capacity",
				zap.String("mint", cand.Mint),
				zap.Int("max_concurrent_positions", cfg.MaxConcurrentPositions),
			)
		case errors.Is(err, ledger.ErrInvalidValuation):
			rec.Reason = reasonInvalidValuation
			e.metrics.CandidatesRejected.WithLabelValues(rec.Reason).Inc()
			e.logger.Warn("candidate with non-positive valuation", zap.String("mint", cand.Mint))
		default:
			return nil, fmt.Errorf("open %s: %w", cand.Mint, err)
		}
	}

	if opened != nil {
		e.state.recent.remove(cand.Mint)
		e.savePosition(ctx, opened)
	} else {
		e.state.recent.push(cand)
	}
	e.metrics.OpenPositions.Set(float64(e.state.ledger.Len()))
	e.insertDiscovery(ctx, &rec)

	return opened, nil
}

// HandlePriceTick updates position id, evaluates it and closes it when an
// exit triggers. A tick for an id that is not open is ignored.
func (e *Engine) HandlePriceTick(ctx context.Context, id string, valuation decimal.Decimal) (*domain.TradeRecord, error) {
	t, err := e.priceTick(ctx, id, valuation)
	if t != nil {
		e.settleTrade(ctx, t)
	}
	return t, err
}

func (e *Engine) priceTick(ctx context.Context, id string, valuation decimal.Decimal) (*domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return nil, ErrNotRunning
	}
	return e.tickLocked(ctx, id, valuation)
}

// HandlePriceTicks processes a batch of ticks as one step and returns the
// trades it closed, in close order.
func (e *Engine) HandlePriceTicks(ctx context.Context, ticks []domain.ValuationTick) ([]domain.TradeRecord, error) {
	closed, err := e.priceTicks(ctx, ticks)
	for i := range closed {
		e.settleTrade(ctx, &closed[i])
	}
	return closed, err
}

func (e *Engine) priceTicks(ctx context.Context, ticks []domain.ValuationTick) ([]domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return nil, ErrNotRunning
	}

	var (
		closed []domain.TradeRecord
		errs   []error
	)
	for _, tick := range ticks {
		t, err := e.tickLocked(ctx, tick.PositionID, tick.Valuation)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if t != nil {
			closed = append(closed, *t)
		}
	}
	return closed, errors.Join(errs...)
}

func (e *Engine) tickLocked(ctx context.Context, id string, valuation decimal.Decimal) (*domain.TradeRecord, error) {
	p, err := e.state.ledger.UpdateValuation(id, valuation)
	if errors.Is(err, ledger.ErrNotFound) {
		e.metrics.NotFoundRaces.Inc()
		e.logger.Debug("tick for closed position ignored", zap.String("position_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	if e.ticks != nil {
		e.state.ticks = append(e.state.ticks, &domain.ValuationTick{
			PositionID: id,
			Valuation:  valuation,
			Timestamp:  p.UpdatedAt,
		})
	}

	decision, ok := strategy.Evaluate(p, e.state.config)
	if !ok {
		e.savePosition(ctx, &p)
		return nil, nil
	}
	return e.closeLocked(ctx, id, decision.Outcome, false)
}

// ManualClose closes position id at its current valuation regardless of the
// exit thresholds. An empty outcome is derived from the sign of the change.
// Allowed in either state.
func (e *Engine) ManualClose(ctx context.Context, id string, outcome domain.Outcome) (domain.TradeRecord, error) {
	if outcome != "" && !outcome.IsValid() {
		return domain.TradeRecord{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	t, err := e.manualClose(ctx, id, outcome)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	e.settleTrade(ctx, t)
	return *t, nil
}

func (e *Engine) manualClose(ctx context.Context, id string, outcome domain.Outcome) (*domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if outcome == "" {
		p, ok := e.state.ledger.Get(id)
		if !ok {
			return nil, ledger.ErrNotFound
		}
		outcome = strategy.ManualOutcome(p)
	}
	return e.closeLocked(ctx, id, outcome, true)
}

// closeLocked removes id from the ledger and records the trade. The ledger
// close succeeds at most once per open position, so a trade is recorded at
// most once.
func (e *Engine) closeLocked(ctx context.Context, id string, outcome domain.Outcome, manual bool) (*domain.TradeRecord, error) {
	p, err := e.state.ledger.Close(id)
	if err != nil {
		return nil, err
	}
	e.metrics.OpenPositions.Set(float64(e.state.ledger.Len()))
	e.deletePosition(ctx, id)

	return e.finish(ctx, p, outcome, manual)
}

// finish records a position already removed from the ledger. The receipt is
// attached later by settleTrade.
func (e *Engine) finish(_ context.Context, p domain.Position, outcome domain.Outcome, manual bool) (*domain.TradeRecord, error) {
	t, err := e.state.recorder.Record(p, p.Valuation, outcome, recorder.Meta{
		SessionID: e.sessionID,
		Manual:    manual,
	})
	if err != nil {
		if errors.Is(err, recorder.ErrInvariantViolation) {
			e.state.faults = append(e.state.faults, Fault{
				PositionID: p.ID,
				Name:       p.Name,
				Error:      err.Error(),
				At:         e.clock(),
			})
			e.metrics.InvariantViolations.Inc()
			e.logger.Error("position halted",
				zap.String("position_id", p.ID),
				zap.String("entry_valuation", p.EntryValuation.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	e.metrics.TradesClosed.WithLabelValues(string(t.Outcome), trigger).Inc()
	e.metrics.CumulativeProfit.Set(e.state.recorder.Stats().CumulativeProfit.InexactFloat64())
	e.logger.Info("position closed",
		zap.String("session_id", t.SessionID),
		zap.String("position_id", t.PositionID),
		zap.String("outcome", string(t.Outcome)),
		zap.Bool("manual", t.Manual),
		zap.String("entry_valuation", t.EntryValuation.String()),
		zap.String("exit_valuation", t.ExitValuation.String()),
		zap.String("profit", t.Profit.String()),
	)

	return &t, nil
}

// settleTrade obtains the receipt for a recorded trade without holding the
// engine lock, attaches it and persists the trade. A trade dropped by Reset
// in the meantime is left alone.
func (e *Engine) settleTrade(ctx context.Context, t *domain.TradeRecord) {
	t.Receipt = e.settle(ctx, t)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.recorder.SetReceipt(t.TradeID, t.Receipt) {
		return
	}
	if e.trades != nil {
		e.state.unsaved = append(e.state.unsaved, *t)
		e.flushTradesLocked(ctx)
	}
}

func (e *Engine) settle(ctx context.Context, t *domain.TradeRecord) string {
	if e.receipts == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, e.settleTimeout)
	defer cancel()

	receipt, err := e.receipts.Settle(ctx, feed.Settlement{
		SessionID:     t.SessionID,
		PositionID:    t.PositionID,
		Name:          t.Name,
		EntrySize:     t.EntrySize,
		ExitValuation: t.ExitValuation,
		Outcome:       t.Outcome,
	})
	if err != nil {
		e.metrics.FeedErrors.WithLabelValues("receipts", "settle").Inc()
		e.logger.Warn("settlement failed, keeping trade without receipt",
			zap.String("position_id", t.PositionID),
			zap.Error(err),
		)
		return ""
	}
	return receipt
}

// ListOpen returns a snapshot of open positions in open order.
func (e *Engine) ListOpen() []domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.ledger.List()
}

// ListRecentDiscoveries returns the recent-discoveries view, newest first.
func (e *Engine) ListRecentDiscoveries() []domain.TokenCandidate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.recent.list()
}

// History returns a 1-indexed page of trades in append order. A non-positive
// pageSize uses the configured page size.
func (e *Engine) History(page, pageSize int) HistoryPage {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if pageSize <= 0 {
		pageSize = e.state.config.HistoryPageSize
	}
	return HistoryPage{
		Trades:     e.state.recorder.Page(page, pageSize),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: e.state.recorder.Pages(pageSize),
		Total:      e.state.recorder.Len(),
	}
}

// Trades returns the full history in append order.
func (e *Engine) Trades() []domain.TradeRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.recorder.History()
}

// Stats returns the aggregates over history.
func (e *Engine) Stats() domain.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.state.recorder.Stats()
}

// Faults returns positions halted by an invariant violation.
func (e *Engine) Faults() []Fault {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Fault, len(e.state.faults))
	copy(result, e.state.faults)
	return result
}

// Reset discards positions, history, discoveries and faults, keeping the
// configuration. Only allowed while IDLE.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusRunning {
		return ErrRunning
	}

	e.state = newState(e.state.config, e.recentLimit, e.clock)
	e.metrics.OpenPositions.Set(0)
	e.metrics.CumulativeProfit.Set(0)

	if e.positions != nil {
		if err := e.positions.Clear(ctx); err != nil {
			e.persistFailed("positions", "clear", err)
		}
	}
	if e.trades != nil {
		if err := e.trades.Clear(ctx); err != nil {
			e.persistFailed("trades", "clear", err)
		}
	}
	e.logger.Info("engine reset")

	return nil
}

// Restore reloads open positions and trade history from the configured
// stores. Aggregates are recomputed from history. Only allowed while IDLE.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusRunning {
		return ErrRunning
	}
	if n := len(e.state.unsaved); n > 0 {
		return fmt.Errorf("restore: %d trades not yet persisted", n)
	}

	if e.positions != nil {
		stored, err := e.positions.List(ctx)
		if err != nil {
			return fmt.Errorf("load positions: %w", err)
		}
		positions := make([]domain.Position, len(stored))
		for i, p := range stored {
			positions[i] = *p
		}
		if err := e.state.ledger.Restore(positions); err != nil {
			return fmt.Errorf("restore positions: %w", err)
		}
	}

	if e.trades != nil {
		stored, err := e.trades.List(ctx)
		if err != nil {
			return fmt.Errorf("load trades: %w", err)
		}
		trades := make([]domain.TradeRecord, len(stored))
		for i, t := range stored {
			trades[i] = *t
		}
		if err := e.state.recorder.Replay(trades); err != nil {
			return fmt.Errorf("replay trades: %w", err)
		}
	}

	stats := e.state.recorder.Stats()
	e.metrics.OpenPositions.Set(float64(e.state.ledger.Len()))
	e.metrics.CumulativeProfit.Set(stats.CumulativeProfit.InexactFloat64())
	e.logger.Info("engine restored",
		zap.Int("open_positions", e.state.ledger.Len()),
		zap.Int("trades", stats.TotalTrades()),
		zap.String("cumulative_profit", stats.CumulativeProfit.String()),
	)

	return nil
}

// Flush retries trade writes that failed earlier and writes buffered
// valuation ticks to the tick store.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	e.flushTradesLocked(ctx)
	unsaved := len(e.state.unsaved)
	pending := e.state.ticks
	e.state.ticks = nil
	e.mu.Unlock()

	var errs []error
	if unsaved > 0 {
		errs = append(errs, fmt.Errorf("%d trades not persisted", unsaved))
	}
	if len(pending) > 0 {
		if err := e.ticks.InsertBulk(ctx, pending); err != nil {
			e.persistFailed("ticks", "insert_bulk", err)
			errs = append(errs, fmt.Errorf("flush %d ticks: %w", len(pending), err))
		}
	}
	return errors.Join(errs...)
}

// flushTradesLocked appends every unsaved trade, keeping the ones that fail
// for the next attempt. A duplicate key means an earlier attempt landed.
func (e *Engine) flushTradesLocked(ctx context.Context) {
	if e.trades == nil || len(e.state.unsaved) == 0 {
		return
	}

	remaining := e.state.unsaved[:0]
	for i := range e.state.unsaved {
		t := e.state.unsaved[i]
		err := e.trades.Append(ctx, &t)
		if err == nil || errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		e.persistFailed("trades", "append", err)
		remaining = append(remaining, t)
	}
	e.state.unsaved = remaining
	e.metrics.UnsavedTrades.Set(float64(len(remaining)))
}

func (e *Engine) savePosition(ctx context.Context, p *domain.Position) {
	if e.positions == nil {
		return
	}
	if err := e.positions.Save(ctx, p); err != nil {
		e.persistFailed("positions", "save", err)
	}
}

func (e *Engine) deletePosition(ctx context.Context, id string) {
	if e.positions == nil {
		return
	}
	if err := e.positions.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.persistFailed("positions", "delete", err)
	}
}

func (e *Engine) insertDiscovery(ctx context.Context, r *domain.DiscoveryRecord) {
	if e.discoveries == nil {
		return
	}
	if err := e.discoveries.Insert(ctx, r); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		e.persistFailed("discoveries", "insert", err)
	}
}

func (e *Engine) persistFailed(store, op string, err error) {
	e.metrics.PersistenceErrors.WithLabelValues(store, op).Inc()
	e.logger.Warn("persistence failed",
		zap.String("store", store),
		zap.String("operation", op),
		zap.Error(err),
	)
}
