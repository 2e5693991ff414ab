// Package recorder owns the append-only trade history and its aggregates.
package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/idhash"
)

var (
	// ErrInvariantViolation is returned when a closed position carries an
	// entry valuation <= 0. It indicates a defect upstream of the recorder;
	// nothing is appended.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrInvalidOutcome is returned for an outcome other than WIN or STOP_LOSS.
	ErrInvalidOutcome = errors.New("invalid outcome")
)

// Meta carries the non-numeric attributes of a trade.
type Meta struct {
	SessionID string
	Receipt   string // opaque settlement reference
	Manual    bool
}

// Recorder appends trade records and keeps wins, losses and cumulative profit
// in lockstep with the history.
type Recorder struct {
	mu      sync.RWMutex
	history []domain.TradeRecord
	stats   domain.Stats
	lastSeq int64
	clock   func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source used for close timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// New creates an empty recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Proceeds computes size / entry * exit. Multiplication happens first to keep
// precision.
func Proceeds(size, entry, exit decimal.Decimal) (decimal.Decimal, error) {
	if !entry.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: entry valuation %s", ErrInvariantViolation, entry)
	}
	return size.Mul(exit).Div(entry), nil
}

// Record turns a closed position into a trade record, appends it and updates
// the aggregates as one step. It must be called once per closed position.
func (r *Recorder) Record(p domain.Position, exit decimal.Decimal, outcome domain.Outcome, meta Meta) (domain.TradeRecord, error) {
	if !outcome.IsValid() {
		return domain.TradeRecord{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	proceeds, err := Proceeds(p.EntrySize, p.EntryValuation, exit)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("record %s: %w", p.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.lastSeq + 1
	t := domain.TradeRecord{
		TradeID:        idhash.ComputeTradeID(meta.SessionID, p.ID, p.OpenedAt.UnixMilli(), seq),
		Seq:            seq,
		SessionID:      meta.SessionID,
		PositionID:     p.ID,
		Name:           p.Name,
		Symbol:         p.Symbol,
		EntryValuation: p.EntryValuation,
		ExitValuation:  exit,
		EntrySize:      p.EntrySize,
		Proceeds:       proceeds,
		Profit:         proceeds.Sub(p.EntrySize),
		Outcome:        outcome,
		Manual:         meta.Manual,
		Receipt:        meta.Receipt,
		OpenedAt:       p.OpenedAt,
		ClosedAt:       r.clock(),
	}

	r.history = append(r.history, t)
	r.stats = r.stats.Apply(&t)
	r.lastSeq = seq

	return t, nil
}

// SetReceipt attaches a settlement receipt to the trade with tradeID. It
// reports false when the trade is no longer in history.
func (r *Recorder) SetReceipt(tradeID, receipt string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].TradeID == tradeID {
			r.history[i].Receipt = receipt
			return true
		}
	}
	return false
}

// History returns all trades in append order.
func (r *Recorder) History() []domain.TradeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.TradeRecord, len(r.history))
	copy(result, r.history)
	return result
}

// Page returns the 1-indexed page of history in append order.
// A page past the end, or a non-positive page or size, yields an empty slice.
func (r *Recorder) Page(page, size int) []domain.TradeRecord {
	if page < 1 || size < 1 {
		return []domain.TradeRecord{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	start := (page - 1) * size
	if start >= len(r.history) {
		return []domain.TradeRecord{}
	}
	end := start + size
	if end > len(r.history) {
		end = len(r.history)
	}

	result := make([]domain.TradeRecord, end-start)
	copy(result, r.history[start:end])
	return result
}

// Pages returns the number of pages of the given size.
func (r *Recorder) Pages(size int) int {
	if size < 1 {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return (len(r.history) + size - 1) / size
}

// Len returns the number of recorded trades.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.history)
}

// Stats returns the current aggregates.
func (r *Recorder) Stats() domain.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stats
}

// Replay replaces the history with trades and recomputes the aggregates from
// them. Seq must be positive and strictly increasing. Gaps are allowed, since
// a trade whose write never reached the store is missing from it; numbering
// continues after the highest Seq.
func (r *Recorder) Replay(trades []domain.TradeRecord) error {
	var last int64
	for i := range trades {
		if trades[i].Seq <= last {
			return fmt.Errorf("replay: trade %s has seq %d after %d", trades[i].TradeID, trades[i].Seq, last)
		}
		last = trades[i].Seq
		if !trades[i].Outcome.IsValid() {
			return fmt.Errorf("replay: trade %s: %w: %q", trades[i].TradeID, ErrInvalidOutcome, trades[i].Outcome)
		}
	}

	history := make([]domain.TradeRecord, len(trades))
	copy(history, trades)
	stats := Fold(history)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = history
	r.stats = stats
	r.lastSeq = last
	return nil
}

// Reset clears history and aggregates.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = nil
	r.stats = domain.Stats{}
	r.lastSeq = 0
}

// Fold recomputes aggregates from scratch over trades.
func Fold(trades []domain.TradeRecord) domain.Stats {
	var s domain.Stats
	for i := range trades {
		s = s.Apply(&trades[i])
	}
	return s
}
