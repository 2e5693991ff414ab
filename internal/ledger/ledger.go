// Package ledger owns the set of open positions.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// Ledger is the exclusive owner of open positions, keyed by ID.
// All methods are safe for concurrent use; readers always receive copies.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
	order     []string // open order
	clock     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for entry and update timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		positions: make(map[string]*domain.Position),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open buys c under cfg and inserts the resulting position.
// The caller is expected to have run the candidate through the eligibility filter.
func (l *Ledger) Open(c *domain.TokenCandidate, cfg domain.TradingConfig) (domain.Position, error) {
	if !c.Valuation.IsPositive() {
		return domain.Position{}, fmt.Errorf("%w: entry valuation %s for %s", ErrInvalidValuation, c.Valuation, c.Mint)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.positions) >= cfg.MaxConcurrentPositions {
		return domain.Position{}, ErrCapacityExceeded
	}
	if _, exists := l.positions[c.Mint]; exists {
		return domain.Position{}, ErrAlreadyOpen
	}

	now := l.clock()
	p := &domain.Position{
		ID:             c.Mint,
		Name:           c.Name,
		Symbol:         c.Symbol,
		EntryValuation: c.Valuation,
		Valuation:      c.Valuation,
		EntrySize:      cfg.EntrySize,
		OpenedAt:       now,
		UpdatedAt:      now,
	}
	l.positions[p.ID] = p
	l.order = append(l.order, p.ID)

	return *p, nil
}

// UpdateValuation sets the current valuation of position id and returns the
// updated copy. Returns ErrNotFound if id is not open.
func (l *Ledger) UpdateValuation(id string, valuation decimal.Decimal) (domain.Position, error) {
	if valuation.IsNegative() {
		return domain.Position{}, fmt.Errorf("%w: %s for %s", ErrInvalidValuation, valuation, id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[id]
	if !ok {
		return domain.Position{}, ErrNotFound
	}
	p.Valuation = valuation
	p.UpdatedAt = l.clock()

	return *p, nil
}

// Close removes and returns position id. Only the first Close for an id
// succeeds; later calls return ErrNotFound.
func (l *Ledger) Close(id string) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[id]
	if !ok {
		return domain.Position{}, ErrNotFound
	}
	delete(l.positions, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	return *p, nil
}

// Get returns a copy of position id.
func (l *Ledger) Get(id string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Contains reports whether id is open.
func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.positions[id]
	return ok
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.positions)
}

// List returns a snapshot of open positions in open order.
func (l *Ledger) List() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.Position, 0, len(l.order))
	for _, id := range l.order {
		result = append(result, *l.positions[id])
	}
	return result
}

// Restore replaces the ledger contents with positions, typically loaded from
// persistent storage. Fails without modifying the ledger on duplicate IDs or
// a non-positive entry valuation.
func (l *Ledger) Restore(positions []domain.Position) error {
	next := make(map[string]*domain.Position, len(positions))
	order := make([]string, 0, len(positions))
	for i := range positions {
		p := positions[i]
		if !p.EntryValuation.IsPositive() {
			return fmt.Errorf("%w: entry valuation %s for %s", ErrInvalidValuation, p.EntryValuation, p.ID)
		}
		if _, dup := next[p.ID]; dup {
			return fmt.Errorf("%w: %s", ErrAlreadyOpen, p.ID)
		}
		next[p.ID] = &p
		order = append(order, p.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = next
	l.order = order
	return nil
}

// Reset removes every position.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]*domain.Position)
	l.order = nil
}
