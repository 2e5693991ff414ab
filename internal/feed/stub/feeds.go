// Package stub provides scripted feeds and receipts for deterministic tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/feed"
)

// DiscoveryFeed emits a fixed sequence of candidates, then ErrFeedClosed.
// Implements feed.DiscoveryFeed interface.
type DiscoveryFeed struct {
	mu         sync.Mutex
	candidates []*domain.TokenCandidate
	next       int
}

// NewDiscoveryFeed creates a feed over candidates.
func NewDiscoveryFeed(candidates ...*domain.TokenCandidate) *DiscoveryFeed {
	return &DiscoveryFeed{candidates: candidates}
}

// Next returns a copy of the next candidate.
func (f *DiscoveryFeed) Next(ctx context.Context) (*domain.TokenCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.next >= len(f.candidates) {
		return nil, feed.ErrFeedClosed
	}
	c := *f.candidates[f.next]
	f.next++
	return &c, nil
}

// Remaining returns how many candidates have not been emitted.
func (f *DiscoveryFeed) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.candidates) - f.next
}

// PriceFeed replays a per-position queue of valuations. Once a queue is
// drained the last valuation repeats; an id never scripted yields ErrNoQuote.
// Implements feed.PriceFeed interface.
type PriceFeed struct {
	mu     sync.Mutex
	queues map[string][]decimal.Decimal
	last   map[string]decimal.Decimal
	calls  map[string]int
}

// NewPriceFeed creates an empty price feed.
func NewPriceFeed() *PriceFeed {
	return &PriceFeed{
		queues: make(map[string][]decimal.Decimal),
		last:   make(map[string]decimal.Decimal),
		calls:  make(map[string]int),
	}
}

// Script appends valuations for id.
func (f *PriceFeed) Script(id string, valuations ...decimal.Decimal) *PriceFeed {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queues[id] = append(f.queues[id], valuations...)
	return f
}

// Update pops the next valuation for id.
func (f *PriceFeed) Update(ctx context.Context, id string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[id]++
	if q := f.queues[id]; len(q) > 0 {
		f.last[id] = q[0]
		f.queues[id] = q[1:]
		return q[0], nil
	}
	if v, ok := f.last[id]; ok {
		return v, nil
	}
	return decimal.Zero, fmt.Errorf("%s: %w", id, feed.ErrNoQuote)
}

// Calls returns how many times id was polled.
func (f *PriceFeed) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[id]
}

// Receipts returns "receipt-<n>-<position id>" for the n-th settlement.
// Implements feed.ReceiptProvider interface.
type Receipts struct {
	mu      sync.Mutex
	settled []feed.Settlement
	err     error
}

// NewReceipts creates a deterministic receipt provider.
func NewReceipts() *Receipts {
	return &Receipts{}
}

// FailWith makes every later Settle return err.
func (r *Receipts) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
}

// Settle records s and returns a deterministic receipt.
func (r *Receipts) Settle(_ context.Context, s feed.Settlement) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return "", r.err
	}
	r.settled = append(r.settled, s)
	return fmt.Sprintf("receipt-%d-%s", len(r.settled), s.PositionID), nil
}

// Settled returns every settlement seen, in order.
func (r *Receipts) Settled() []feed.Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]feed.Settlement, len(r.settled))
	copy(result, r.settled)
	return result
}

var (
	_ feed.DiscoveryFeed   = (*DiscoveryFeed)(nil)
	_ feed.PriceFeed       = (*PriceFeed)(nil)
	_ feed.ReceiptProvider = (*Receipts)(nil)
)
