// Package feed defines the market-data and settlement collaborators the
// engine consumes.
package feed

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

var (
	// ErrNoQuote is returned by a PriceFeed that has no valuation for an id yet.
	ErrNoQuote = errors.New("no quote")

	// ErrFeedClosed is returned by a DiscoveryFeed that will emit nothing more.
	ErrFeedClosed = errors.New("feed closed")
)

// DiscoveryFeed produces newly listed tokens.
type DiscoveryFeed interface {
	// Next blocks until a candidate is available, ctx is done, or the feed
	// is exhausted (ErrFeedClosed).
	Next(ctx context.Context) (*domain.TokenCandidate, error)
}

// PriceFeed produces refreshed valuations for open positions.
type PriceFeed interface {
	// Update returns the current valuation of positionID.
	Update(ctx context.Context, positionID string) (decimal.Decimal, error)
}

// Retainer is implemented by price feeds that keep per-position state.
// Retain releases the state of every position not in open.
type Retainer interface {
	Retain(ctx context.Context, open []string) error
}

// Settlement describes a close that needs a receipt.
type Settlement struct {
	SessionID     string
	PositionID    string
	Name          string
	EntrySize     decimal.Decimal
	ExitValuation decimal.Decimal
	Outcome       domain.Outcome
}

// ReceiptProvider settles a close and returns an opaque receipt.
type ReceiptProvider interface {
	Settle(ctx context.Context, s Settlement) (string, error)
}
