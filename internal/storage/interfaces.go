package storage

import (
	"context"

	"solana-sniper/internal/domain"
)

// TradeStore provides access to trade_records storage. Append-only.
type TradeStore interface {
	// Append adds a closed trade. Returns ErrDuplicateKey if trade_id exists.
	Append(ctx context.Context, t *domain.TradeRecord) error

	// List retrieves all trades ordered by seq ASC.
	List(ctx context.Context) ([]*domain.TradeRecord, error)

	// Clear removes every trade. Only an operator reset calls it.
	Clear(ctx context.Context) error
}

// PositionStore holds a snapshot of the open-position set.
type PositionStore interface {
	// Save inserts the position or replaces the stored copy with the same id.
	Save(ctx context.Context, p *domain.Position) error

	// Delete removes a position. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// List retrieves all positions ordered by opened_at ASC, id ASC.
	List(ctx context.Context) ([]*domain.Position, error)

	// Clear removes every position.
	Clear(ctx context.Context) error
}

// DiscoveryStore provides access to the discovery audit log. Append-only.
type DiscoveryStore interface {
	// Insert adds a discovery record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.DiscoveryRecord) error

	// GetByMint retrieves all records for a mint, ordered by discovered_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.DiscoveryRecord, error)

	// ListRecent retrieves up to limit records, most recent first.
	ListRecent(ctx context.Context, limit int) ([]*domain.DiscoveryRecord, error)
}

// TickStore provides access to valuation tick storage.
type TickStore interface {
	// InsertBulk adds ticks in one batch.
	InsertBulk(ctx context.Context, ticks []*domain.ValuationTick) error

	// GetByPosition retrieves ticks for a position within [start, end] unix ms
	// (inclusive), ordered by timestamp ASC.
	GetByPosition(ctx context.Context, positionID string, start, end int64) ([]*domain.ValuationTick, error)
}
