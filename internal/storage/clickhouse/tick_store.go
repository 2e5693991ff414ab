package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse.
// MergeTree keeps duplicate ticks; they are an analytics stream.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk adds ticks in one batch. Fails the entire batch on invalid input.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*domain.ValuationTick) (err error) {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.PositionID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("tick_insert_bulk", start, err) }(time.Now())

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO valuation_ticks (position_id, valuation, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		if err = batch.Append(t.PositionID, t.Valuation, t.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPosition retrieves ticks within [start, end] unix ms (inclusive),
// ordered by timestamp ASC.
func (s *TickStore) GetByPosition(ctx context.Context, positionID string, start, end int64) (result []*domain.ValuationTick, err error) {
	defer func(begin time.Time) { observe("tick_get_by_position", begin, err) }(time.Now())

	query := `
		SELECT position_id, valuation, timestamp
		FROM valuation_ticks
		WHERE position_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by position: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

func scanTicks(rows chRows) ([]*domain.ValuationTick, error) {
	var ticks []*domain.ValuationTick

	for rows.Next() {
		var t domain.ValuationTick
		var timestampMs int64

		if err := rows.Scan(&t.PositionID, &t.Valuation, &timestampMs); err != nil {
			return nil, fmt.Errorf("scan valuation tick row: %w", err)
		}

		t.Timestamp = time.UnixMilli(timestampMs).UTC()
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate valuation tick rows: %w", err)
	}

	return ticks, nil
}
