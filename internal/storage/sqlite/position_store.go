package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PositionStore implements storage.PositionStore using SQLite.
type PositionStore struct {
	db *DB
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(db *DB) *PositionStore {
	return &PositionStore{db: db}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Save upserts a position by id.
func (s *PositionStore) Save(ctx context.Context, p *domain.Position) (err error) {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("position_save", start, err) }(time.Now())

	query := `
		INSERT INTO open_positions (
			id, name, symbol, entry_valuation, valuation, entry_size, opened_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			symbol = excluded.symbol,
			entry_valuation = excluded.entry_valuation,
			valuation = excluded.valuation,
			entry_size = excluded.entry_size,
			opened_at = excluded.opened_at,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Symbol,
		p.EntryValuation.String(), p.Valuation.String(), p.EntrySize.String(),
		p.OpenedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Delete removes a position. Returns ErrNotFound if it does not exist.
func (s *PositionStore) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe("position_delete", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM open_positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete position rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all positions ordered by opened_at ASC, id ASC.
func (s *PositionStore) List(ctx context.Context) (result []*domain.Position, err error) {
	defer func(start time.Time) { observe("position_list", start, err) }(time.Now())

	query := `
		SELECT id, name, symbol, entry_valuation, valuation, entry_size, opened_at, updated_at
		FROM open_positions
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// Clear removes every position.
func (s *PositionStore) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("position_clear", start, err) }(time.Now())

	if _, err = s.db.ExecContext(ctx, `DELETE FROM open_positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	return nil
}

func scanPositions(rows *sql.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		var (
			p                   domain.Position
			entryVal, val, size string
			openedAt, updatedAt int64
		)

		if err := rows.Scan(&p.ID, &p.Name, &p.Symbol, &entryVal, &val, &size, &openedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}

		var err error
		if p.EntryValuation, err = parseDecimal("entry_valuation", entryVal); err != nil {
			return nil, err
		}
		if p.Valuation, err = parseDecimal("valuation", val); err != nil {
			return nil, err
		}
		if p.EntrySize, err = parseDecimal("entry_size", size); err != nil {
			return nil, err
		}
		p.OpenedAt = fromMillis(openedAt)
		p.UpdatedAt = fromMillis(updatedAt)

		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
