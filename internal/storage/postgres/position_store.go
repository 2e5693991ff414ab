package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			entry_valuation = EXCLUDED.entry_valuation,
			valuation = EXCLUDED.valuation,
			entry_size = EXCLUDED.entry_size,
			opened_at = EXCLUDED.opened_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
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

	tag, err := s.pool.Exec(ctx, `DELETE FROM open_positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all positions ordered by opened_at ASC, id ASC.
func (s *PositionStore) List(ctx context.Context) (result []*domain.Position, err error) {
	defer func(start time.Time) { observe("position_list", start, err) }(time.Now())

	query := `
		SELECT id, name, symbol, entry_valuation::text, valuation::text, entry_size::text, opened_at, updated_at
		FROM open_positions
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// Clear removes every position.
func (s *PositionStore) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("position_clear", start, err) }(time.Now())

	if _, err = s.pool.Exec(ctx, `DELETE FROM open_positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	return nil
}

func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
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
