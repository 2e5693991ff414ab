package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TradeStore implements storage.TradeStore using SQLite.
type TradeStore struct {
	db *DB
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(db *DB) *TradeStore {
	return &TradeStore{db: db}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Append adds a closed trade. Returns ErrDuplicateKey if trade_id or seq exists.
func (s *TradeStore) Append(ctx context.Context, t *domain.TradeRecord) (err error) {
	if t == nil || t.TradeID == "" || t.Seq < 1 {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("trade_append", start, err) }(time.Now())

	query := `
		INSERT INTO trade_records (
			seq, trade_id, session_id, position_id, name, symbol,
			entry_valuation, exit_valuation, entry_size, proceeds, profit,
			outcome, manual, receipt, opened_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		t.Seq, t.TradeID, t.SessionID, t.PositionID, t.Name, t.Symbol,
		t.EntryValuation.String(), t.ExitValuation.String(), t.EntrySize.String(),
		t.Proceeds.String(), t.Profit.String(),
		string(t.Outcome), t.Manual, t.Receipt,
		t.OpenedAt.UnixMilli(), t.ClosedAt.UnixMilli(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// List retrieves all trades ordered by seq ASC.
func (s *TradeStore) List(ctx context.Context) (result []*domain.TradeRecord, err error) {
	defer func(start time.Time) { observe("trade_list", start, err) }(time.Now())

	query := `
		SELECT
			seq, trade_id, session_id, position_id, name, symbol,
			entry_valuation, exit_valuation, entry_size, proceeds, profit,
			outcome, manual, receipt, opened_at, closed_at
		FROM trade_records
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trade records: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// Clear removes every trade.
func (s *TradeStore) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("trade_clear", start, err) }(time.Now())

	if _, err = s.db.ExecContext(ctx, `DELETE FROM trade_records`); err != nil {
		return fmt.Errorf("clear trade records: %w", err)
	}
	return nil
}

func scanTradeRecords(rows *sql.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		var (
			t                                         domain.TradeRecord
			entryVal, exitVal, size, proceeds, profit string
			outcome                                   string
			openedAt, closedAt                        int64
		)

		err := rows.Scan(
			&t.Seq, &t.TradeID, &t.SessionID, &t.PositionID, &t.Name, &t.Symbol,
			&entryVal, &exitVal, &size, &proceeds, &profit,
			&outcome, &t.Manual, &t.Receipt, &openedAt, &closedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}

		if t.EntryValuation, err = parseDecimal("entry_valuation", entryVal); err != nil {
			return nil, err
		}
		if t.ExitValuation, err = parseDecimal("exit_valuation", exitVal); err != nil {
			return nil, err
		}
		if t.EntrySize, err = parseDecimal("entry_size", size); err != nil {
			return nil, err
		}
		if t.Proceeds, err = parseDecimal("proceeds", proceeds); err != nil {
			return nil, err
		}
		if t.Profit, err = parseDecimal("profit", profit); err != nil {
			return nil, err
		}
		t.Outcome = domain.Outcome(outcome)
		t.OpenedAt = fromMillis(openedAt)
		t.ClosedAt = fromMillis(closedAt)

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}
