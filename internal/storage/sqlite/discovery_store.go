package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// DiscoveryStore implements storage.DiscoveryStore using SQLite.
type DiscoveryStore struct {
	db *DB
}

// NewDiscoveryStore creates a new DiscoveryStore.
func NewDiscoveryStore(db *DB) *DiscoveryStore {
	return &DiscoveryStore{db: db}
}

// Compile-time interface check.
var _ storage.DiscoveryStore = (*DiscoveryStore)(nil)

const discoveryColumns = `
	id, mint, name, symbol, valuation, twitter, telegram, website,
	source, discovered_at, accepted, reason
`

// Insert adds a discovery record. Returns ErrDuplicateKey if id exists.
func (s *DiscoveryStore) Insert(ctx context.Context, r *domain.DiscoveryRecord) (err error) {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("discovery_insert", start, err) }(time.Now())

	query := `INSERT INTO discovery_records (` + discoveryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	c := r.Candidate
	_, err = s.db.ExecContext(ctx, query,
		r.ID, c.Mint, c.Name, c.Symbol, c.Valuation.String(),
		c.Socials.Twitter, c.Socials.Telegram, c.Socials.Website,
		string(c.Source), c.DiscoveredAt.UnixMilli(), r.Accepted, r.Reason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert discovery record: %w", err)
	}
	return nil
}

// GetByMint retrieves all records for a mint, ordered by discovered_at ASC.
func (s *DiscoveryStore) GetByMint(ctx context.Context, mint string) (result []*domain.DiscoveryRecord, err error) {
	defer func(start time.Time) { observe("discovery_get_by_mint", start, err) }(time.Now())

	query := `SELECT ` + discoveryColumns + `
		FROM discovery_records
		WHERE mint = ?
		ORDER BY discovered_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get discovery records by mint: %w", err)
	}
	defer rows.Close()

	return scanDiscoveryRecords(rows)
}

// ListRecent retrieves up to limit records, most recent first.
func (s *DiscoveryStore) ListRecent(ctx context.Context, limit int) (result []*domain.DiscoveryRecord, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("discovery_list_recent", start, err) }(time.Now())

	query := `SELECT ` + discoveryColumns + `
		FROM discovery_records
		ORDER BY discovered_at DESC, id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent discovery records: %w", err)
	}
	defer rows.Close()

	return scanDiscoveryRecords(rows)
}

func scanDiscoveryRecords(rows *sql.Rows) ([]*domain.DiscoveryRecord, error) {
	var records []*domain.DiscoveryRecord

	for rows.Next() {
		var (
			r            domain.DiscoveryRecord
			valuation    string
			source       string
			discoveredAt int64
		)
		c := &r.Candidate

		err := rows.Scan(
			&r.ID, &c.Mint, &c.Name, &c.Symbol, &valuation,
			&c.Socials.Twitter, &c.Socials.Telegram, &c.Socials.Website,
			&source, &discoveredAt, &r.Accepted, &r.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan discovery record row: %w", err)
		}

		if c.Valuation, err = parseDecimal("valuation", valuation); err != nil {
			return nil, err
		}
		c.Source = domain.Source(source)
		c.DiscoveredAt = fromMillis(discoveredAt)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discovery record rows: %w", err)
	}

	return records, nil
}
