package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
	"solana-sniper/internal/storage/migrations"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db.DB))
	return db
}

func testTrade(seq int64, id string) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:        id,
		Seq:            seq,
		SessionID:      "session-1",
		PositionID:     "Mint" + id,
		Name:           "Token " + id,
		EntryValuation: dec("100"),
		ExitValuation:  dec("95"),
		EntrySize:      dec("1"),
		Proceeds:       dec("0.95"),
		Profit:         dec("-0.05"),
		Outcome:        domain.OutcomeStopLoss,
		OpenedAt:       baseTime,
		ClosedAt:       baseTime.Add(time.Minute),
	}
}

func TestTradeStore_AppendListClear(t *testing.T) {
	store := NewTradeStore(setupTestDB(t))
	ctx := context.Background()

	win := testTrade(2, "t2")
	win.Outcome = domain.OutcomeWin
	win.Manual = true
	win.Receipt = "https://solscan.io/tx/xyz"

	require.NoError(t, store.Append(ctx, win))
	require.NoError(t, store.Append(ctx, testTrade(1, "t1")))

	trades, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "t1", trades[0].TradeID)
	assert.True(t, trades[0].Proceeds.Equal(dec("0.95")))
	assert.True(t, trades[0].Profit.Equal(dec("-0.05")))
	assert.False(t, trades[0].Manual)
	assert.True(t, trades[0].ClosedAt.Equal(baseTime.Add(time.Minute)))

	assert.Equal(t, "t2", trades[1].TradeID)
	assert.True(t, trades[1].Manual)
	assert.Equal(t, domain.OutcomeWin, trades[1].Outcome)
	assert.Equal(t, "https://solscan.io/tx/xyz", trades[1].Receipt)

	assert.ErrorIs(t, store.Append(ctx, testTrade(3, "t1")), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Append(ctx, testTrade(1, "t3")), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Append(ctx, nil), storage.ErrInvalidInput)

	require.NoError(t, store.Clear(ctx))
	trades, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPositionStore(t *testing.T) {
	store := NewPositionStore(setupTestDB(t))
	ctx := context.Background()

	a := &domain.Position{
		ID: "MintA", Name: "A", EntryValuation: dec("60"), Valuation: dec("60"),
		EntrySize: dec("1"), OpenedAt: baseTime.Add(time.Second), UpdatedAt: baseTime,
	}
	b := &domain.Position{
		ID: "MintB", Name: "B", EntryValuation: dec("80"), Valuation: dec("80"),
		EntrySize: dec("1"), OpenedAt: baseTime, UpdatedAt: baseTime,
	}
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	a.Valuation = dec("66.6")
	require.NoError(t, store.Save(ctx, a))

	positions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "MintB", positions[0].ID)
	assert.Equal(t, "MintA", positions[1].ID)
	assert.True(t, positions[1].Valuation.Equal(dec("66.6")))
	assert.True(t, positions[1].OpenedAt.Equal(baseTime.Add(time.Second)))

	require.NoError(t, store.Delete(ctx, "MintB"))
	assert.ErrorIs(t, store.Delete(ctx, "MintB"), storage.ErrNotFound)

	require.NoError(t, store.Clear(ctx))
	positions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestDiscoveryStore(t *testing.T) {
	store := NewDiscoveryStore(setupTestDB(t))
	ctx := context.Background()

	rec := func(id, mint string, offset time.Duration, accepted bool) *domain.DiscoveryRecord {
		return &domain.DiscoveryRecord{
			ID: id,
			Candidate: domain.TokenCandidate{
				Mint:         mint,
				Name:         "Token",
				Valuation:    dec("48.25"),
				Socials:      domain.Socials{Telegram: true},
				Source:       domain.SourceSimulated,
				DiscoveredAt: baseTime.Add(offset),
			},
			Accepted: accepted,
			Reason:   map[bool]string{true: "", false: "missing_socials"}[accepted],
		}
	}

	require.NoError(t, store.Insert(ctx, rec("d1", "MintA", 0, false)))
	require.NoError(t, store.Insert(ctx, rec("d2", "MintB", time.Second, true)))
	require.NoError(t, store.Insert(ctx, rec("d3", "MintA", 2*time.Second, true)))
	assert.ErrorIs(t, store.Insert(ctx, rec("d1", "MintA", 0, false)), storage.ErrDuplicateKey)

	byMint, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, byMint, 2)
	assert.Equal(t, "d1", byMint[0].ID)
	assert.Equal(t, "missing_socials", byMint[0].Reason)
	assert.Equal(t, domain.Socials{Telegram: true}, byMint[0].Candidate.Socials)
	assert.True(t, byMint[0].Candidate.Valuation.Equal(dec("48.25")))
	assert.Equal(t, domain.SourceSimulated, byMint[0].Candidate.Source)
	assert.True(t, byMint[1].Accepted)

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "d3", recent[0].ID)
	assert.Equal(t, "d2", recent[1].ID)

	_, err = store.ListRecent(ctx, -1)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/sniper.db"

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db.DB))
	require.NoError(t, NewTradeStore(db).Append(ctx, testTrade(1, "t1")))
	require.NoError(t, db.Close())

	// Reopen and read back.
	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	trades, err := NewTradeStore(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t1", trades[0].TradeID)
}
