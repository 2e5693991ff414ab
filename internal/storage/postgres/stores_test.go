package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

func testTrade(seq int64, id string) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:        id,
		Seq:            seq,
		SessionID:      "session-1",
		PositionID:     "Mint" + id,
		Name:           "Token " + id,
		Symbol:         "TKN",
		EntryValuation: dec("60"),
		ExitValuation:  dec("70"),
		EntrySize:      dec("1"),
		Proceeds:       dec("1.1666666666666667"),
		Profit:         dec("0.1666666666666667"),
		Outcome:        domain.OutcomeWin,
		Receipt:        "https://solscan.io/tx/abc",
		OpenedAt:       baseTime,
		ClosedAt:       baseTime.Add(90 * time.Second),
	}
}

func TestTradeStore_AppendAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	second := testTrade(2, "t2")
	second.Outcome = domain.OutcomeStopLoss
	second.Manual = true
	second.Profit = dec("-0.05")

	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Append(ctx, testTrade(1, "t1")))

	trades, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	first := trades[0]
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "t1", first.TradeID)
	assert.Equal(t, "session-1", first.SessionID)
	assert.Equal(t, "Mintt1", first.PositionID)
	assert.True(t, first.EntryValuation.Equal(dec("60")))
	assert.True(t, first.Proceeds.Equal(dec("1.1666666666666667")))
	assert.Equal(t, domain.OutcomeWin, first.Outcome)
	assert.Equal(t, "https://solscan.io/tx/abc", first.Receipt)
	assert.True(t, first.OpenedAt.Equal(baseTime))
	assert.True(t, first.ClosedAt.Equal(baseTime.Add(90*time.Second)))

	assert.Equal(t, int64(2), trades[1].Seq)
	assert.True(t, trades[1].Manual)
	assert.True(t, trades[1].Profit.Equal(dec("-0.05")))
	assert.Equal(t, domain.OutcomeStopLoss, trades[1].Outcome)
}

func TestTradeStore_Duplicates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, testTrade(1, "t1")))

	err := store.Append(ctx, testTrade(2, "t1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey, "same trade_id")

	err = store.Append(ctx, testTrade(1, "t9"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey, "same seq")
}

func TestTradeStore_InvalidAndClear(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, testTrade(0, "t0")), storage.ErrInvalidInput)

	require.NoError(t, store.Append(ctx, testTrade(1, "t1")))
	require.NoError(t, store.Clear(ctx))

	trades, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPositionStore_SaveUpsertsAndLists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	b := &domain.Position{
		ID: "MintB", Name: "B", EntryValuation: dec("55"), Valuation: dec("55"),
		EntrySize: dec("1"), OpenedAt: baseTime, UpdatedAt: baseTime,
	}
	a := &domain.Position{
		ID: "MintA", Name: "A", EntryValuation: dec("60"), Valuation: dec("60"),
		EntrySize: dec("1"), OpenedAt: baseTime, UpdatedAt: baseTime,
	}
	c := &domain.Position{
		ID: "MintC", Name: "C", EntryValuation: dec("70"), Valuation: dec("70"),
		EntrySize: dec("0.5"), OpenedAt: baseTime.Add(-time.Minute), UpdatedAt: baseTime,
	}

	for _, p := range []*domain.Position{b, a, c} {
		require.NoError(t, store.Save(ctx, p))
	}

	a.Valuation = dec("64.25")
	a.UpdatedAt = baseTime.Add(5 * time.Second)
	require.NoError(t, store.Save(ctx, a))

	positions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	// opened_at ASC, then id ASC
	assert.Equal(t, "MintC", positions[0].ID)
	assert.Equal(t, "MintA", positions[1].ID)
	assert.Equal(t, "MintB", positions[2].ID)

	assert.True(t, positions[1].Valuation.Equal(dec("64.25")))
	assert.True(t, positions[1].EntryValuation.Equal(dec("60")))
	assert.True(t, positions[1].UpdatedAt.Equal(baseTime.Add(5*time.Second)))
	assert.True(t, positions[0].EntrySize.Equal(dec("0.5")))
}

func TestPositionStore_DeleteAndClear(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	ctx := context.Background()

	p := &domain.Position{
		ID: "MintA", Name: "A", EntryValuation: dec("60"), Valuation: dec("60"),
		EntrySize: dec("1"), OpenedAt: baseTime, UpdatedAt: baseTime,
	}
	require.NoError(t, store.Save(ctx, p))

	require.NoError(t, store.Delete(ctx, "MintA"))
	assert.ErrorIs(t, store.Delete(ctx, "MintA"), storage.ErrNotFound)

	require.NoError(t, store.Save(ctx, p))
	require.NoError(t, store.Clear(ctx))

	positions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func testDiscovery(id, mint string, at time.Time, accepted bool, reason string) *domain.DiscoveryRecord {
	return &domain.DiscoveryRecord{
		ID: id,
		Candidate: domain.TokenCandidate{
			Mint:         mint,
			Name:         "Token",
			Symbol:       "TKN",
			Valuation:    dec("42.5"),
			Socials:      domain.Socials{Twitter: true, Website: true},
			Source:       domain.SourcePumpPortal,
			DiscoveredAt: at,
		},
		Accepted: accepted,
		Reason:   reason,
	}
}

func TestDiscoveryStore_InsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDiscoveryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testDiscovery("d2", "MintA", baseTime.Add(time.Second), true, "")))
	require.NoError(t, store.Insert(ctx, testDiscovery("d1", "MintA", baseTime, false, "valuation_too_low")))
	require.NoError(t, store.Insert(ctx, testDiscovery("d3", "MintB", baseTime, true, "")))

	assert.ErrorIs(t, store.Insert(ctx, testDiscovery("d1", "MintA", baseTime, true, "")), storage.ErrDuplicateKey)

	records, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "d1", records[0].ID)
	assert.False(t, records[0].Accepted)
	assert.Equal(t, "valuation_too_low", records[0].Reason)
	assert.Equal(t, domain.Socials{Twitter: true, Website: true}, records[0].Candidate.Socials)
	assert.Equal(t, domain.SourcePumpPortal, records[0].Candidate.Source)
	assert.True(t, records[0].Candidate.Valuation.Equal(dec("42.5")))
	assert.True(t, records[0].Candidate.DiscoveredAt.Equal(baseTime))
	assert.Equal(t, "d2", records[1].ID)

	none, err := store.GetByMint(ctx, "Unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDiscoveryStore_ListRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDiscoveryStore(pool)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		at := baseTime.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Insert(ctx, testDiscovery(id, "Mint"+id, at, i%2 == 0, "")))
	}

	recent, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].ID)
	assert.Equal(t, "c", recent[1].ID)
	assert.Equal(t, "b", recent[2].ID)

	_, err = store.ListRecent(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
