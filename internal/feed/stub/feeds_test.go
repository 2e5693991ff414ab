package stub

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/feed"
)

func TestDiscoveryFeed_EmitsInOrderThenCloses(t *testing.T) {
	ctx := context.Background()
	f := NewDiscoveryFeed(
		&domain.TokenCandidate{Mint: "A"},
		&domain.TokenCandidate{Mint: "B"},
	)

	a, err := f.Next(ctx)
	require.NoError(t, err)
	b, err := f.Next(ctx)
	require.NoError(t, err)
	_, err = f.Next(ctx)

	assert.Equal(t, "A", a.Mint)
	assert.Equal(t, "B", b.Mint)
	assert.ErrorIs(t, err, feed.ErrFeedClosed)
	assert.Equal(t, 0, f.Remaining())
}

func TestPriceFeed_QueueThenRepeatLast(t *testing.T) {
	ctx := context.Background()
	f := NewPriceFeed().Script("X", decimal.NewFromInt(61), decimal.NewFromInt(62))

	v1, err := f.Update(ctx, "X")
	require.NoError(t, err)
	v2, err := f.Update(ctx, "X")
	require.NoError(t, err)
	v3, err := f.Update(ctx, "X")
	require.NoError(t, err)

	assert.True(t, v1.Equal(decimal.NewFromInt(61)))
	assert.True(t, v2.Equal(decimal.NewFromInt(62)))
	assert.True(t, v3.Equal(decimal.NewFromInt(62)))
	assert.Equal(t, 3, f.Calls("X"))

	_, err = f.Update(ctx, "unknown")
	assert.ErrorIs(t, err, feed.ErrNoQuote)
}

func TestReceipts_Deterministic(t *testing.T) {
	r := NewReceipts()

	first, err := r.Settle(context.Background(), feed.Settlement{PositionID: "X"})
	require.NoError(t, err)
	second, err := r.Settle(context.Background(), feed.Settlement{PositionID: "Y"})
	require.NoError(t, err)

	assert.Equal(t, "receipt-1-X", first)
	assert.Equal(t, "receipt-2-Y", second)
	assert.Len(t, r.Settled(), 2)
}
