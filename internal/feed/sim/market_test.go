package sim

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/feed"
	"solana-sniper/internal/solana"
)

func testConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.Clock = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return cfg
}

func TestMarket_ListingsWithinRange(t *testing.T) {
	m := NewMarket(testConfig(42))
	ctx := context.Background()
	low, high := decimal.NewFromInt(40), decimal.NewFromInt(1040)

	for i := 0; i < 500; i++ {
		c, err := m.Next(ctx)
		require.NoError(t, err)

		assert.True(t, c.Valuation.GreaterThanOrEqual(low), "valuation %s", c.Valuation)
		assert.True(t, c.Valuation.LessThanOrEqual(high), "valuation %s", c.Valuation)
		assert.LessOrEqual(t, c.Valuation.Exponent(), int32(0))
		assert.GreaterOrEqual(t, c.Valuation.Exponent(), int32(-2), "two decimals at most")
		assert.Equal(t, domain.SourceSimulated, c.Source)
		assert.Equal(t, "NEW", c.Symbol)

		pk, err := solana.ParseAddress(c.Mint)
		require.NoError(t, err, "mint %s", c.Mint)
		assert.True(t, solana.IsOnCurve(pk), "mint %s", c.Mint)
	}
}

func TestMarket_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, b := NewMarket(testConfig(7)), NewMarket(testConfig(7))

	for i := 0; i < 20; i++ {
		ca, err := a.Next(ctx)
		require.NoError(t, err)
		cb, err := b.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, ca, cb)

		va, err := a.Update(ctx, ca.Mint)
		require.NoError(t, err)
		vb, err := b.Update(ctx, cb.Mint)
		require.NoError(t, err)
		assert.True(t, va.Equal(vb))
	}
}

func TestMarket_RandomWalkBoundedStep(t *testing.T) {
	m := NewMarket(testConfig(3))
	ctx := context.Background()

	c, err := m.Next(ctx)
	require.NoError(t, err)

	prev := c.Valuation
	step := decimal.NewFromInt(2)
	for i := 0; i < 200; i++ {
		v, err := m.Update(ctx, c.Mint)
		require.NoError(t, err)
		assert.True(t, v.Sub(prev).Abs().LessThanOrEqual(step), "step %s -> %s", prev, v)
		assert.False(t, v.IsNegative())
		prev = v
	}

	quote, ok := m.Quote(c.Mint)
	require.True(t, ok)
	assert.True(t, quote.Equal(prev))
}

func TestMarket_SocialFrequencies(t *testing.T) {
	m := NewMarket(testConfig(11))
	ctx := context.Background()

	var twitter, telegram, website int
	const n = 4000
	for i := 0; i < n; i++ {
		c, err := m.Next(ctx)
		require.NoError(t, err)
		if c.Socials.Twitter {
			twitter++
		}
		if c.Socials.Telegram {
			telegram++
		}
		if c.Socials.Website {
			website++
		}
	}

	assert.InDelta(t, 0.7, float64(twitter)/n, 0.05)
	assert.InDelta(t, 0.6, float64(telegram)/n, 0.05)
	assert.InDelta(t, 0.8, float64(website)/n, 0.05)
}

func TestMarket_UnknownID(t *testing.T) {
	_, err := NewMarket(testConfig(1)).Update(context.Background(), "unknown")
	assert.ErrorIs(t, err, feed.ErrNoQuote)
}

func TestMarket_RetainBoundsBook(t *testing.T) {
	cfg := testConfig(5)
	cfg.Window = 10
	m := NewMarket(cfg)
	ctx := context.Background()

	first, err := m.Next(ctx)
	require.NoError(t, err)

	var last *domain.TokenCandidate
	for round := 0; round < 5; round++ {
		for i := 0; i < 100; i++ {
			last, err = m.Next(ctx)
			require.NoError(t, err)
		}
		require.NoError(t, m.Retain(ctx, []string{first.Mint}))
		assert.LessOrEqual(t, len(m.book), cfg.Window+1)
	}

	_, err = m.Update(ctx, first.Mint)
	assert.NoError(t, err, "open position keeps its quote")
	_, err = m.Update(ctx, last.Mint)
	assert.NoError(t, err, "latest listing keeps its quote")

	require.NoError(t, m.Retain(ctx, nil))
	_, ok := m.Quote(first.Mint)
	assert.False(t, ok)
}
