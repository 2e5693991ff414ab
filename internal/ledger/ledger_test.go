package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger() *Ledger {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func testCandidate(mint string, valuation float64) *domain.TokenCandidate {
	return &domain.TokenCandidate{
		Mint:      mint,
		Name:      "Token " + mint,
		Symbol:    "TKN",
		Valuation: decimal.NewFromFloat(valuation),
	}
}

func testConfig(maxPositions int) domain.TradingConfig {
	cfg := domain.DefaultTradingConfig()
	cfg.MaxConcurrentPositions = maxPositions
	return cfg
}

func TestLedger_Open(t *testing.T) {
	l := newTestLedger()

	p, err := l.Open(testCandidate("X", 60), testConfig(1))
	require.NoError(t, err)

	assert.Equal(t, "X", p.ID)
	assert.Equal(t, "Token X", p.Name)
	assert.True(t, p.EntryValuation.Equal(decimal.NewFromInt(60)))
	assert.True(t, p.Valuation.Equal(decimal.NewFromInt(60)))
	assert.True(t, p.EntrySize.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, fixedNow, p.OpenedAt)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Contains("X"))
}

func TestLedger_OpenCapacityExceeded(t *testing.T) {
	l := newTestLedger()
	cfg := testConfig(1)

	_, err := l.Open(testCandidate("A", 60), cfg)
	require.NoError(t, err)

	_, err = l.Open(testCandidate("B", 70), cfg)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, l.Len())
	assert.False(t, l.Contains("B"))
}

func TestLedger_OpenZeroCapacity(t *testing.T) {
	l := newTestLedger()

	_, err := l.Open(testCandidate("A", 60), testConfig(0))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestLedger_OpenDuplicate(t *testing.T) {
	l := newTestLedger()
	cfg := testConfig(5)

	_, err := l.Open(testCandidate("A", 60), cfg)
	require.NoError(t, err)

	_, err = l.Open(testCandidate("A", 80), cfg)
	assert.ErrorIs(t, err, ErrAlreadyOpen)
	assert.Equal(t, 1, l.Len())
}

func TestLedger_OpenRejectsNonPositiveValuation(t *testing.T) {
	l := newTestLedger()

	for _, v := range []float64{0, -5} {
		_, err := l.Open(testCandidate("A", v), testConfig(5))
		assert.ErrorIs(t, err, ErrInvalidValuation, "valuation %v", v)
	}
	assert.Equal(t, 0, l.Len())
}

func TestLedger_UpdateValuation(t *testing.T) {
	l := newTestLedger()
	_, err := l.Open(testCandidate("X", 60), testConfig(1))
	require.NoError(t, err)

	p, err := l.UpdateValuation("X", decimal.NewFromInt(70))
	require.NoError(t, err)
	assert.True(t, p.Valuation.Equal(decimal.NewFromInt(70)))
	assert.True(t, p.EntryValuation.Equal(decimal.NewFromInt(60)), "entry valuation must not change")

	stored, ok := l.Get("X")
	require.True(t, ok)
	assert.True(t, stored.Valuation.Equal(decimal.NewFromInt(70)))
}

func TestLedger_UpdateValuationNotFound(t *testing.T) {
	l := newTestLedger()

	_, err := l.UpdateValuation("missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_UpdateValuationNegative(t *testing.T) {
	l := newTestLedger()
	_, err := l.Open(testCandidate("X", 60), testConfig(1))
	require.NoError(t, err)

	_, err = l.UpdateValuation("X", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidValuation)
}

func TestLedger_CloseOnce(t *testing.T) {
	l := newTestLedger()
	_, err := l.Open(testCandidate("X", 60), testConfig(1))
	require.NoError(t, err)

	p, err := l.Close("X")
	require.NoError(t, err)
	assert.Equal(t, "X", p.ID)
	assert.Equal(t, 0, l.Len())

	_, err = l.Close("X")
	assert.ErrorIs(t, err, ErrNotFound, "second close must fail")

	_, err = l.UpdateValuation("X", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound, "update after close must fail")
}

func TestLedger_ListOrderAndSnapshot(t *testing.T) {
	l := newTestLedger()
	cfg := testConfig(5)
	for _, id := range []string{"C", "A", "B"} {
		_, err := l.Open(testCandidate(id, 60), cfg)
		require.NoError(t, err)
	}

	_, err := l.Close("A")
	require.NoError(t, err)

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "C", list[0].ID)
	assert.Equal(t, "B", list[1].ID)

	// Mutating the snapshot must not leak into the ledger.
	list[0].Valuation = decimal.NewFromInt(999)
	stored, _ := l.Get("C")
	assert.True(t, stored.Valuation.Equal(decimal.NewFromInt(60)))
}

func TestLedger_Restore(t *testing.T) {
	l := newTestLedger()
	_, err := l.Open(testCandidate("OLD", 60), testConfig(5))
	require.NoError(t, err)

	err = l.Restore([]domain.Position{
		{ID: "A", EntryValuation: decimal.NewFromInt(10), Valuation: decimal.NewFromInt(12)},
		{ID: "B", EntryValuation: decimal.NewFromInt(20), Valuation: decimal.NewFromInt(19)},
	})
	require.NoError(t, err)

	assert.False(t, l.Contains("OLD"))
	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].ID)
	assert.Equal(t, "B", list[1].ID)
}

func TestLedger_RestoreRejectsInvalid(t *testing.T) {
	l := newTestLedger()
	_, err := l.Open(testCandidate("KEEP", 60), testConfig(5))
	require.NoError(t, err)

	err = l.Restore([]domain.Position{{ID: "A", EntryValuation: decimal.Zero}})
	assert.ErrorIs(t, err, ErrInvalidValuation)

	err = l.Restore([]domain.Position{
		{ID: "A", EntryValuation: decimal.NewFromInt(1)},
		{ID: "A", EntryValuation: decimal.NewFromInt(2)},
	})
	assert.ErrorIs(t, err, ErrAlreadyOpen)

	assert.True(t, l.Contains("KEEP"), "failed restore must leave ledger untouched")
}

func TestLedger_ConcurrentCloseSucceedsOnce(t *testing.T) {
	l := newTestLedger()
	_, err := l.Open(testCandidate("X", 60), testConfig(1))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Close("X"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestLedger_ConcurrentOpenRespectsCapacity(t *testing.T) {
	l := newTestLedger()
	cfg := testConfig(3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = l.Open(testCandidate(fmt.Sprintf("T%d", i), 60), cfg)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, l.Len())
}
