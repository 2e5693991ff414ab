package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/feed/stub"
	"solana-sniper/internal/observability"
)

func testDriver(e *Engine, opts DriverOptions) *Driver {
	opts.Metrics = observability.NewMetrics("driver_test", prometheus.NewRegistry())
	return NewDriver(e, opts)
}

func TestDriver_RunConsumesDiscoveryFeed(t *testing.T) {
	cfg := scenarioConfig()
	cfg.MaxConcurrentPositions = 2
	e := startedEngine(t, cfg)

	discovery := stub.NewDiscoveryFeed(
		candidate("A", 60),
		candidate("B", 30),
		candidate("C", 70),
		candidate("D", 80),
	)
	d := testDriver(e, DriverOptions{Discovery: discovery})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, 0, discovery.Remaining())
	open := e.ListOpen()
	require.Len(t, open, 2)
	assert.Equal(t, "A", open[0].ID)
	assert.Equal(t, "C", open[1].ID)

	recent := e.ListRecentDiscoveries()
	require.Len(t, recent, 2)
	assert.Equal(t, "D", recent[0].Mint)
	assert.Equal(t, "B", recent[1].Mint)
}

func TestDriver_PollOnce(t *testing.T) {
	ctx := context.Background()
	cfg := scenarioConfig()
	cfg.MaxConcurrentPositions = 3
	e := startedEngine(t, cfg)

	for _, mint := range []string{"A", "B", "C"} {
		_, err := e.HandleDiscovery(ctx, candidate(mint, 60))
		require.NoError(t, err)
	}

	// C has no quote yet and must be skipped.
	prices := stub.NewPriceFeed().
		Script("A", d(65), d(71)).
		Script("B", d(57))
	driver := testDriver(e, DriverOptions{Prices: prices})

	closed, err := driver.PollOnce(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "B", closed[0].PositionID)
	assert.Equal(t, domain.OutcomeStopLoss, closed[0].Outcome)

	closed, err = driver.PollOnce(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "A", closed[0].PositionID)
	assert.Equal(t, domain.OutcomeWin, closed[0].Outcome)

	assert.Equal(t, 1, prices.Calls("B"), "closed positions are not polled again")
	require.Len(t, e.ListOpen(), 1)
	assert.Equal(t, "C", e.ListOpen()[0].ID)
}

type retainingPrices struct {
	*stub.PriceFeed

	mu       sync.Mutex
	retained [][]string
}

func (p *retainingPrices) Retain(_ context.Context, open []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retained = append(p.retained, open)
	return nil
}

func (p *retainingPrices) last() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retained[len(p.retained)-1]
}

func TestDriver_PollOnceReleasesClosedPositions(t *testing.T) {
	ctx := context.Background()
	cfg := scenarioConfig()
	cfg.MaxConcurrentPositions = 2
	e := startedEngine(t, cfg)

	for _, mint := range []string{"A", "B"} {
		_, err := e.HandleDiscovery(ctx, candidate(mint, 60))
		require.NoError(t, err)
	}

	prices := &retainingPrices{PriceFeed: stub.NewPriceFeed().Script("A", d(57)).Script("B", d(61))}
	driver := testDriver(e, DriverOptions{Prices: prices})

	closed, err := driver.PollOnce(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, []string{"B"}, prices.last())

	// A manual close between polls is released on the next poll.
	_, err = e.ManualClose(ctx, "B", "")
	require.NoError(t, err)
	_, err = driver.PollOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, prices.last())
}

func TestDriver_PollOnceWhileIdleIsNoop(t *testing.T) {
	ctx := context.Background()
	e := startedEngine(t, scenarioConfig())

	_, err := e.HandleDiscovery(ctx, candidate("X", 60))
	require.NoError(t, err)
	require.NoError(t, e.Stop())

	prices := stub.NewPriceFeed().Script("X", d(100))
	closed, err := testDriver(e, DriverOptions{Prices: prices}).PollOnce(ctx)

	require.NoError(t, err)
	assert.Empty(t, closed)
	assert.Len(t, e.ListOpen(), 1)
}

func TestDriver_RunStopsOnCancel(t *testing.T) {
	e := startedEngine(t, scenarioConfig())
	prices := stub.NewPriceFeed()
	d := testDriver(e, DriverOptions{Prices: prices, PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop")
	}
}
