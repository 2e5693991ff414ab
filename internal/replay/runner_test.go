package replay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/engine"
	"solana-sniper/internal/feed/stub"
	"solana-sniper/internal/ledger"
	"solana-sniper/internal/observability"
)

var _ Engine = (*engine.Engine)(nil)

var scriptStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const script = `
# open one position, win on the target, then lose one to the stop
{"type":"start","at":"2025-03-01T12:00:00Z"}
{"type":"discovery","candidate":{"mint":"MintA","name":"Alpha","valuation":"60"}}
{"type":"discovery","candidate":{"mint":"MintB","name":"Beta","valuation":"40"}}
{"type":"tick","at":"2025-03-01T12:00:05Z","id":"MintA","valuation":"65"}
{"type":"tick","at":"2025-03-01T12:00:10Z","id":"MintA","valuation":"70"}
{"type":"config","patch":{"stop_loss_offset":"5"}}
{"type":"discovery","at":"2025-03-01T12:00:15Z","candidate":{"mint":"MintC","name":"Gamma","valuation":"100"}}
{"type":"tick","at":"2025-03-01T12:00:20Z","id":"MintC","valuation":"95"}
{"type":"stop"}
`

func newReplayEngine(t *testing.T, clock *Clock) *engine.Engine {
	t.Helper()
	cfg := domain.DefaultTradingConfig()
	cfg.MaxConcurrentPositions = 1
	e, err := engine.New(engine.Options{
		Config:       cfg,
		Receipts:     stub.NewReceipts(),
		Clock:        clock.Now,
		NewSessionID: func() string { return "replay-1" },
		Metrics:      observability.NewMetrics("test", prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return e
}

func TestDecode(t *testing.T) {
	events, err := Decode(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, events, 9)

	assert.Equal(t, EventTypeStart, events[0].Type)
	assert.Equal(t, 3, events[0].Line, "blank line and comment counted")
	assert.Equal(t, scriptStart, events[1].At, "missing at inherits")
	assert.Equal(t, domain.SourceReplay, events[1].Candidate.Source)
	assert.True(t, events[3].Valuation.Equal(decimal.NewFromInt(65)))
	require.NotNil(t, events[5].Patch)
	assert.True(t, events[5].Patch.StopLossOffset.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, scriptStart.Add(10*time.Second), events[5].At)
	assert.NoError(t, CheckOrdering(events))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "not json", line: `{type:`},
		{name: "unknown type", line: `{"type":"buy"}`},
		{name: "config without patch", line: `{"type":"config"}`},
		{name: "discovery without mint", line: `{"type":"discovery","candidate":{"name":"x"}}`},
		{name: "unknown source", line: `{"type":"discovery","candidate":{"mint":"x","source":"TWITTER"}}`},
		{name: "tick without id", line: `{"type":"tick","valuation":"1"}`},
		{name: "close without id", line: `{"type":"close"}`},
		{name: "bad outcome", line: `{"type":"close","id":"x","outcome":"DRAW"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.line))
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestSortEvents(t *testing.T) {
	events := []Event{
		{Type: EventTypeTick, At: scriptStart.Add(time.Second), Line: 1},
		{Type: EventTypeStart, At: scriptStart, Line: 3},
		{Type: EventTypeDiscovery, At: scriptStart, Line: 2},
	}
	assert.ErrorIs(t, CheckOrdering(events), ErrInvalidOrdering)

	SortEvents(events)
	assert.Equal(t, []int{2, 3, 1}, []int{events[0].Line, events[1].Line, events[2].Line})
	assert.NoError(t, CheckOrdering(events))
}

func TestRunner_Script(t *testing.T) {
	events, err := Decode(strings.NewReader(script))
	require.NoError(t, err)

	clock := NewClock(scriptStart)
	e := newReplayEngine(t, clock)

	res, err := NewRunner(e, clock, Options{Strict: true}).Run(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, 9, res.Applied)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, []string{"replay-1"}, res.Sessions)
	require.Len(t, res.Opened, 2)
	assert.Equal(t, "MintA", res.Opened[0].ID)
	assert.Equal(t, "MintC", res.Opened[1].ID)

	require.Len(t, res.Closed, 2)
	win, loss := res.Closed[0], res.Closed[1]
	assert.Equal(t, domain.OutcomeWin, win.Outcome)
	assert.Equal(t, scriptStart, win.OpenedAt)
	assert.Equal(t, scriptStart.Add(10*time.Second), win.ClosedAt)
	assert.Equal(t, domain.OutcomeStopLoss, loss.Outcome, "stop offset patched to 5")
	assert.Equal(t, "replay-1", loss.SessionID)

	assert.Equal(t, engine.StatusIdle, e.Status())
	st := e.Stats()
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.Equal(t, scriptStart.Add(20*time.Second), clock.Now())

	// MintB stayed in the recent view.
	recent := e.ListRecentDiscoveries()
	require.Len(t, recent, 1)
	assert.Equal(t, "MintB", recent[0].Mint)
}

func TestRunner_Deterministic(t *testing.T) {
	run := func() []domain.TradeRecord {
		events, err := Decode(strings.NewReader(script))
		require.NoError(t, err)
		clock := NewClock(scriptStart)
		e := newReplayEngine(t, clock)
		_, err = NewRunner(e, clock, Options{}).Run(context.Background(), events)
		require.NoError(t, err)
		return e.Trades()
	}

	first, second := run(), run()
	require.Len(t, first, 2)
	for i := range first {
		assert.Equal(t, first[i].TradeID, second[i].TradeID)
		assert.True(t, first[i].Profit.Equal(second[i].Profit))
	}
}

func TestRunner_StrictAndLenient(t *testing.T) {
	events, err := Decode(strings.NewReader(`
{"type":"discovery","candidate":{"mint":"MintA","valuation":"60"}}
{"type":"start"}
{"type":"close","id":"Missing"}
{"type":"discovery","candidate":{"mint":"MintA","valuation":"60"}}
`))
	require.NoError(t, err)

	t.Run("strict", func(t *testing.T) {
		clock := NewClock(scriptStart)
		_, err := NewRunner(newReplayEngine(t, clock), clock, Options{Strict: true}).Run(context.Background(), events)
		require.Error(t, err)
		assert.ErrorIs(t, err, engine.ErrNotRunning)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("lenient", func(t *testing.T) {
		clock := NewClock(scriptStart)
		res, err := NewRunner(newReplayEngine(t, clock), clock, Options{}).Run(context.Background(), events)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Applied)
		assert.Equal(t, 2, res.Skipped)
		assert.Len(t, res.Opened, 1)
	})

	t.Run("missing position", func(t *testing.T) {
		clock := NewClock(scriptStart)
		_, err := NewRunner(newReplayEngine(t, clock), clock, Options{Strict: true}).Run(context.Background(), events[1:])
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestRunner_ContextCancelled(t *testing.T) {
	events, err := Decode(strings.NewReader(script))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := NewClock(scriptStart)
	res, err := NewRunner(newReplayEngine(t, clock), clock, Options{}).Run(ctx, events)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, res.Applied)
}

func TestClock_OnlyMovesForward(t *testing.T) {
	c := NewClock(scriptStart)
	c.Advance(scriptStart.Add(-time.Hour))
	assert.Equal(t, scriptStart, c.Now())
	c.Advance(time.Time{})
	assert.Equal(t, scriptStart, c.Now())
	c.Advance(scriptStart.Add(time.Minute))
	assert.Equal(t, scriptStart.Add(time.Minute), c.Now())
}
