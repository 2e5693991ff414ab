package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	tradeStore    storage.TradeStore
	positionStore storage.PositionStore // optional
	now           func() time.Time      // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. positionStore may be nil.
func NewGenerator(tradeStore storage.TradeStore, positionStore storage.PositionStore) *Generator {
	return &Generator{
		tradeStore:    tradeStore,
		positionStore: positionStore,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads trades and open positions and summarizes them.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	stored, err := g.tradeStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	trades := make([]domain.TradeRecord, 0, len(stored))
	for _, t := range stored {
		trades = append(trades, *t)
	}

	var open []domain.Position
	if g.positionStore != nil {
		positions, err := g.positionStore.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list positions: %w", err)
		}
		for _, p := range positions {
			open = append(open, *p)
		}
	}

	return Build(g.now(), trades, open), nil
}

// Build summarizes trades and open positions already in memory. Trades are
// ordered by (seq ASC, trade_id ASC) before order-dependent metrics.
func Build(at time.Time, trades []domain.TradeRecord, open []domain.Position) *Report {
	sorted := make([]domain.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Seq != sorted[j].Seq {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	return &Report{
		GeneratedAt: at,
		Summary:     computeSummary(sorted, open),
		Positions:   open,
		Trades:      sorted,
	}
}
