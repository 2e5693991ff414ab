package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// Report is a snapshot of trading results.
type Report struct {
	GeneratedAt time.Time
	Summary     Summary
	Positions   []domain.Position    // open at generation time
	Trades      []domain.TradeRecord // seq ASC
}

// Summary aggregates the trade history. Every field is derived from the
// trades alone.
type Summary struct {
	TotalTrades      int
	Wins             int
	Losses           int
	WinRate          float64
	CumulativeProfit decimal.Decimal

	// Profit distribution in SOL.
	ProfitMean   float64
	ProfitMedian float64
	ProfitP10    float64
	ProfitP90    float64
	BestTrade    decimal.Decimal
	WorstTrade   decimal.Decimal

	// Order-dependent, over seq order.
	MaxDrawdown          decimal.Decimal
	MaxConsecutiveLosses int

	OpenPositions int
	OpenExposure  decimal.Decimal // sum of entry sizes still committed
}
