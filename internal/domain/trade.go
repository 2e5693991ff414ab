package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome classifies how a position was closed.
type Outcome string

const (
	OutcomeWin      Outcome = "WIN"
	OutcomeStopLoss Outcome = "STOP_LOSS"
)

// IsValid checks if the outcome is a valid value.
func (o Outcome) IsValid() bool {
	return o == OutcomeWin || o == OutcomeStopLoss
}

// TradeRecord is the immutable result of closing a position.
type TradeRecord struct {
	TradeID   string `json:"trade_id"`   // deterministic hash
	Seq       int64  `json:"seq"`        // 1-based append order
	SessionID string `json:"session_id"` // engine session that closed it

	PositionID string `json:"position_id"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`

	EntryValuation decimal.Decimal `json:"entry_valuation"`
	ExitValuation  decimal.Decimal `json:"exit_valuation"`
	EntrySize      decimal.Decimal `json:"entry_size"`

	// Proceeds = EntrySize / EntryValuation * ExitValuation
	Proceeds decimal.Decimal `json:"proceeds"`
	// Profit = Proceeds - EntrySize
	Profit decimal.Decimal `json:"profit"`

	Outcome Outcome `json:"outcome"`
	Manual  bool    `json:"manual"` // operator-forced close
	Receipt string  `json:"receipt"`

	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at"`
}

// Stats are the running aggregates over trade history.
type Stats struct {
	Wins             int             `json:"wins"`
	Losses           int             `json:"losses"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
}

// TotalTrades returns wins + losses.
func (s Stats) TotalTrades() int {
	return s.Wins + s.Losses
}

// WinRate returns wins / total trades, zero without trades.
func (s Stats) WinRate() float64 {
	total := s.TotalTrades()
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total)
}

// Apply folds one trade into the aggregates.
func (s Stats) Apply(t *TradeRecord) Stats {
	if t.Outcome == OutcomeWin {
		s.Wins++
	} else {
		s.Losses++
	}
	s.CumulativeProfit = s.CumulativeProfit.Add(t.Profit)
	return s
}
