package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open, bought-and-held trade keyed by the candidate's mint.
type Position struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	EntryValuation decimal.Decimal `json:"entry_valuation"` // never mutated after open
	Valuation      decimal.Decimal `json:"current_valuation"`
	EntrySize      decimal.Decimal `json:"entry_size"` // SOL committed
	OpenedAt       time.Time       `json:"opened_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Change returns current valuation minus entry valuation.
func (p Position) Change() decimal.Decimal {
	return p.Valuation.Sub(p.EntryValuation)
}

// Held returns how long the position has been open at now.
func (p Position) Held(now time.Time) time.Duration {
	if now.Before(p.OpenedAt) {
		return 0
	}
	return now.Sub(p.OpenedAt)
}

// ValuationTick is one accepted valuation update for an open position.
type ValuationTick struct {
	PositionID string
	Valuation  decimal.Decimal
	Timestamp  time.Time
}
