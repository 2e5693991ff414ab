package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned when a trading configuration fails validation.
var ErrInvalidConfig = errors.New("invalid trading config")

// SocialRequirements selects which social-presence flags a candidate must have.
// A disabled requirement imposes no constraint.
type SocialRequirements struct {
	Twitter  bool `json:"twitter" toml:"twitter"`
	Telegram bool `json:"telegram" toml:"telegram"`
	Website  bool `json:"website" toml:"website"`
}

// TradingConfig holds the operator-editable trading parameters.
type TradingConfig struct {
	EntrySize              decimal.Decimal    `json:"entry_size"`
	MaxConcurrentPositions int                `json:"max_concurrent_positions"`
	MinBuyValuation        decimal.Decimal    `json:"min_buy_valuation"`
	ProfitTargetOffset     decimal.Decimal    `json:"profit_target_offset"` // added to entry valuation
	StopLossOffset         decimal.Decimal    `json:"stop_loss_offset"`     // subtracted from entry valuation
	SlippagePct            decimal.Decimal    `json:"slippage_pct"`         // advisory only
	Socials                SocialRequirements `json:"socials"`
	HistoryPageSize        int                `json:"history_page_size"`
}

// DefaultTradingConfig returns the parameters the bot starts with.
func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		EntrySize:              decimal.NewFromInt(1),
		MaxConcurrentPositions: 2,
		MinBuyValuation:        decimal.NewFromInt(50),
		ProfitTargetOffset:     decimal.NewFromInt(10),
		StopLossOffset:         decimal.NewFromInt(2),
		SlippagePct:            decimal.Zero,
		HistoryPageSize:        10,
	}
}

// Validate checks every field and reports the first violation.
func (c TradingConfig) Validate() error {
	switch {
	case !c.EntrySize.IsPositive():
		return fmt.Errorf("%w: entry size must be > 0, got %s", ErrInvalidConfig, c.EntrySize)
	case c.MaxConcurrentPositions < 0:
		return fmt.Errorf("%w: max concurrent positions must be >= 0, got %d", ErrInvalidConfig, c.MaxConcurrentPositions)
	case c.MinBuyValuation.IsNegative():
		return fmt.Errorf("%w: min buy valuation must be >= 0, got %s", ErrInvalidConfig, c.MinBuyValuation)
	case c.ProfitTargetOffset.IsNegative():
		return fmt.Errorf("%w: profit target offset must be >= 0, got %s", ErrInvalidConfig, c.ProfitTargetOffset)
	case c.StopLossOffset.IsNegative():
		return fmt.Errorf("%w: stop loss offset must be >= 0, got %s", ErrInvalidConfig, c.StopLossOffset)
	case c.SlippagePct.IsNegative() || c.SlippagePct.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: slippage must be within [0, 100], got %s", ErrInvalidConfig, c.SlippagePct)
	case c.HistoryPageSize < 1:
		return fmt.Errorf("%w: history page size must be >= 1, got %d", ErrInvalidConfig, c.HistoryPageSize)
	}
	return nil
}

// ConfigPatch is a partial update. Nil fields keep their current value.
type ConfigPatch struct {
	EntrySize              *decimal.Decimal    `json:"entry_size,omitempty"`
	MaxConcurrentPositions *int                `json:"max_concurrent_positions,omitempty"`
	MinBuyValuation        *decimal.Decimal    `json:"min_buy_valuation,omitempty"`
	ProfitTargetOffset     *decimal.Decimal    `json:"profit_target_offset,omitempty"`
	StopLossOffset         *decimal.Decimal    `json:"stop_loss_offset,omitempty"`
	SlippagePct            *decimal.Decimal    `json:"slippage_pct,omitempty"`
	Socials                *SocialRequirements `json:"socials,omitempty"`
	HistoryPageSize        *int                `json:"history_page_size,omitempty"`
}

// Apply returns a copy of c with the patch applied. The result is not validated.
func (c TradingConfig) Apply(p ConfigPatch) TradingConfig {
	if p.EntrySize != nil {
		c.EntrySize = *p.EntrySize
	}
	if p.MaxConcurrentPositions != nil {
		c.MaxConcurrentPositions = *p.MaxConcurrentPositions
	}
	if p.MinBuyValuation != nil {
		c.MinBuyValuation = *p.MinBuyValuation
	}
	if p.ProfitTargetOffset != nil {
		c.ProfitTargetOffset = *p.ProfitTargetOffset
	}
	if p.StopLossOffset != nil {
		c.StopLossOffset = *p.StopLossOffset
	}
	if p.SlippagePct != nil {
		c.SlippagePct = *p.SlippagePct
	}
	if p.Socials != nil {
		c.Socials = *p.Socials
	}
	if p.HistoryPageSize != nil {
		c.HistoryPageSize = *p.HistoryPageSize
	}
	return c
}
