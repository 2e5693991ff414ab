// Package strategy holds the exit rule applied to open positions on every
// valuation update.
package strategy

import (
	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// ExitDecision tells the engine to close a position and how to classify it.
type ExitDecision struct {
	Outcome   domain.Outcome
	Threshold decimal.Decimal // target or stop level that was crossed
}

// Thresholds returns the profit target and stop-loss levels for p under cfg.
//   - target = entry + profit_target_offset
//   - stop   = entry - stop_loss_offset
func Thresholds(p domain.Position, cfg domain.TradingConfig) (target, stop decimal.Decimal) {
	target = p.EntryValuation.Add(cfg.ProfitTargetOffset)
	stop = p.EntryValuation.Sub(cfg.StopLossOffset)
	return target, stop
}

// Evaluate decides whether p should be closed. It is pure and total.
// The target is checked before the stop, so when both are satisfied (zero or
// negative offsets) the outcome is WIN.
func Evaluate(p domain.Position, cfg domain.TradingConfig) (ExitDecision, bool) {
	target, stop := Thresholds(p, cfg)

	if p.Valuation.GreaterThanOrEqual(target) {
		return ExitDecision{Outcome: domain.OutcomeWin, Threshold: target}, true
	}
	if p.Valuation.LessThanOrEqual(stop) {
		return ExitDecision{Outcome: domain.OutcomeStopLoss, Threshold: stop}, true
	}
	return ExitDecision{}, false
}

// ManualOutcome classifies an operator-forced close without a declared
// outcome: WIN when the position is up, STOP_LOSS otherwise.
func ManualOutcome(p domain.Position) domain.Outcome {
	if p.Change().IsPositive() {
		return domain.OutcomeWin
	}
	return domain.OutcomeStopLoss
}
