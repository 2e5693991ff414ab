package reporting

import (
	"sort"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// computeSummary calculates all metrics from trades in seq order and the
// open positions.
func computeSummary(trades []domain.TradeRecord, open []domain.Position) Summary {
	s := Summary{
		CumulativeProfit: decimal.Zero,
		BestTrade:        decimal.Zero,
		WorstTrade:       decimal.Zero,
		MaxDrawdown:      decimal.Zero,
		OpenPositions:    len(open),
		OpenExposure:     decimal.Zero,
	}
	for _, p := range open {
		s.OpenExposure = s.OpenExposure.Add(p.EntrySize)
	}

	n := len(trades)
	if n == 0 {
		return s
	}

	var stats domain.Stats
	profits := make([]float64, n)
	for i := range trades {
		stats = stats.Apply(&trades[i])
		profits[i] = trades[i].Profit.InexactFloat64()

		if i == 0 || trades[i].Profit.GreaterThan(s.BestTrade) {
			s.BestTrade = trades[i].Profit
		}
		if i == 0 || trades[i].Profit.LessThan(s.WorstTrade) {
			s.WorstTrade = trades[i].Profit
		}
	}

	s.TotalTrades = stats.TotalTrades()
	s.Wins = stats.Wins
	s.Losses = stats.Losses
	s.WinRate = stats.WinRate()
	s.CumulativeProfit = stats.CumulativeProfit

	sorted := make([]float64, n)
	copy(sorted, profits)
	sort.Float64s(sorted)

	s.ProfitMean = computeMean(profits)
	s.ProfitMedian = computePercentile(sorted, 0.50)
	s.ProfitP10 = computePercentile(sorted, 0.10)
	s.ProfitP90 = computePercentile(sorted, 0.90)
	s.MaxDrawdown = computeMaxDrawdown(trades)
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(trades)
	return s
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-to-trough on cumulative profit.
// The peak starts at zero, so a losing first trade counts.
func computeMaxDrawdown(trades []domain.TradeRecord) decimal.Decimal {
	cumulative := decimal.Zero
	peak := decimal.Zero
	maxDrawdown := decimal.Zero

	for _, t := range trades {
		cumulative = cumulative.Add(t.Profit)
		if cumulative.GreaterThan(peak) {
			peak = cumulative
		}
		if dd := peak.Sub(cumulative); dd.GreaterThan(maxDrawdown) {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest run of STOP_LOSS outcomes.
func computeMaxConsecutiveLosses(trades []domain.TradeRecord) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.Outcome == domain.OutcomeStopLoss {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
