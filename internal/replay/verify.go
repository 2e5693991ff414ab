package replay

import (
	"fmt"

	"solana-sniper/internal/domain"
)

// FieldDivergence represents a mismatch between expected and replayed values.
type FieldDivergence struct {
	Field    string
	Expected string
	Actual   string
}

// TradeVerification is the comparison of one trade, matched by seq.
type TradeVerification struct {
	Seq         int64
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for a whole history.
type VerificationReport struct {
	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int
	Missing         int // expected trades the replay did not produce
	Extra           int // replayed trades beyond the expected history
	Results         []TradeVerification
}

// Match reports whether both histories are equivalent.
func (r *VerificationReport) Match() bool {
	return r.DivergentTrades == 0 && r.Missing == 0 && r.Extra == 0
}

// CompareTrades compares two histories in seq order. Session IDs, trade IDs
// and receipts depend on the run and are not compared.
func CompareTrades(expected, actual []domain.TradeRecord) *VerificationReport {
	r := &VerificationReport{TotalTrades: len(expected)}

	n := min(len(expected), len(actual))
	for i := 0; i < n; i++ {
		divs := CompareTradeRecords(&expected[i], &actual[i])
		res := TradeVerification{Seq: expected[i].Seq, Match: len(divs) == 0, Divergences: divs}
		if res.Match {
			r.MatchedTrades++
		} else {
			r.DivergentTrades++
		}
		r.Results = append(r.Results, res)
	}
	if len(expected) > n {
		r.Missing = len(expected) - n
	}
	if len(actual) > n {
		r.Extra = len(actual) - n
	}
	return r
}

// CompareTradeRecords returns the fields on which two trades differ.
// Decimals compare by value, times by instant.
func CompareTradeRecords(expected, actual *domain.TradeRecord) []FieldDivergence {
	var divs []FieldDivergence
	add := func(field string, want, got any) {
		divs = append(divs, FieldDivergence{Field: field, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)})
	}

	if expected.Seq != actual.Seq {
		add("Seq", expected.Seq, actual.Seq)
	}
	if expected.PositionID != actual.PositionID {
		add("PositionID", expected.PositionID, actual.PositionID)
	}
	if !expected.EntryValuation.Equal(actual.EntryValuation) {
		add("EntryValuation", expected.EntryValuation, actual.EntryValuation)
	}
	if !expected.ExitValuation.Equal(actual.ExitValuation) {
		add("ExitValuation", expected.ExitValuation, actual.ExitValuation)
	}
	if !expected.EntrySize.Equal(actual.EntrySize) {
		add("EntrySize", expected.EntrySize, actual.EntrySize)
	}
	if !expected.Proceeds.Equal(actual.Proceeds) {
		add("Proceeds", expected.Proceeds, actual.Proceeds)
	}
	if !expected.Profit.Equal(actual.Profit) {
		add("Profit", expected.Profit, actual.Profit)
	}
	if expected.Outcome != actual.Outcome {
		add("Outcome", expected.Outcome, actual.Outcome)
	}
	if expected.Manual != actual.Manual {
		add("Manual", expected.Manual, actual.Manual)
	}
	if !expected.OpenedAt.Equal(actual.OpenedAt) {
		add("OpenedAt", expected.OpenedAt, actual.OpenedAt)
	}
	if !expected.ClosedAt.Equal(actual.ClosedAt) {
		add("ClosedAt", expected.ClosedAt, actual.ClosedAt)
	}
	return divs
}
