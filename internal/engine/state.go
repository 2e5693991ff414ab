package engine

import (
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/ledger"
	"solana-sniper/internal/recorder"
)

// Status is the engine lifecycle state.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusRunning Status = "RUNNING"
)

// DefaultRecentLimit is the size of the recent-discoveries view.
const DefaultRecentLimit = 10

// Fault is a diagnostic tied to a position whose close could not be recorded.
type Fault struct {
	PositionID string    `json:"position_id"`
	Name       string    `json:"name"`
	Error      string    `json:"error"`
	At         time.Time `json:"at"`
}

// State is everything the engine owns: open positions, trade history, the
// active configuration and operator-facing views. It survives stop/start and
// is rebuilt only by Reset.
type State struct {
	ledger   *ledger.Ledger
	recorder *recorder.Recorder
	config   domain.TradingConfig
	recent   *recentView
	faults   []Fault
	ticks    []*domain.ValuationTick // pending persistence
	unsaved  []domain.TradeRecord    // trades whose store append has not succeeded
}

func newState(cfg domain.TradingConfig, recentLimit int, clock func() time.Time) *State {
	return &State{
		ledger:   ledger.New(ledger.WithClock(clock)),
		recorder: recorder.New(recorder.WithClock(clock)),
		config:   cfg,
		recent:   newRecentView(recentLimit),
	}
}

// recentView keeps the last discovered candidates, newest first.
type recentView struct {
	limit int
	items []domain.TokenCandidate
}

func newRecentView(limit int) *recentView {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &recentView{limit: limit}
}

// push inserts c at the front, replacing an older entry for the same mint and
// evicting the oldest entry past the limit.
func (v *recentView) push(c domain.TokenCandidate) {
	v.remove(c.Mint)
	v.items = append([]domain.TokenCandidate{c}, v.items...)
	if len(v.items) > v.limit {
		v.items = v.items[:v.limit]
	}
}

func (v *recentView) remove(mint string) {
	for i := range v.items {
		if v.items[i].Mint == mint {
			v.items = append(v.items[:i], v.items[i+1:]...)
			return
		}
	}
}

func (v *recentView) list() []domain.TokenCandidate {
	result := make([]domain.TokenCandidate, len(v.items))
	copy(result, v.items)
	return result
}
