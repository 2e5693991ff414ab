package replay

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypeStart     EventType = "start"
	EventTypeStop      EventType = "stop"
	EventTypeConfig    EventType = "config"
	EventTypeDiscovery EventType = "discovery"
	EventTypeTick      EventType = "tick"
	EventTypeClose     EventType = "close"
)

// Event is one line of a replay script. Only the fields for Type are set.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"` // zero inherits the previous event's time
	Line int       `json:"-"`  // 1-based script line, set by Decode

	Candidate *domain.TokenCandidate `json:"candidate,omitempty"` // discovery
	Patch     *domain.ConfigPatch    `json:"patch,omitempty"`     // config

	ID        string          `json:"id,omitempty"`      // tick, close
	Valuation decimal.Decimal `json:"valuation"`         // tick
	Outcome   domain.Outcome  `json:"outcome,omitempty"` // close; empty derives it
}

// Engine is the command surface a script drives. *engine.Engine satisfies it.
type Engine interface {
	Start() (string, error)
	Stop() error
	UpdateConfig(p domain.ConfigPatch) (domain.TradingConfig, error)
	HandleDiscovery(ctx context.Context, c *domain.TokenCandidate) (*domain.Position, error)
	HandlePriceTick(ctx context.Context, id string, valuation decimal.Decimal) (*domain.TradeRecord, error)
	ManualClose(ctx context.Context, id string, outcome domain.Outcome) (domain.TradeRecord, error)
}
