package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Socials holds the social-presence flags of a token.
type Socials struct {
	Twitter  bool `json:"twitter"`
	Telegram bool `json:"telegram"`
	Website  bool `json:"website"`
}

// TokenCandidate is a discovered token that has not been bought.
// Valuation is a market-cap-like quantity denominated in SOL.
type TokenCandidate struct {
	Mint         string          `json:"mint"` // unique address, becomes the position ID
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Valuation    decimal.Decimal `json:"valuation"`
	Socials      Socials         `json:"socials"`
	Source       Source          `json:"source"`
	DiscoveredAt time.Time       `json:"discovered_at"`
}

// DiscoveryRecord is the audit entry written for every discovered candidate.
type DiscoveryRecord struct {
	ID        string         `json:"id"` // idhash.ComputeDiscoveryID
	Candidate TokenCandidate `json:"candidate"`
	Accepted  bool           `json:"accepted"`
	Reason    string         `json:"reason,omitempty"` // empty when accepted
}
