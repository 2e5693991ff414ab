// Package eligibility decides which discovered candidates may be bought.
package eligibility

import "solana-sniper/internal/domain"

// Reason explains why a candidate was rejected. Empty means eligible.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonBelowValuation  Reason = "below_min_valuation"
	ReasonAlreadyOpen     Reason = "already_open"
	ReasonMissingTwitter  Reason = "missing_twitter"
	ReasonMissingTelegram Reason = "missing_telegram"
	ReasonMissingWebsite  Reason = "missing_website"
)

// OpenSet reports whether an identifier is currently an open position.
type OpenSet interface {
	Contains(id string) bool
}

// Check returns the first failed condition for c, or ReasonNone.
// Checks run in a fixed order: valuation, open positions, then each enabled
// social requirement.
func Check(c *domain.TokenCandidate, open OpenSet, cfg domain.TradingConfig) Reason {
	if c.Valuation.LessThan(cfg.MinBuyValuation) {
		return ReasonBelowValuation
	}
	if open != nil && open.Contains(c.Mint) {
		return ReasonAlreadyOpen
	}
	if cfg.Socials.Twitter && !c.Socials.Twitter {
		return ReasonMissingTwitter
	}
	if cfg.Socials.Telegram && !c.Socials.Telegram {
		return ReasonMissingTelegram
	}
	if cfg.Socials.Website && !c.Socials.Website {
		return ReasonMissingWebsite
	}
	return ReasonNone
}

// IsEligible reports whether c passes every check.
func IsEligible(c *domain.TokenCandidate, open OpenSet, cfg domain.TradingConfig) bool {
	return Check(c, open, cfg) == ReasonNone
}

// IDs is an OpenSet over a fixed set of identifiers.
type IDs map[string]struct{}

// Contains reports whether id is in the set.
func (s IDs) Contains(id string) bool {
	_, ok := s[id]
	return ok
}
