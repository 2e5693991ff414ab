// Package sim is a seeded simulated market: it lists a new token on every
// Next call and random-walks the valuation of every listed token.
package sim

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/feed"
)

// Config controls the simulated market.
type Config struct {
	Seed int64

	MinValuation  float64 // lowest listing valuation, SOL
	ValuationSpan float64 // listings fall in [MinValuation, MinValuation+ValuationSpan)
	Step          float64 // max absolute valuation change per update

	TwitterProb  float64
	TelegramProb float64
	WebsiteProb  float64

	// Window is how many of the latest listings Retain keeps regardless of
	// whether a position holds them.
	Window int

	Clock func() time.Time
}

// DefaultConfig mirrors the original bot's generator.
func DefaultConfig() Config {
	return Config{
		Seed:          1,
		MinValuation:  40,
		ValuationSpan: 1000,
		Step:          2,
		TwitterProb:   0.7,
		TelegramProb:  0.6,
		WebsiteProb:   0.8,
		Window:        64,
		Clock:         time.Now,
	}
}

// Market implements feed.DiscoveryFeed and feed.PriceFeed over one book.
type Market struct {
	mu       sync.Mutex
	cfg      Config
	rng      *rand.Rand
	book     map[string]listing
	listings uint64
}

type listing struct {
	valuation decimal.Decimal
	seq       uint64 // listing number, starting at 1
}

// NewMarket creates a market from cfg.
func NewMarket(cfg Config) *Market {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Window <= 0 {
		cfg.Window = 64
	}
	return &Market{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		book: make(map[string]listing),
	}
}

// Next lists a new token.
func (m *Market) Next(ctx context.Context) (*domain.TokenCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mint := m.newMint()
	valuation := round2(m.rng.Float64()*m.cfg.ValuationSpan + m.cfg.MinValuation)
	m.listings++
	m.book[mint] = listing{valuation: valuation, seq: m.listings}

	return &domain.TokenCandidate{
		Mint:      mint,
		Name:      fmt.Sprintf("Token%d", m.rng.Intn(1000)),
		Symbol:    "NEW",
		Valuation: valuation,
		Socials: domain.Socials{
			Twitter:  m.rng.Float64() < m.cfg.TwitterProb,
			Telegram: m.rng.Float64() < m.cfg.TelegramProb,
			Website:  m.rng.Float64() < m.cfg.WebsiteProb,
		},
		Source:       domain.SourceSimulated,
		DiscoveredAt: m.cfg.Clock(),
	}, nil
}

// Update moves the valuation of id by a random step in [-Step, Step),
// rounded to two decimals and floored at zero.
func (m *Market) Update(ctx context.Context, id string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.book[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", id, feed.ErrNoQuote)
	}

	change := round2(m.rng.Float64()*2*m.cfg.Step - m.cfg.Step)
	next := l.valuation.Add(change)
	if next.IsNegative() {
		next = decimal.Zero
	}
	l.valuation = next
	m.book[id] = l
	return next, nil
}

// Quote returns the current valuation of id without moving it.
func (m *Market) Quote(id string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.book[id]
	return l.valuation, ok
}

// Retain delists every token that is neither in open nor among the last
// Window listings. Recent listings survive so a discovery still being
// bought keeps its quote.
func (m *Market) Retain(_ context.Context, open []string) error {
	keep := make(map[string]struct{}, len(open))
	for _, id := range open {
		keep[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for mint, l := range m.book {
		if _, ok := keep[mint]; ok {
			continue
		}
		if m.listings-l.seq < uint64(m.cfg.Window) {
			continue
		}
		delete(m.book, mint)
	}
	return nil
}

// newMint derives an ed25519 public key from the seeded stream, so mints look
// like real wallet-generated addresses.
func (m *Market) newMint() string {
	seed := make([]byte, ed25519.SeedSize)
	m.rng.Read(seed)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return base58.Encode(pub)
}

func round2(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

var (
	_ feed.DiscoveryFeed = (*Market)(nil)
	_ feed.PriceFeed     = (*Market)(nil)
	_ feed.Retainer      = (*Market)(nil)
)
