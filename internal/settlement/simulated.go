// Package settlement provides receipt providers for closed positions.
package settlement

import (
	"context"
	"math/rand"
	"sync"

	"solana-sniper/internal/feed"
	"solana-sniper/internal/solana"
)

// Simulated settles nothing on chain. It returns an explorer link for a
// random, well-formed transaction signature.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated provider. The same seed yields the same
// receipt sequence.
func NewSimulated(seed int64) *Simulated {
	return &Simulated{rng: rand.New(rand.NewSource(seed))}
}

// Settle returns https://solscan.io/tx/<signature>.
func (s *Simulated) Settle(ctx context.Context, _ feed.Settlement) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sig, err := solana.NewSignature(s.rng)
	if err != nil {
		return "", err
	}
	return solana.ExplorerTxURL(sig), nil
}

var _ feed.ReceiptProvider = (*Simulated)(nil)
