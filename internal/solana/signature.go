package solana

import (
	"fmt"
	"io"

	sol "github.com/gagliardetto/solana-go"
)

const explorerTxBase = "https://solscan.io/tx/"

// NewSignature reads 64 bytes from r and returns them as a base58 signature.
// With a seeded reader the result is deterministic.
func NewSignature(r io.Reader) (string, error) {
	var sig sol.Signature
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return "", fmt.Errorf("read signature bytes: %w", err)
	}
	return sig.String(), nil
}

// ExplorerTxURL returns the explorer link for a transaction signature.
func ExplorerTxURL(signature string) string {
	return explorerTxBase + signature
}

// ValidSignature reports whether s decodes to a 64-byte signature.
func ValidSignature(s string) bool {
	_, err := sol.SignatureFromBase58(s)
	return err == nil
}
