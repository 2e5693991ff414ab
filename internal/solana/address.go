package solana

import (
	"context"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	sol "github.com/gagliardetto/solana-go"
)

// Well-known program and mint addresses.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	wsolMint           = "So11111111111111111111111111111111111111112"
)

var (
	// ErrInvalidAddress is returned for a string that is not a 32-byte base58 key.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNotMint is returned when an address is not an SPL token mint account.
	ErrNotMint = errors.New("not a token mint")
)

// ParseAddress decodes a base58 public key.
func ParseAddress(addr string) (sol.PublicKey, error) {
	pk, err := sol.PublicKeyFromBase58(addr)
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, addr, err)
	}
	return pk, nil
}

// IsOnCurve reports whether the key is a valid ed25519 point. Program derived
// addresses are off the curve.
func IsOnCurve(pk sol.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk.Bytes())
	return err == nil
}

// MintVerifier checks that a discovered address is a live SPL token mint.
// Without an RPC client only the address itself is checked.
type MintVerifier struct {
	rpc RPCClient
}

// NewMintVerifier creates a verifier backed by rpc, which may be nil.
func NewMintVerifier(rpc RPCClient) *MintVerifier {
	return &MintVerifier{rpc: rpc}
}

// Verify returns nil when mint is an on-curve key that exists and is owned
// by a token program. Launchpad mints are fresh keypairs, so a program
// derived address is rejected before any RPC call.
func (v *MintVerifier) Verify(ctx context.Context, mint string) error {
	pk, err := ParseAddress(mint)
	if err != nil {
		return err
	}
	if !IsOnCurve(pk) {
		return fmt.Errorf("%w: %s is off curve", ErrNotMint, mint)
	}
	if v.rpc == nil {
		return nil
	}

	info, err := v.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return fmt.Errorf("get account %s: %w", mint, err)
	}
	if info == nil {
		return fmt.Errorf("%w: %s does not exist", ErrNotMint, mint)
	}
	if info.Owner != TokenProgramID && info.Owner != Token2022ProgramID {
		return fmt.Errorf("%w: %s owned by %s", ErrNotMint, mint, info.Owner)
	}
	return nil
}
