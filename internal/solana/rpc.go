// Package solana holds the Solana helpers the sniper needs: address and
// signature handling, explorer links and a small JSON-RPC client.
package solana

import "context"

// RPCClient defines the Solana RPC calls the sniper uses.
type RPCClient interface {
	// GetAccountInfo retrieves an account. Returns nil, nil if it does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
