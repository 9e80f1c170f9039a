package solana

import "context"

// ChainReader defines the read-only Solana RPC calls the airdrop needs.
// Implementations must distinguish a definitive on-chain absence
// (nil result or ErrAccountNotFound) from a transient failure (ErrUnavailable).
type ChainReader interface {
	// GetAccountInfo retrieves account info by public key.
	// Returns nil, nil if the account does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetTokenAccountBalance retrieves the balance of an SPL token account.
	// Returns ErrAccountNotFound if the token account does not exist.
	GetTokenAccountBalance(ctx context.Context, tokenAccount string) (*TokenAmount, error)

	// GetTokenAccountsByOwner lists the owner's token accounts for a mint.
	GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]TokenAccount, error)
}
