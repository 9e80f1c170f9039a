package stub

import (
	"context"
	"fmt"
	"sync"

	"solana-airdrop/internal/solana"
)

// ChainReader implements solana.ChainReader for testing.
// Missing accounts behave like the real node: GetAccountInfo returns nil,
// GetBalance returns 0 and GetTokenAccountBalance returns ErrAccountNotFound.
type ChainReader struct {
	mu            sync.RWMutex
	Accounts      map[string]*solana.AccountInfo
	Balances      map[string]uint64
	TokenBalances map[string]uint64
	OwnerAccounts map[string][]solana.TokenAccount // keyed by owner+"/"+mint
	Errors        map[string]error                 // per-address failures for every call
	calls         map[string]int
}

// Compile-time interface check.
var _ solana.ChainReader = (*ChainReader)(nil)

// NewChainReader creates a new stub chain reader.
func NewChainReader() *ChainReader {
	return &ChainReader{
		Accounts:      make(map[string]*solana.AccountInfo),
		Balances:      make(map[string]uint64),
		TokenBalances: make(map[string]uint64),
		OwnerAccounts: make(map[string][]solana.TokenAccount),
		Errors:        make(map[string]error),
		calls:         make(map[string]int),
	}
}

// AddWallet registers a system-owned wallet with the given lamport balance.
func (c *ChainReader) AddWallet(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[address] = &solana.AccountInfo{Lamports: lamports, Owner: "11111111111111111111111111111111"}
	c.Balances[address] = lamports
}

// AddProgram registers an executable account.
func (c *ChainReader) AddProgram(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[address] = &solana.AccountInfo{Lamports: lamports, Executable: true}
	c.Balances[address] = lamports
}

// SetTokenBalance sets the raw token balance of a token account.
func (c *ChainReader) SetTokenBalance(tokenAccount string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenBalances[tokenAccount] = amount
}

// SetOwnerAccounts sets the token accounts an owner holds for a mint.
func (c *ChainReader) SetOwnerAccounts(owner, mint string, accounts []solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OwnerAccounts[owner+"/"+mint] = accounts
}

// FailWith makes every call for address return err.
// Pass nil to clear the failure.
func (c *ChainReader) FailWith(address string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.Errors, address)
		return
	}
	c.Errors[address] = err
}

// Calls returns how many calls were made for address.
func (c *ChainReader) Calls(address string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[address]
}

func (c *ChainReader) enter(ctx context.Context, address string) error {
	c.mu.Lock()
	c.calls[address]++
	err := c.Errors[address]
	c.mu.Unlock()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", solana.ErrUnavailable, ctxErr)
	}
	return err
}

// GetAccountInfo returns the registered account or nil.
func (c *ChainReader) GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error) {
	if err := c.enter(ctx, address); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.Accounts[address]
	if !ok {
		return nil, nil
	}
	infoCopy := *info
	return &infoCopy, nil
}

// GetBalance returns the registered lamport balance.
func (c *ChainReader) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := c.enter(ctx, address); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Balances[address], nil
}

// GetTokenAccountBalance returns the registered token balance.
func (c *ChainReader) GetTokenAccountBalance(ctx context.Context, tokenAccount string) (*solana.TokenAmount, error) {
	if err := c.enter(ctx, tokenAccount); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	amount, ok := c.TokenBalances[tokenAccount]
	if !ok {
		return nil, fmt.Errorf("%w: %s", solana.ErrAccountNotFound, tokenAccount)
	}
	return &solana.TokenAmount{Amount: amount}, nil
}

// GetTokenAccountsByOwner returns the registered owner accounts for mint.
func (c *ChainReader) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]solana.TokenAccount, error) {
	if err := c.enter(ctx, owner); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	accounts := c.OwnerAccounts[owner+"/"+mint]
	out := make([]solana.TokenAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}
