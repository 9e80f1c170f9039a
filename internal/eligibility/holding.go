package eligibility

import (
	"context"
	"errors"

	"solana-airdrop/internal/solana"
)

// HoldingChecker answers whether a wallet still holds the airdrop token.
// A nil error means the answer reflects on-chain state; any error means
// the answer is unknown.
type HoldingChecker interface {
	HasNotSold(ctx context.Context, walletAddress string) (bool, error)
}

// TokenAccountChecker queries the wallet address itself as a token account.
// An address that is not a token account holds nothing.
type TokenAccountChecker struct {
	Reader solana.ChainReader
}

// HasNotSold implements HoldingChecker.
func (c TokenAccountChecker) HasNotSold(ctx context.Context, walletAddress string) (bool, error) {
	amount, err := c.Reader.GetTokenAccountBalance(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, solana.ErrAccountNotFound) || errors.Is(err, solana.ErrNotTokenAccount) {
			return false, nil
		}
		return false, err
	}
	return amount.IsPositive(), nil
}

// OwnerMintChecker sums every token account the wallet owns for Mint.
type OwnerMintChecker struct {
	Reader solana.ChainReader
	Mint   string
}

// HasNotSold implements HoldingChecker.
func (c OwnerMintChecker) HasNotSold(ctx context.Context, walletAddress string) (bool, error) {
	accounts, err := c.Reader.GetTokenAccountsByOwner(ctx, walletAddress, c.Mint)
	if err != nil {
		if errors.Is(err, solana.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, acct := range accounts {
		if acct.Amount.IsPositive() {
			return true, nil
		}
	}
	return false, nil
}

// NewHoldingChecker picks OwnerMintChecker when mint is set.
func NewHoldingChecker(reader solana.ChainReader, mint string) HoldingChecker {
	if mint != "" {
		return OwnerMintChecker{Reader: reader, Mint: mint}
	}
	return TokenAccountChecker{Reader: reader}
}
