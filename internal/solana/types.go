package solana

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// TokenAmount is an SPL token balance.
type TokenAmount struct {
	Amount         uint64 // raw amount in base units
	Decimals       uint8
	UIAmountString string
}

// IsPositive reports whether the raw amount is above zero.
func (a *TokenAmount) IsPositive() bool {
	return a != nil && a.Amount > 0
}

// TokenAccount is one token account returned by getTokenAccountsByOwner.
type TokenAccount struct {
	Address string
	Mint    string
	Amount  TokenAmount
}
