package solana

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAccountNotFound is a definitive on-chain result: the account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNotTokenAccount is a definitive on-chain result: the account exists
	// but is not an SPL token account, e.g. a plain system wallet.
	ErrNotTokenAccount = errors.New("not a token account")

	// ErrUnavailable wraps every transient failure: network errors, timeouts,
	// rate limiting, node errors. Callers treat it as "unknown, retry later".
	ErrUnavailable = errors.New("solana rpc unavailable")
)

// JSON-RPC error codes.
const (
	rpcCodeInvalidParams = -32602
)

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// isAccountNotFound detects the node's answer for a missing token account.
func (e *rpcError) isAccountNotFound() bool {
	return e.Code == rpcCodeInvalidParams &&
		strings.Contains(strings.ToLower(e.Message), "could not find account")
}

// isNotTokenAccount detects getTokenAccountBalance called on an account
// owned by another program.
func (e *rpcError) isNotTokenAccount() bool {
	return e.Code == rpcCodeInvalidParams &&
		strings.Contains(strings.ToLower(e.Message), "not a token account")
}

// classify maps a JSON-RPC error to a definitive result or ErrUnavailable.
func classify(e *rpcError) error {
	switch {
	case e.isAccountNotFound():
		return fmt.Errorf("%w: %w", ErrAccountNotFound, e)
	case e.isNotTokenAccount():
		return fmt.Errorf("%w: %w", ErrNotTokenAccount, e)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, e)
}

// IsUnavailable reports whether err is a transient RPC failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
