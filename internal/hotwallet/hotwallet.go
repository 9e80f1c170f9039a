// Package hotwallet loads the disbursement wallet credential at startup.
package hotwallet

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Errors returned by ParseSecret.
var (
	ErrEmptySecret    = errors.New("hot wallet secret is empty")
	ErrInvalidSecret  = errors.New("hot wallet secret is not valid base58")
	ErrSecretLength   = errors.New("hot wallet secret must be 64 bytes")
	ErrKeypairInvalid = errors.New("hot wallet public key does not match its seed")
)

// Keypair is a decoded ed25519 keypair in the Solana 64-byte layout
// (32-byte seed followed by the 32-byte public key).
type Keypair struct {
	private ed25519.PrivateKey
}

// ParseSecret decodes a base58 64-byte secret key.
func ParseSecret(secret string) (*Keypair, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrEmptySecret
	}

	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrSecretLength, len(raw))
	}

	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, ErrKeypairInvalid
	}
	if _, err := new(edwards25519.Point).SetBytes(raw[ed25519.SeedSize:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeypairInvalid, err)
	}

	return &Keypair{private: derived}, nil
}

// PublicKey returns the raw public key.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// Address returns the base58 public key, the wallet's on-chain address.
func (k *Keypair) Address() string {
	return base58.Encode(k.PublicKey())
}

// Sign signs message with the wallet key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// String never prints key material.
func (k *Keypair) String() string {
	return "hotwallet(" + k.Address() + ")"
}
