// Package notify publishes claim authorizations for the external
// disbursement process.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// ClaimEvent is emitted once per successful claim.
type ClaimEvent struct {
	EventID       string    `json:"eventId"`
	PublicHash    string    `json:"publicHash"`
	WalletAddress string    `json:"walletAddress"`
	ClaimedAt     time.Time `json:"claimedAt"`
	// Payer is the hot wallet address the disbursement should pay from.
	Payer string `json:"payer,omitempty"`
	// Signature is the payer's base58 ed25519 signature over SigningPayload.
	Signature string `json:"signature,omitempty"`
}

// NewClaimEvent builds an unsigned event with a fresh ID.
func NewClaimEvent(publicHash, walletAddress string, claimedAt time.Time) ClaimEvent {
	return ClaimEvent{
		EventID:       uuid.NewString(),
		PublicHash:    publicHash,
		WalletAddress: walletAddress,
		ClaimedAt:     claimedAt.UTC(),
	}
}

// Signer is the hot wallet key that authorizes disbursements.
type Signer interface {
	Address() string
	Sign(message []byte) []byte
}

// SigningPayload is the canonical form the payer signs: one field per line.
func (e ClaimEvent) SigningPayload() []byte {
	return []byte(strings.Join([]string{
		e.EventID,
		e.PublicHash,
		e.WalletAddress,
		e.Payer,
		e.ClaimedAt.UTC().Format(time.RFC3339Nano),
	}, "\n"))
}

// Sign sets Payer to the signer's address and signs the event.
func (e *ClaimEvent) Sign(s Signer) {
	e.Payer = s.Address()
	e.Signature = base58.Encode(s.Sign(e.SigningPayload()))
}

// ClaimNotifier delivers claim events.
type ClaimNotifier interface {
	NotifyClaim(ctx context.Context, event ClaimEvent) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

// NotifyClaim implements ClaimNotifier.
func (NopNotifier) NotifyClaim(context.Context, ClaimEvent) error { return nil }
