package notify

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifier_NotifyClaim(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{writer: w, Topic: "claims"}

	claimedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := NewClaimEvent("hash1", "addrA", claimedAt)
	event.Payer = "payer1"
	require.NoError(t, n.NotifyClaim(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "hash1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, event.EventID, string(msg.Headers[0].Value))

	var decoded ClaimEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.PublicHash, decoded.PublicHash)
	assert.Equal(t, "payer1", decoded.Payer)
	assert.True(t, claimedAt.Equal(decoded.ClaimedAt))

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifier_WriteError(t *testing.T) {
	n := &KafkaNotifier{writer: &fakeWriter{err: errors.New("broker down")}}

	err := n.NotifyClaim(context.Background(), NewClaimEvent("hash1", "addrA", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewClaimEvent_UniqueIDs(t *testing.T) {
	a := NewClaimEvent("h", "a", time.Now())
	b := NewClaimEvent("h", "a", time.Now())
	assert.NotEqual(t, a.EventID, b.EventID)
}

type keySigner struct {
	priv ed25519.PrivateKey
}

func (s keySigner) Address() string {
	return base58.Encode(s.priv.Public().(ed25519.PublicKey))
}

func (s keySigner) Sign(m []byte) []byte {
	return ed25519.Sign(s.priv, m)
}

func TestClaimEvent_Sign(t *testing.T) {
	signer := keySigner{priv: ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, ed25519.SeedSize))}

	event := NewClaimEvent("hash1", "addrA", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event.Sign(signer)

	assert.Equal(t, signer.Address(), event.Payer)
	sig, err := base58.Decode(event.Signature)
	require.NoError(t, err)

	pub := signer.priv.Public().(ed25519.PublicKey)
	assert.True(t, ed25519.Verify(pub, event.SigningPayload(), sig))

	tampered := event
	tampered.WalletAddress = "addrEvil"
	assert.False(t, ed25519.Verify(pub, tampered.SigningPayload(), sig), "signature must cover the recipient")
}
