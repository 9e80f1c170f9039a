// Package storagetest holds contract tests shared by every
// storage.SubmissionStore implementation.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/storage"
)

// NewSubmission returns an unclaimed, ineligible submission for hash.
func NewSubmission(hash string, ts time.Time) *domain.Submission {
	return &domain.Submission{
		WalletName:     "wallet-" + hash,
		PublicHash:     hash,
		WalletAddress:  "addr-" + hash,
		IsValidOnChain: true,
		Timestamp:      ts.UTC().Truncate(time.Microsecond),
	}
}

// RunSubmissionStoreTests runs the contract suite. newStore must return an
// empty store for every call.
func RunSubmissionStoreTests(t *testing.T, newStore func(t *testing.T) storage.SubmissionStore) {
	t.Run("InsertAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub := NewSubmission("hash1", time.Now())
		require.NoError(t, store.Insert(ctx, sub))

		got, err := store.GetByPublicHash(ctx, "hash1")
		require.NoError(t, err)
		assert.Equal(t, sub.WalletName, got.WalletName)
		assert.Equal(t, sub.WalletAddress, got.WalletAddress)
		assert.True(t, got.IsValidOnChain)
		assert.False(t, got.IsEligible)
		assert.False(t, got.HasClaimed)
		assert.True(t, sub.Timestamp.Equal(got.Timestamp))
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, NewSubmission("hash1", time.Now())))

		other := NewSubmission("hash1", time.Now())
		other.WalletName = "someone-else"
		other.WalletAddress = "addr-other"
		err := store.Insert(ctx, other)
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)

		got, err := store.GetByPublicHash(ctx, "hash1")
		require.NoError(t, err)
		assert.Equal(t, "wallet-hash1", got.WalletName, "existing record must not be overwritten")
	})

	t.Run("ConcurrentInsertSameHash", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Insert(ctx, NewSubmission("race", time.Now()))
			}()
		}
		wg.Wait()
		close(errs)

		var ok, dup int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, storage.ErrDuplicateKey):
				dup++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, dup)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetByPublicHash(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListOrdered", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.Insert(ctx, NewSubmission("c", base.Add(time.Hour))))
		require.NoError(t, store.Insert(ctx, NewSubmission("b", base)))
		require.NoError(t, store.Insert(ctx, NewSubmission("a", base)))

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "a", list[0].PublicHash)
		assert.Equal(t, "b", list[1].PublicHash)
		assert.Equal(t, "c", list[2].PublicHash)
	})

	t.Run("SetEligibilityOverwrites", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Insert(ctx, NewSubmission("hash1", time.Now())))

		applied, err := store.SetEligibility(ctx, "hash1", true)
		require.NoError(t, err)
		assert.True(t, applied)
		got, _ := store.GetByPublicHash(ctx, "hash1")
		assert.True(t, got.IsEligible)

		applied, err = store.SetEligibility(ctx, "hash1", false)
		require.NoError(t, err)
		assert.True(t, applied)
		got, _ = store.GetByPublicHash(ctx, "hash1")
		assert.False(t, got.IsEligible, "eligibility is recomputed, not a ratchet")
	})

	t.Run("SetEligibilitySkipsClaimed", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Insert(ctx, NewSubmission("hash1", time.Now())))
		_, err := store.SetEligibility(ctx, "hash1", true)
		require.NoError(t, err)
		require.NoError(t, store.MarkClaimed(ctx, "hash1"))

		applied, err := store.SetEligibility(ctx, "hash1", false)
		require.NoError(t, err)
		assert.False(t, applied)

		got, _ := store.GetByPublicHash(ctx, "hash1")
		assert.True(t, got.IsEligible)
		assert.True(t, got.HasClaimed)
	})

	t.Run("SetEligibilityMissing", func(t *testing.T) {
		store := newStore(t)
		applied, err := store.SetEligibility(context.Background(), "missing", true)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("MarkClaimedGuards", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		assert.ErrorIs(t, store.MarkClaimed(ctx, "missing"), storage.ErrNotFound)

		require.NoError(t, store.Insert(ctx, NewSubmission("hash1", time.Now())))
		assert.ErrorIs(t, store.MarkClaimed(ctx, "hash1"), storage.ErrNotEligible)

		_, err := store.SetEligibility(ctx, "hash1", true)
		require.NoError(t, err)
		require.NoError(t, store.MarkClaimed(ctx, "hash1"))
		assert.ErrorIs(t, store.MarkClaimed(ctx, "hash1"), storage.ErrAlreadyClaimed)

		got, err := store.GetByPublicHash(ctx, "hash1")
		require.NoError(t, err)
		assert.True(t, got.HasClaimed)
	})

	t.Run("ConcurrentClaimsExactlyOne", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Insert(ctx, NewSubmission("hash1", time.Now())))
		_, err := store.SetEligibility(ctx, "hash1", true)
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		results := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = store.MarkClaimed(ctx, "hash1")
			}(i)
		}
		wg.Wait()

		var ok int
		for i, err := range results {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, storage.ErrAlreadyClaimed, fmt.Sprintf("attempt %d", i))
		}
		assert.Equal(t, 1, ok)
	})
}
