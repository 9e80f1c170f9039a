package eligibility

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/solana"
	"solana-airdrop/internal/solana/stub"
	"solana-airdrop/internal/storage"
	"solana-airdrop/internal/storage/memory"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func daysAgo(d int) time.Time {
	return now.Add(-time.Duration(d) * 24 * time.Hour)
}

func insert(t *testing.T, store storage.SubmissionStore, hash, wallet string, ts time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &domain.Submission{
		WalletName:     "w-" + hash,
		PublicHash:     hash,
		WalletAddress:  wallet,
		IsValidOnChain: true,
		Timestamp:      ts,
	}))
}

func eligible(t *testing.T, store storage.SubmissionStore, hash string) bool {
	t.Helper()
	sub, err := store.GetByPublicHash(context.Background(), hash)
	require.NoError(t, err)
	return sub.IsEligible
}

func newEvaluator(store storage.SubmissionStore, checker HoldingChecker) (*Evaluator, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(Options{
		Store:       store,
		Checker:     checker,
		Concurrency: 4,
		CallTimeout: time.Second,
		Clock:       func() time.Time { return now },
		Logger:      logger,
	}), hook
}

func TestEvaluator_Rules(t *testing.T) {
	chain := stub.NewChainReader()
	store := memory.NewSubmissionStore()

	insert(t, store, "old-holder", "walletA", daysAgo(100))
	chain.SetTokenBalance("walletA", 5)

	insert(t, store, "old-sold", "walletB", daysAgo(100))
	chain.SetTokenBalance("walletB", 0)

	insert(t, store, "fresh-holder", "walletC", daysAgo(1))
	chain.SetTokenBalance("walletC", 1_000_000)

	insert(t, store, "not-token-account", "walletD", daysAgo(120))

	eval, _ := newEvaluator(store, TokenAccountChecker{Reader: chain})
	summary, err := eval.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, eligible(t, store, "old-holder"))
	assert.False(t, eligible(t, store, "old-sold"))
	assert.False(t, eligible(t, store, "fresh-holder"))
	assert.False(t, eligible(t, store, "not-token-account"))

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Count(domain.OutcomeEligible))
	assert.Equal(t, 2, summary.Count(domain.OutcomeZeroBalance))
	assert.Equal(t, 1, summary.Count(domain.OutcomeHoldingPeriod))
}

func TestEvaluator_HoldingPeriodBoundary(t *testing.T) {
	chain := stub.NewChainReader()
	store := memory.NewSubmissionStore()

	insert(t, store, "exactly", "walletA", daysAgo(90))
	insert(t, store, "just-short", "walletB", daysAgo(90).Add(time.Minute))
	chain.SetTokenBalance("walletA", 1)
	chain.SetTokenBalance("walletB", 1)

	eval, _ := newEvaluator(store, TokenAccountChecker{Reader: chain})
	_, err := eval.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, eligible(t, store, "exactly"))
	assert.False(t, eligible(t, store, "just-short"))
}

func TestEvaluator_DemotesAfterSale(t *testing.T) {
	chain := stub.NewChainReader()
	store := memory.NewSubmissionStore()
	insert(t, store, "hash1", "walletA", daysAgo(100))
	chain.SetTokenBalance("walletA", 5)

	eval, _ := newEvaluator(store, TokenAccountChecker{Reader: chain})
	_, err := eval.Run(context.Background())
	require.NoError(t, err)
	require.True(t, eligible(t, store, "hash1"))

	chain.SetTokenBalance("walletA", 0)
	_, err = eval.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, eligible(t, store, "hash1"))
}

func TestEvaluator_FailClosedOnRPCError(t *testing.T) {
	chain := stub.NewChainReader()
	store := memory.NewSubmissionStore()

	insert(t, store, "flaky", "walletA", daysAgo(100))
	chain.SetTokenBalance("walletA", 5)
	insert(t, store, "healthy", "walletB", daysAgo(100))
	chain.SetTokenBalance("walletB", 5)

	// Previously eligible, then the node fails
	_, err := store.SetEligibility(context.Background(), "flaky", true)
	require.NoError(t, err)
	chain.FailWith("walletA", fmt.Errorf("%w: timeout", solana.ErrUnavailable))

	eval, hook := newEvaluator(store, TokenAccountChecker{Reader: chain})
	summary, err := eval.Run(context.Background())
	require.NoError(t, err, "one wallet's failure must not abort the batch")

	assert.False(t, eligible(t, store, "flaky"))
	assert.True(t, eligible(t, store, "healthy"))
	assert.Equal(t, 1, summary.Count(domain.OutcomeRPCError))
	assert.Equal(t, 1, summary.Count(domain.OutcomeEligible))

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["outcome"] == domain.OutcomeRPCError {
			warned = true
			assert.Equal(t, "flaky", entry.Data["public_hash"])
		}
	}
	assert.True(t, warned, "rpc failures must be logged distinctly from zero balances")
}

func TestEvaluator_Idempotent(t *testing.T) {
	chain := stub.NewChainReader()
	store := memory.NewSubmissionStore()
	for i := 0; i < 20; i++ {
		wallet := fmt.Sprintf("wallet%d", i)
		insert(t, store, fmt.Sprintf("hash%d", i), wallet, daysAgo(60+i*3))
		chain.SetTokenBalance(wallet, uint64(i%3))
	}

	eval, _ := newEvaluator(store, TokenAccountChecker{Reader: chain})

	snapshot := func() map[string]bool {
		list, err := store.List(context.Background())
		require.NoError(t, err)
		out := make(map[string]bool, len(list))
		for _, s := range list {
			out[s.PublicHash] = s.IsEligible
		}
		return out
	}

	_, err := eval.Run(context.Background())
	require.NoError(t, err)
	first := snapshot()

	_, err = eval.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, snapshot())
}

func TestEvaluator_SkipsClaimed(t *testing.T) {
	chain := stub.NewChainReader()
	store := memory.NewSubmissionStore()
	ctx := context.Background()

	insert(t, store, "hash1", "walletA", daysAgo(100))
	_, err := store.SetEligibility(ctx, "hash1", true)
	require.NoError(t, err)
	require.NoError(t, store.MarkClaimed(ctx, "hash1"))
	chain.SetTokenBalance("walletA", 0)

	eval, _ := newEvaluator(store, TokenAccountChecker{Reader: chain})
	summary, err := eval.Run(ctx)
	require.NoError(t, err)

	assert.True(t, eligible(t, store, "hash1"), "claimed records are frozen")
	assert.Equal(t, 1, summary.Count(domain.OutcomeSkippedClaimed))
	assert.Zero(t, chain.Calls("walletA"))
}

// claimingChecker claims the record while its holding check is in flight.
type claimingChecker struct {
	store storage.SubmissionStore
	hash  string
}

func (c claimingChecker) HasNotSold(ctx context.Context, _ string) (bool, error) {
	if err := c.store.MarkClaimed(ctx, c.hash); err != nil {
		return false, err
	}
	return false, nil
}

func TestEvaluator_ClaimDuringEvaluationNotInvalidated(t *testing.T) {
	store := memory.NewSubmissionStore()
	ctx := context.Background()

	insert(t, store, "hash1", "walletA", daysAgo(100))
	_, err := store.SetEligibility(ctx, "hash1", true)
	require.NoError(t, err)

	eval, _ := newEvaluator(store, claimingChecker{store: store, hash: "hash1"})
	summary, err := eval.Run(ctx)
	require.NoError(t, err)

	sub, err := store.GetByPublicHash(ctx, "hash1")
	require.NoError(t, err)
	assert.True(t, sub.HasClaimed)
	assert.True(t, sub.IsEligible, "a stale evaluator write must not rewrite a claimed record")
	assert.Equal(t, 1, summary.Count(domain.OutcomeSkippedClaimed))
}

// concurrencyChecker tracks the peak number of in-flight checks.
type concurrencyChecker struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *concurrencyChecker) HasNotSold(context.Context, string) (bool, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return true, nil
}

func TestEvaluator_BoundedConcurrency(t *testing.T) {
	store := memory.NewSubmissionStore()
	for i := 0; i < 30; i++ {
		insert(t, store, fmt.Sprintf("hash%d", i), fmt.Sprintf("wallet%d", i), daysAgo(200))
	}

	checker := &concurrencyChecker{}
	eval, _ := newEvaluator(store, checker)
	summary, err := eval.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, summary.Count(domain.OutcomeEligible))
	assert.LessOrEqual(t, checker.peak.Load(), int32(4))
}

type brokenListStore struct {
	storage.SubmissionStore
}

func (brokenListStore) List(context.Context) ([]*domain.Submission, error) {
	return nil, errors.New("connection refused")
}

func TestEvaluator_ListFailure(t *testing.T) {
	eval, _ := newEvaluator(brokenListStore{memory.NewSubmissionStore()}, TokenAccountChecker{Reader: stub.NewChainReader()})
	_, err := eval.Run(context.Background())
	require.Error(t, err)
}

type flakyWriteStore struct {
	storage.SubmissionStore
	mu   sync.Mutex
	fail map[string]bool
}

func (s *flakyWriteStore) SetEligibility(ctx context.Context, hash string, v bool) (bool, error) {
	s.mu.Lock()
	fail := s.fail[hash]
	s.mu.Unlock()
	if fail {
		return false, errors.New("write timeout")
	}
	return s.SubmissionStore.SetEligibility(ctx, hash, v)
}

func TestEvaluator_StoreErrorDoesNotAbort(t *testing.T) {
	chain := stub.NewChainReader()
	inner := memory.NewSubmissionStore()
	insert(t, inner, "bad", "walletA", daysAgo(100))
	insert(t, inner, "good", "walletB", daysAgo(100))
	chain.SetTokenBalance("walletA", 1)
	chain.SetTokenBalance("walletB", 1)

	store := &flakyWriteStore{SubmissionStore: inner, fail: map[string]bool{"bad": true}}
	eval, _ := newEvaluator(store, TokenAccountChecker{Reader: chain})
	summary, err := eval.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Count(domain.OutcomeStoreError))
	assert.True(t, eligible(t, inner, "good"))
}

func TestEvaluator_CancelledContextDoesNotDemote(t *testing.T) {
	chain := stub.NewChainReader()
	store := memory.NewSubmissionStore()
	insert(t, store, "hash1", "walletA", daysAgo(100))
	chain.SetTokenBalance("walletA", 1)
	_, err := store.SetEligibility(context.Background(), "hash1", true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eval, _ := newEvaluator(store, TokenAccountChecker{Reader: chain})
	_, err = eval.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, eligible(t, store, "hash1"))
}

func TestElapsedMonths(t *testing.T) {
	assert.InDelta(t, 3.0, ElapsedMonths(daysAgo(90), now), 1e-9)
	assert.InDelta(t, 100.0/30, ElapsedMonths(daysAgo(100), now), 1e-9)
}
