// Package eligibility recomputes the eligibility flag of every submission.
package eligibility

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/observability"
	"solana-airdrop/internal/storage"
)

// DaysPerMonth is the month length used for the holding period.
const DaysPerMonth = 30

const (
	defaultRequiredMonths = 3
	defaultConcurrency    = 8
	defaultCallTimeout    = 10 * time.Second
)

// Options configures an Evaluator.
type Options struct {
	Store   storage.SubmissionStore
	Checker HoldingChecker

	// RequiredMonths is the minimum holding period. Zero means the default of 3;
	// use a negative value to require no holding period.
	RequiredMonths int
	Concurrency    int
	// CallTimeout bounds each holding check.
	CallTimeout time.Duration

	Clock  func() time.Time
	Logger logrus.FieldLogger
}

// Evaluator runs the eligibility batch.
type Evaluator struct {
	store          storage.SubmissionStore
	checker        HoldingChecker
	requiredMonths float64
	concurrency    int
	callTimeout    time.Duration
	now            func() time.Time
	logger         logrus.FieldLogger
}

// New creates an Evaluator.
func New(opts Options) *Evaluator {
	e := &Evaluator{
		store:       opts.Store,
		checker:     opts.Checker,
		concurrency: opts.Concurrency,
		callTimeout: opts.CallTimeout,
		now:         opts.Clock,
		logger:      opts.Logger,
	}
	switch {
	case opts.RequiredMonths == 0:
		e.requiredMonths = defaultRequiredMonths
	case opts.RequiredMonths > 0:
		e.requiredMonths = float64(opts.RequiredMonths)
	}
	if e.concurrency <= 0 {
		e.concurrency = defaultConcurrency
	}
	if e.callTimeout <= 0 {
		e.callTimeout = defaultCallTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	return e
}

// Summary counts per-record outcomes of one run.
type Summary struct {
	Total    int
	Outcomes map[domain.EligibilityOutcome]int
	Duration time.Duration
}

// Count returns the number of records with outcome o.
func (s *Summary) Count(o domain.EligibilityOutcome) int {
	return s.Outcomes[o]
}

// ElapsedMonths returns whole and fractional 30-day months between
// submittedAt and now.
func ElapsedMonths(submittedAt, now time.Time) float64 {
	return now.Sub(submittedAt).Hours() / 24 / DaysPerMonth
}

// Run evaluates every stored record. Per-record failures are logged and
// counted; only a failure to list records or a cancelled context is returned.
func (e *Evaluator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	records, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	// One clock reading per run keeps reruns over unchanged state identical.
	now := e.now()

	summary := &Summary{Total: len(records), Outcomes: make(map[domain.EligibilityOutcome]int)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome := e.evaluate(ctx, rec, now)
			observability.RecordEligibility(string(outcome))

			mu.Lock()
			summary.Outcomes[outcome]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(start)
	observability.SetEligibleRecords(summary.Count(domain.OutcomeEligible))

	e.logger.WithFields(logrus.Fields{
		"total":           summary.Total,
		"eligible":        summary.Count(domain.OutcomeEligible),
		"holding_period":  summary.Count(domain.OutcomeHoldingPeriod),
		"zero_balance":    summary.Count(domain.OutcomeZeroBalance),
		"rpc_error":       summary.Count(domain.OutcomeRPCError),
		"skipped_claimed": summary.Count(domain.OutcomeSkippedClaimed),
		"store_error":     summary.Count(domain.OutcomeStoreError),
		"duration":        summary.Duration.String(),
	}).Info("eligibility run finished")

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// evaluate decides and persists eligibility for one record.
func (e *Evaluator) evaluate(ctx context.Context, rec *domain.Submission, now time.Time) domain.EligibilityOutcome {
	log := e.logger.WithFields(logrus.Fields{
		"public_hash": rec.PublicHash,
		"wallet":      rec.WalletAddress,
	})

	if rec.State() == domain.StateClaimed {
		return domain.OutcomeSkippedClaimed
	}

	outcome := e.decide(ctx, rec, now, log)
	if ctx.Err() != nil {
		// Shutting down: an aborted check must not demote the record.
		return domain.OutcomeRPCError
	}

	applied, err := e.store.SetEligibility(ctx, rec.PublicHash, outcome.Eligible())
	if err != nil {
		log.WithError(err).WithField("outcome", domain.OutcomeStoreError).Error("failed to persist eligibility")
		return domain.OutcomeStoreError
	}
	if !applied {
		log.Debug("record claimed during evaluation, left untouched")
		return domain.OutcomeSkippedClaimed
	}
	return outcome
}

func (e *Evaluator) decide(ctx context.Context, rec *domain.Submission, now time.Time, log logrus.FieldLogger) domain.EligibilityOutcome {
	months := ElapsedMonths(rec.Timestamp, now)
	if months < e.requiredMonths {
		return domain.OutcomeHoldingPeriod
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	notSold, err := e.checker.HasNotSold(callCtx, rec.WalletAddress)
	if err != nil {
		log.WithError(err).WithField("outcome", domain.OutcomeRPCError).Warn("holding check failed, treating as sold for this cycle")
		return domain.OutcomeRPCError
	}
	if !notSold {
		log.WithField("outcome", domain.OutcomeZeroBalance).Debug("wallet no longer holds the token")
		return domain.OutcomeZeroBalance
	}
	return domain.OutcomeEligible
}
