// Package airdrop implements the submission, status and claim operations
// of the airdrop state machine.
package airdrop

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/notify"
	"solana-airdrop/internal/observability"
	"solana-airdrop/internal/storage"
)

// Mode selects how isValidOnChain is decided at submit time.
type Mode string

const (
	// ModeOptimistic records every submission as valid without an RPC call.
	// isValidOnChain is then a placeholder, not a verified fact.
	ModeOptimistic Mode = "optimistic"
	// ModeSync runs the wallet validator before inserting.
	ModeSync Mode = "sync"
)

// WalletValidator classifies wallet addresses.
type WalletValidator interface {
	Validate(ctx context.Context, address string) domain.ValidationResult
}

// Options configures a Service.
type Options struct {
	Store     storage.SubmissionStore
	Validator WalletValidator // required in ModeSync
	Notifier  notify.ClaimNotifier
	// Signer is the hot wallet that signs claim events. Nil leaves them unsigned.
	Signer notify.Signer
	Mode   Mode
	Clock  func() time.Time
	Logger logrus.FieldLogger
}

// Service implements Submit, Status and Claim.
type Service struct {
	store     storage.SubmissionStore
	validator WalletValidator
	notifier  notify.ClaimNotifier
	signer    notify.Signer
	mode      Mode
	now       func() time.Time
	logger    logrus.FieldLogger
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		store:     opts.Store,
		validator: opts.Validator,
		notifier:  opts.Notifier,
		signer:    opts.Signer,
		mode:      opts.Mode,
		now:       opts.Clock,
		logger:    opts.Logger,
	}
	if s.notifier == nil {
		s.notifier = notify.NopNotifier{}
	}
	if s.mode == "" {
		s.mode = ModeOptimistic
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// SubmitRequest is the input of Submit.
type SubmitRequest struct {
	WalletName    string `json:"walletName"`
	PublicHash    string `json:"publicHash"`
	WalletAddress string `json:"walletAddress"`
}

func (r SubmitRequest) normalized() SubmitRequest {
	return SubmitRequest{
		WalletName:    strings.TrimSpace(r.WalletName),
		PublicHash:    strings.TrimSpace(r.PublicHash),
		WalletAddress: strings.TrimSpace(r.WalletAddress),
	}
}

// Submit registers a wallet. It never overwrites an existing record.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (err error) {
	defer func() { observability.RecordSubmission(resultLabel(err)) }()

	req = req.normalized()
	if req.WalletName == "" || req.PublicHash == "" || req.WalletAddress == "" {
		return ErrMissingFields
	}

	log := s.logger.WithFields(logrus.Fields{
		"public_hash": req.PublicHash,
		"wallet":      req.WalletAddress,
	})

	validOnChain := true
	if s.mode == ModeSync {
		result := s.validator.Validate(ctx, req.WalletAddress)
		if !result.IsDefinitive() {
			log.Warn("wallet validation unavailable, submission rejected")
			return ErrUpstreamUnavailable
		}
		validOnChain = result == domain.ValidationValid
		if !validOnChain {
			log.WithField("result", result.String()).Info("wallet failed on-chain validation")
		}
	}

	sub := &domain.Submission{
		WalletName:     req.WalletName,
		PublicHash:     req.PublicHash,
		WalletAddress:  req.WalletAddress,
		IsValidOnChain: validOnChain,
		Timestamp:      s.now().UTC(),
	}

	if err := s.store.Insert(ctx, sub); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return ErrDuplicate
		}
		log.WithError(err).Error("failed to insert submission")
		return internalError("failed to save submission", err)
	}

	log.Info("submission recorded")
	return nil
}

// Status returns the read-only projection of a record.
func (s *Service) Status(ctx context.Context, publicHash string) (*domain.StatusView, error) {
	publicHash = strings.TrimSpace(publicHash)
	if publicHash == "" {
		return nil, ErrNotFound
	}

	sub, err := s.store.GetByPublicHash(ctx, publicHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalError("failed to load submission", err)
	}
	return sub.View(), nil
}

// ClaimReceipt describes a successful claim.
type ClaimReceipt struct {
	PublicHash string    `json:"publicHash"`
	ClaimedAt  time.Time `json:"claimedAt"`
	EventID    string    `json:"eventId"`
}

// Claim moves an eligible, unclaimed record to claimed. Exactly one
// concurrent claim per record succeeds.
func (s *Service) Claim(ctx context.Context, publicHash string) (receipt *ClaimReceipt, err error) {
	defer func() { observability.RecordClaim(resultLabel(err)) }()

	publicHash = strings.TrimSpace(publicHash)
	if publicHash == "" {
		return nil, ErrNotFound
	}

	log := s.logger.WithField("public_hash", publicHash)

	if err := s.store.MarkClaimed(ctx, publicHash); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, storage.ErrAlreadyClaimed):
			return nil, ErrAlreadyClaimed
		case errors.Is(err, storage.ErrNotEligible):
			return nil, ErrNotEligible
		}
		log.WithError(err).Error("failed to mark claimed")
		return nil, internalError("failed to record claim", err)
	}

	claimedAt := s.now().UTC()
	var walletAddress string
	if sub, err := s.store.GetByPublicHash(ctx, publicHash); err == nil {
		walletAddress = sub.WalletAddress
	}

	event := notify.NewClaimEvent(publicHash, walletAddress, claimedAt)
	if s.signer != nil {
		event.Sign(s.signer)
	}
	if err := s.notifier.NotifyClaim(ctx, event); err != nil {
		// The claim stands either way; operators reconcile from the counter and this line.
		observability.RecordClaimEventFailure()
		log.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.EventID,
			"wallet":     walletAddress,
			"claimed_at": claimedAt.Format(time.RFC3339Nano),
		}).Error("failed to publish claim event")
	}

	log.WithField("event_id", event.EventID).Info("airdrop claimed")
	return &ClaimReceipt{PublicHash: publicHash, ClaimedAt: claimedAt, EventID: event.EventID}, nil
}

// resultLabel is the metrics label for an operation outcome.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return CodeOf(err)
}
