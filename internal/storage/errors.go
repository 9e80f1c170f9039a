package storage

import (
	"errors"

	"solana-airdrop/internal/domain"
)

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Submissions are never overwritten.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyClaimed is returned by MarkClaimed for a claimed record.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrNotEligible is returned by MarkClaimed for an ineligible record.
	ErrNotEligible = errors.New("not eligible")
)

// ClaimFailure maps the current state of a record that a conditional
// claim update did not match to the error that explains why.
// Guards are checked in order: existence, claimed, eligible.
func ClaimFailure(s *domain.Submission) error {
	switch {
	case s == nil:
		return ErrNotFound
	case s.HasClaimed:
		return ErrAlreadyClaimed
	case !s.IsEligible:
		return ErrNotEligible
	default:
		// Matched nothing yet looks claimable now. Claimed is terminal, so the
		// row was unclaimed at update time and must have been ineligible then;
		// the evaluator promoted it before the read.
		return ErrNotEligible
	}
}
