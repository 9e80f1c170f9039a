package storage

import (
	"context"
	"time"

	"solana-airdrop/internal/domain"
)

// SubmissionStore provides access to submissions storage.
// It is the single shared mutable resource: every state transition is one
// conditional write so concurrent requests and replicas stay linearizable.
type SubmissionStore interface {
	// Insert adds a new submission if its public hash is absent.
	// Returns ErrDuplicateKey if public_hash exists; the existing row is untouched.
	Insert(ctx context.Context, s *domain.Submission) error

	// GetByPublicHash retrieves a submission. Returns ErrNotFound if not exists.
	GetByPublicHash(ctx context.Context, publicHash string) (*domain.Submission, error)

	// List retrieves all submissions ordered by timestamp ASC, public_hash ASC.
	List(ctx context.Context) ([]*domain.Submission, error)

	// SetEligibility overwrites is_eligible for an unclaimed record.
	// Returns false without writing if the record is claimed or absent.
	SetEligibility(ctx context.Context, publicHash string, eligible bool) (bool, error)

	// MarkClaimed sets has_claimed for an eligible, unclaimed record.
	// Exactly one concurrent caller can succeed per record; the others get
	// ErrAlreadyClaimed. Returns ErrNotFound or ErrNotEligible otherwise.
	MarkClaimed(ctx context.Context, publicHash string) error
}

// Snapshot is an immutable point-in-time copy of all submissions.
type Snapshot struct {
	ID      string
	TakenAt time.Time
	Records []*domain.Submission
}

// SnapshotStore persists snapshots in an append-only archive.
type SnapshotStore interface {
	// InsertSnapshot appends every record of the snapshot.
	InsertSnapshot(ctx context.Context, snap *Snapshot) error
}
