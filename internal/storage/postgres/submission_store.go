package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/storage"
)

// SubmissionStore implements storage.SubmissionStore using PostgreSQL.
type SubmissionStore struct {
	pool *Pool
}

// NewSubmissionStore creates a new SubmissionStore.
func NewSubmissionStore(pool *Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SubmissionStore = (*SubmissionStore)(nil)

const submissionColumns = `
	public_hash, wallet_name, wallet_address, is_valid_on_chain,
	submitted_at, is_eligible, has_claimed
`

// Insert adds a new submission. Returns ErrDuplicateKey if public_hash exists.
func (s *SubmissionStore) Insert(ctx context.Context, sub *domain.Submission) error {
	if sub == nil || sub.PublicHash == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (public_hash) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		sub.PublicHash,
		sub.WalletName,
		sub.WalletAddress,
		sub.IsValidOnChain,
		sub.Timestamp,
		sub.IsEligible,
		sub.HasClaimed,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// GetByPublicHash retrieves a submission. Returns ErrNotFound if not exists.
func (s *SubmissionStore) GetByPublicHash(ctx context.Context, publicHash string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE public_hash = $1`

	sub, err := scanSubmission(s.pool.QueryRow(ctx, query, publicHash))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// List retrieves all submissions ordered by timestamp ASC, public_hash ASC.
func (s *SubmissionStore) List(ctx context.Context) ([]*domain.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		ORDER BY submitted_at ASC, public_hash ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// SetEligibility overwrites is_eligible for an unclaimed record.
func (s *SubmissionStore) SetEligibility(ctx context.Context, publicHash string, eligible bool) (bool, error) {
	query := `
		UPDATE submissions
		SET is_eligible = $2
		WHERE public_hash = $1 AND has_claimed = FALSE
	`

	tag, err := s.pool.Exec(ctx, query, publicHash, eligible)
	if err != nil {
		return false, fmt.Errorf("set eligibility: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkClaimed sets has_claimed for an eligible, unclaimed record.
// The update is the only write; the follow-up read only explains a miss.
func (s *SubmissionStore) MarkClaimed(ctx context.Context, publicHash string) error {
	query := `
		UPDATE submissions
		SET has_claimed = TRUE, claimed_at = NOW()
		WHERE public_hash = $1 AND has_claimed = FALSE AND is_eligible = TRUE
	`

	tag, err := s.pool.Exec(ctx, query, publicHash)
	if err != nil {
		return fmt.Errorf("mark claimed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	sub, err := s.GetByPublicHash(ctx, publicHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("classify claim: %w", err)
	}
	return storage.ClaimFailure(sub)
}

// scanSubmission scans a single row into a Submission.
func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var sub domain.Submission

	err := row.Scan(
		&sub.PublicHash,
		&sub.WalletName,
		&sub.WalletAddress,
		&sub.IsValidOnChain,
		&sub.Timestamp,
		&sub.IsEligible,
		&sub.HasClaimed,
	)
	if err != nil {
		return nil, err
	}

	sub.Timestamp = sub.Timestamp.UTC()
	return &sub, nil
}

// scanSubmissions scans multiple rows into a slice of Submission.
func scanSubmissions(rows pgx.Rows) ([]*domain.Submission, error) {
	var result []*domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return result, nil
}
