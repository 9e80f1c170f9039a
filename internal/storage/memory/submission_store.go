package memory

import (
	"context"
	"sort"
	"sync"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/storage"
)

// SubmissionStore is an in-memory implementation of storage.SubmissionStore.
type SubmissionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Submission // keyed by public_hash
}

// NewSubmissionStore creates a new in-memory submission store.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		data: make(map[string]*domain.Submission),
	}
}

// Insert adds a new submission. Returns ErrDuplicateKey if public_hash exists.
func (s *SubmissionStore) Insert(_ context.Context, sub *domain.Submission) error {
	if sub == nil || sub.PublicHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sub.PublicHash]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	subCopy := *sub
	s.data[sub.PublicHash] = &subCopy
	return nil
}

// GetByPublicHash retrieves a submission. Returns ErrNotFound if not exists.
func (s *SubmissionStore) GetByPublicHash(_ context.Context, publicHash string) (*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.data[publicHash]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	subCopy := *sub
	return &subCopy, nil
}

// List retrieves all submissions ordered by timestamp ASC, public_hash ASC.
func (s *SubmissionStore) List(_ context.Context) ([]*domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Submission, 0, len(s.data))
	for _, sub := range s.data {
		subCopy := *sub
		result = append(result, &subCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].PublicHash < result[j].PublicHash
	})

	return result, nil
}

// SetEligibility overwrites is_eligible for an unclaimed record.
func (s *SubmissionStore) SetEligibility(_ context.Context, publicHash string, eligible bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.data[publicHash]
	if !exists || sub.HasClaimed {
		return false, nil
	}
	sub.IsEligible = eligible
	return true, nil
}

// MarkClaimed sets has_claimed for an eligible, unclaimed record.
func (s *SubmissionStore) MarkClaimed(_ context.Context, publicHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.data[publicHash]
	if !exists {
		return storage.ErrNotFound
	}
	if sub.HasClaimed || !sub.IsEligible {
		return storage.ClaimFailure(sub)
	}
	sub.HasClaimed = true
	return nil
}

// Verify interface compliance at compile time.
var _ storage.SubmissionStore = (*SubmissionStore)(nil)
