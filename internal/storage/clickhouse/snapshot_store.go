package clickhouse

import (
	"context"
	"fmt"

	"solana-airdrop/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertSnapshot appends every record of snap in a single batch.
// Fails with ErrDuplicateKey if the snapshot ID was already archived.
func (s *SnapshotStore) InsertSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}
	if len(snap.Records) == 0 {
		return nil
	}

	exists, err := s.exists(ctx, snap.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO submission_snapshots (
			snapshot_id, taken_at_ms, public_hash, wallet_name, wallet_address,
			is_valid_on_chain, submitted_at_ms, is_eligible, has_claimed
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	takenAt := snap.TakenAt.UnixMilli()
	for _, r := range snap.Records {
		err = batch.Append(
			snap.ID, takenAt, r.PublicHash, r.WalletName, r.WalletAddress,
			boolToUInt8(r.IsValidOnChain), r.Timestamp.UnixMilli(),
			boolToUInt8(r.IsEligible), boolToUInt8(r.HasClaimed),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CountRows returns the number of archived rows for a snapshot.
func (s *SnapshotStore) CountRows(ctx context.Context, snapshotID string) (int, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		"SELECT count() FROM submission_snapshots WHERE snapshot_id = ?", snapshotID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count snapshot rows: %w", err)
	}
	return int(count), nil
}

func (s *SnapshotStore) exists(ctx context.Context, snapshotID string) (bool, error) {
	n, err := s.CountRows(ctx, snapshotID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
