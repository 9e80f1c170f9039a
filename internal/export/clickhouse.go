package export

import (
	"context"

	"solana-airdrop/internal/storage"
)

// ClickHouseSink archives snapshots in a storage.SnapshotStore.
type ClickHouseSink struct {
	Store storage.SnapshotStore
}

// Name implements Sink.
func (s ClickHouseSink) Name() string { return "clickhouse" }

// Write implements Sink.
func (s ClickHouseSink) Write(ctx context.Context, snap *storage.Snapshot) (int, error) {
	if err := s.Store.InsertSnapshot(ctx, snap); err != nil {
		return 0, err
	}
	return len(snap.Records), nil
}
