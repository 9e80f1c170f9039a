// Package export writes immutable snapshots of all submissions.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"solana-airdrop/internal/observability"
	"solana-airdrop/internal/storage"
)

// Sink receives snapshots.
type Sink interface {
	Name() string
	// Write stores snap and returns the number of rows written.
	Write(ctx context.Context, snap *storage.Snapshot) (int, error)
}

// Options configures an Exporter.
type Options struct {
	Store  storage.SubmissionStore
	Sinks  []Sink
	Clock  func() time.Time
	Logger logrus.FieldLogger
}

// Exporter copies all records into every configured sink.
type Exporter struct {
	store  storage.SubmissionStore
	sinks  []Sink
	now    func() time.Time
	logger logrus.FieldLogger
}

// New creates an Exporter.
func New(opts Options) *Exporter {
	e := &Exporter{
		store:  opts.Store,
		sinks:  opts.Sinks,
		now:    opts.Clock,
		logger: opts.Logger,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	return e
}

// Result describes one export run.
type Result struct {
	SnapshotID string
	Records    int
	// Rows is the number of rows written per sink name.
	Rows map[string]int
}

// Run takes one snapshot. Each sink is attempted even if an earlier one
// fails; the returned error joins all sink failures.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	records, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	snap := &storage.Snapshot{
		ID:      uuid.NewString(),
		TakenAt: e.now().UTC(),
		Records: records,
	}
	result := &Result{SnapshotID: snap.ID, Records: len(records), Rows: make(map[string]int)}

	log := e.logger.WithField("snapshot_id", snap.ID)
	if len(records) == 0 {
		log.Info("no submissions to export")
		return result, nil
	}

	var errs []error
	for _, sink := range e.sinks {
		rows, err := sink.Write(ctx, snap)
		if err != nil {
			log.WithError(err).WithField("sink", sink.Name()).Error("snapshot sink failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		result.Rows[sink.Name()] = rows
		observability.RecordSnapshotRows(sink.Name(), rows)
		log.WithFields(logrus.Fields{"sink": sink.Name(), "rows": rows}).Info("snapshot written")
	}

	return result, errors.Join(errs...)
}
