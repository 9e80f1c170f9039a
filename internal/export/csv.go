package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"solana-airdrop/internal/domain"
	"solana-airdrop/internal/storage"
)

// CSVSink writes each snapshot to <Dir>/submissions_<unix-ms>.csv.
type CSVSink struct {
	Dir string
}

// NewCSVSink creates a sink writing into dir.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{Dir: dir}
}

// Name implements Sink.
func (s *CSVSink) Name() string { return "csv" }

// Write implements Sink. An empty snapshot writes no file.
func (s *CSVSink) Write(_ context.Context, snap *storage.Snapshot) (int, error) {
	if len(snap.Records) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("create snapshot dir: %w", err)
	}

	path := s.Path(snap.TakenAt)

	tmp, err := os.CreateTemp(s.Dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(RenderCSV(snap.Records)); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("publish snapshot: %w", err)
	}

	return len(snap.Records), nil
}

// Path returns the file a snapshot taken at takenAt is written to.
func (s *CSVSink) Path(takenAt time.Time) string {
	return filepath.Join(s.Dir, fmt.Sprintf("submissions_%d.csv", takenAt.UnixMilli()))
}

// RenderCSV renders submissions as CSV with every field quoted.
func RenderCSV(records []*domain.Submission) string {
	var sb strings.Builder

	sb.WriteString("walletName,publicHash,walletAddress,isValidOnChain,timestamp,isEligible,hasClaimed\n")

	for _, r := range records {
		fields := []string{
			r.WalletName,
			r.PublicHash,
			r.WalletAddress,
			strconv.FormatBool(r.IsValidOnChain),
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatBool(r.IsEligible),
			strconv.FormatBool(r.HasClaimed),
		}
		for i, f := range fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(quote(f))
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
