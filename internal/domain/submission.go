package domain

import "time"

// Submission is one airdrop registration.
// Corresponds to the submissions table in PostgreSQL.
type Submission struct {
	WalletName     string    // user-supplied label, not unique
	PublicHash     string    // PRIMARY KEY, chosen by the user
	WalletAddress  string    // base58-encoded public key
	IsValidOnChain bool      // recorded at submission time
	Timestamp      time.Time // submission time, start of the holding period
	IsEligible     bool      // recomputed by the eligibility evaluator
	HasClaimed     bool      // set exactly once by a successful claim
}

// State is the position of a submission in the claim state machine.
type State string

const (
	StateSubmitted State = "submitted"
	StateEligible  State = "eligible"
	StateClaimed   State = "claimed"
)

// State derives the state machine position from the stored flags.
// A claimed record is terminal regardless of its eligibility flag.
func (s *Submission) State() State {
	switch {
	case s.HasClaimed:
		return StateClaimed
	case s.IsEligible:
		return StateEligible
	default:
		return StateSubmitted
	}
}

// StatusView is the read-only projection returned by the status query.
type StatusView struct {
	WalletName     string `json:"walletName"`
	PublicHash     string `json:"publicHash"`
	WalletAddress  string `json:"walletAddress"`
	IsValidOnChain bool   `json:"isValidOnChain"`
	IsEligible     bool   `json:"isEligible"`
	HasClaimed     bool   `json:"hasClaimed"`
}

// View builds the status projection of the submission.
func (s *Submission) View() *StatusView {
	return &StatusView{
		WalletName:     s.WalletName,
		PublicHash:     s.PublicHash,
		WalletAddress:  s.WalletAddress,
		IsValidOnChain: s.IsValidOnChain,
		IsEligible:     s.IsEligible,
		HasClaimed:     s.HasClaimed,
	}
}
