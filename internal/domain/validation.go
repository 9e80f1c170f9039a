package domain

// ValidationResult classifies a wallet address against on-chain state.
type ValidationResult string

const (
	ValidationValid          ValidationResult = "valid"
	ValidationInvalidAddress ValidationResult = "invalid-address"
	ValidationZeroBalance    ValidationResult = "zero-balance"
	ValidationProgramAccount ValidationResult = "is-program-account"
	ValidationRPCError       ValidationResult = "rpc-error"
)

// String returns the result name.
func (r ValidationResult) String() string {
	return string(r)
}

// IsDefinitive reports whether the result reflects on-chain state.
// An rpc-error means "unknown, retry later" and is never proof of anything.
func (r ValidationResult) IsDefinitive() bool {
	return r != ValidationRPCError
}

// EligibilityOutcome records why the evaluator decided what it did for one record.
type EligibilityOutcome string

const (
	OutcomeEligible       EligibilityOutcome = "eligible"
	OutcomeHoldingPeriod  EligibilityOutcome = "holding_period"
	OutcomeZeroBalance    EligibilityOutcome = "zero_balance"
	OutcomeRPCError       EligibilityOutcome = "rpc_error"
	OutcomeSkippedClaimed EligibilityOutcome = "skipped_claimed"
	OutcomeStoreError     EligibilityOutcome = "store_error"
)

// Eligible reports whether the outcome grants eligibility.
func (o EligibilityOutcome) Eligible() bool {
	return o == OutcomeEligible
}
