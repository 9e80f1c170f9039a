package airdrop

import (
	"errors"
	"fmt"
)

// Kind groups errors by how callers should react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindNotEligible
	KindUpstreamUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindNotEligible:
		return "not_eligible"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

// Stable error codes.
const (
	CodeMissingFields       = "missing-fields"
	CodeDuplicate           = "duplicate"
	CodeNotFound            = "not-found"
	CodeAlreadyClaimed      = "already-claimed"
	CodeNotEligible         = "not-eligible"
	CodeUpstreamUnavailable = "upstream-unavailable"
	CodeInternal            = "internal"
)

// Error is returned by every Service operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, ErrDuplicate) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingFields       = &Error{Kind: KindValidation, Code: CodeMissingFields, Message: "Missing required fields: walletName, publicHash, or walletAddress."}
	ErrDuplicate           = &Error{Kind: KindConflict, Code: CodeDuplicate, Message: "This wallet has already been entered."}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: CodeNotFound, Message: "No submission found for this publicHash"}
	ErrAlreadyClaimed      = &Error{Kind: KindConflict, Code: CodeAlreadyClaimed, Message: "Airdrop already claimed."}
	ErrNotEligible         = &Error{Kind: KindNotEligible, Code: CodeNotEligible, Message: "Wallet does not meet eligibility requirements."}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable, Code: CodeUpstreamUnavailable, Message: "Blockchain RPC is unavailable, try again later."}
)

func internalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: op, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, CodeInternal for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
