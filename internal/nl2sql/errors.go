package nl2sql

import (
	"errors"
	"fmt"
)

// Kind classifies generation failures.
type Kind string

const (
	KindMissingCredentials Kind = "missing_credentials"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindRateLimited        Kind = "rate_limited"
	KindNetworkFailure     Kind = "network_failure"
	KindCrossOriginBlocked Kind = "cross_origin_blocked"
	KindEmptyCompletion    Kind = "empty_completion"
	KindNonSelectBlocked   Kind = "non_select_blocked"
	KindAPIError           Kind = "api_error"
)

// Recoverable reports whether a failure of this kind may be answered with
// locally generated SQL instead of aborting.
func (k Kind) Recoverable() bool {
	switch k {
	case KindNetworkFailure, KindCrossOriginBlocked, KindEmptyCompletion:
		return true
	default:
		return false
	}
}

type Error struct {
	Kind Kind
	// Status is the HTTP status returned by the remote service, when any.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

var (
	ErrMissingCredentials = &Error{Kind: KindMissingCredentials}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrNetworkFailure     = &Error{Kind: KindNetworkFailure}
	ErrCrossOriginBlocked = &Error{Kind: KindCrossOriginBlocked}
	ErrEmptyCompletion    = &Error{Kind: KindEmptyCompletion}
	ErrNonSelectBlocked   = &Error{Kind: KindNonSelectBlocked}
	ErrAPIError           = &Error{Kind: KindAPIError}
)

// ErrRemoteDisabled is returned when remote generation is requested but no
// remote translator is configured.
var ErrRemoteDisabled = errors.New("remote translation is disabled")

func newError(kind Kind, status int, err error) *Error {
	return &Error{Kind: kind, Status: status, Err: err}
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind, true
	}
	return "", false
}

// StatusOf returns the remote HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Status
	}
	return 0
}
