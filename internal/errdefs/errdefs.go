// Package errdefs defines the typed error kinds shared by the control-plane
// core and the predicates used to classify an error returned across a
// component boundary.
package errdefs

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Components never return ad-hoc errors across a
// public boundary; they return one of these (optionally wrapped with
// additional context via fmt.Errorf("...: %w", ...)) so callers can classify
// failures with the IsXxx helpers below instead of string matching.
var (
	ErrMalformedMessage     = errors.New("malformed control message")
	ErrUnknownPolicy        = errors.New("unknown policy set")
	ErrWrongState           = errors.New("event not valid in current state")
	ErrQoSNotAchievable     = errors.New("no QoS cube dominates the requested flow spec")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrAuthTimeout          = errors.New("authentication handshake timed out")
	ErrPeerRefused          = errors.New("peer refused the request")
	ErrInternal             = errors.New("internal invariant violated")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotSupported  = errors.New("not supported")
)

func IsMalformedMessage(err error) bool     { return errors.Is(err, ErrMalformedMessage) }
func IsUnknownPolicy(err error) bool        { return errors.Is(err, ErrUnknownPolicy) }
func IsWrongState(err error) bool           { return errors.Is(err, ErrWrongState) }
func IsQoSNotAchievable(err error) bool     { return errors.Is(err, ErrQoSNotAchievable) }
func IsTransportUnavailable(err error) bool { return errors.Is(err, ErrTransportUnavailable) }
func IsAuthTimeout(err error) bool          { return errors.Is(err, ErrAuthTimeout) }
func IsPeerRefused(err error) bool          { return errors.Is(err, ErrPeerRefused) }
func IsInternal(err error) bool             { return errors.Is(err, ErrInternal) }
func IsNotFound(err error) bool             { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool        { return errors.Is(err, ErrAlreadyExists) }
func IsNotSupported(err error) bool         { return errors.Is(err, ErrNotSupported) }

// IsAny reports whether err matches any of targets.
func IsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// Result is the HRESULT-flavored numeric code carried on the wire: zero is
// success, negative values are one of the kinds above.
type Result int32

const (
	ResultOK                   Result = 0
	ResultMalformedMessage     Result = -1
	ResultUnknownPolicy        Result = -2
	ResultWrongState           Result = -3
	ResultQoSNotAchievable     Result = -4
	ResultTransportUnavailable Result = -5
	ResultAuthTimeout          Result = -6
	ResultPeerRefused          Result = -7
	ResultInternal             Result = -8
)

// ToResult maps an error produced by this package to its wire-level Result
// code. Unrecognized errors map to ResultInternal so that "unknown failure"
// never silently becomes "success" on the wire.
func ToResult(err error) Result {
	switch {
	case err == nil:
		return ResultOK
	case IsMalformedMessage(err):
		return ResultMalformedMessage
	case IsUnknownPolicy(err):
		return ResultUnknownPolicy
	case IsWrongState(err):
		return ResultWrongState
	case IsQoSNotAchievable(err):
		return ResultQoSNotAchievable
	case IsTransportUnavailable(err):
		return ResultTransportUnavailable
	case IsAuthTimeout(err):
		return ResultAuthTimeout
	case IsPeerRefused(err):
		return ResultPeerRefused
	default:
		return ResultInternal
	}
}

// ErrorRecord is one stacked cause attached to a response's ErrorRecords
// list.
type ErrorRecord struct {
	Result       Result
	Message      string
	FunctionName string
}

// Error is the structured failure carried on the wire: a Result code plus a
// free-form description and, optionally, a chain of causes. It unwraps to
// the underlying sentinel so errors.Is/As keep working across the wire
// boundary.
type Error struct {
	Result      Result
	Description string
	Records     []ErrorRecord
	cause       error
}

func NewError(cause error, description string) *Error {
	return &Error{Result: ToResult(cause), Description: description, cause: cause}
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s (result=%d)", e.Description, e.Result)
	}
	return fmt.Sprintf("result=%d", e.Result)
}

func (e *Error) Unwrap() error { return e.cause }
