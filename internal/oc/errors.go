// Package oc adapts OpenCensus span status reporting to the control-plane's
// own error taxonomy, so a span closed on a WrongState or AuthTimeout error
// carries a status code a tracing backend can group on.
package oc

import (
	"context"
	"errors"

	"go.opencensus.io/trace"

	"github.com/rinad/rinad/internal/errdefs"
)

func toStatusCode(err error) uint32 {
	switch {
	case checkErrors(err, context.Canceled):
		return trace.StatusCodeCancelled
	case checkErrors(err, context.DeadlineExceeded, errdefs.ErrAuthTimeout):
		return trace.StatusCodeDeadlineExceeded
	case checkErrors(err, errdefs.ErrNotFound):
		return trace.StatusCodeNotFound
	case checkErrors(err, errdefs.ErrAlreadyExists):
		return trace.StatusCodeAlreadyExists
	case checkErrors(err, errdefs.ErrWrongState):
		return trace.StatusCodeFailedPrecondition
	case checkErrors(err, errdefs.ErrQoSNotAchievable):
		return trace.StatusCodeResourceExhausted
	case checkErrors(err, errdefs.ErrTransportUnavailable):
		return trace.StatusCodeUnavailable
	case checkErrors(err, errdefs.ErrMalformedMessage):
		return trace.StatusCodeInvalidArgument
	case checkErrors(err, errdefs.ErrInternal):
		return trace.StatusCodeInternal
	default:
		return trace.StatusCodeUnknown
	}
}

func checkErrors(err error, errs ...error) bool {
	for _, e := range errs {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}
