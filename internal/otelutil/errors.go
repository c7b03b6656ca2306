package otelutil

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"

	"github.com/rinad/rinad/internal/errdefs"
)

// toStatusCode maps an error from this repository's taxonomy to an
// OpenTelemetry status code, so a span closed on, say, ErrQoSNotAchievable
// reports codes.Error rather than the uninformative default.
func toStatusCode(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Error
	case errors.Is(err, context.DeadlineExceeded), errdefs.IsAuthTimeout(err):
		return codes.Error
	default:
		return codes.Error
	}
}
