// Package log provides the structured-logging conventions shared by every
// control-plane component: a context-scoped *logrus.Entry and a Hook that
// encodes compound fields and injects span identifiers.
package log

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RFC3339NanoFixed is the fixed-width variant of time.RFC3339Nano used for
// timestamps that need to sort and align in plain-text logs.
const RFC3339NanoFixed = "2006-01-02T15:04:05.000000000Z07:00"

type loggerContextKeyType struct{}

var loggerContextKey = loggerContextKeyType{}

// G returns the *logrus.Entry stored in ctx, or the standard logger wrapped
// in an Entry if none was stored. Every handler that logs does so via
// log.G(ctx).WithField(...), never logrus.StandardLogger() directly, so
// fields attached upstream (port-id, session-id, ...) are never lost.
func G(ctx context.Context) *logrus.Entry {
	if e, ok := ctx.Value(loggerContextKey).(*logrus.Entry); ok {
		return e.WithContext(ctx)
	}
	return logrus.NewEntry(logrus.StandardLogger()).WithContext(ctx)
}

// WithContext returns a copy of ctx carrying e, retrievable via G.
func WithContext(ctx context.Context, e *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerContextKey, e)
}

// UpdateContext refreshes the entry's own embedded context, used after
// starting a span so that subsequent G(ctx) calls pick up the new span's
// trace/span id fields.
func UpdateContext(ctx context.Context) context.Context {
	e := G(ctx)
	e.Context = ctx
	return WithContext(ctx, e)
}

// DurationFormat converts a time.Duration field to a loggable value.
type DurationFormat func(time.Duration) interface{}

// DurationFormatSeconds renders a duration as fractional seconds, matching
// logrus's own default duration formatting for JSON output.
func DurationFormatSeconds(d time.Duration) interface{} {
	return d.Seconds()
}
